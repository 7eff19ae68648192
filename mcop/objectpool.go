// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

// objectPool is the arena of local objects.  An object's ID is its
// slot index.  Freed slots go on a stack and are reused before the
// pool grows, so IDs stay small and dense.
type objectPool struct {
	slots []*Skeleton
	free  []int32
	count int
}

// add places skel in a free slot and returns the slot's index.
func (p *objectPool) add(skel *Skeleton) int32 {
	p.count++
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[id] = skel
		return id
	}
	p.slots = append(p.slots, skel)
	return int32(len(p.slots) - 1)
}

// remove frees a slot.  It does nothing if the slot is already free.
func (p *objectPool) remove(id int32) {
	if id < 0 || int(id) >= len(p.slots) || p.slots[id] == nil {
		return
	}
	p.slots[id] = nil
	p.free = append(p.free, id)
	p.count--
}

// get returns the object in a slot, or nil if it is free.
func (p *objectPool) get(id int32) *Skeleton {
	if id < 0 || int(id) >= len(p.slots) {
		return nil
	}
	return p.slots[id]
}

// live returns a snapshot of every object in the pool.
func (p *objectPool) live() []*Skeleton {
	result := make([]*Skeleton, 0, p.count)
	for _, skel := range p.slots {
		if skel != nil {
			result = append(result, skel)
		}
	}
	return result
}

// size returns the number of live objects.
func (p *objectPool) size() int {
	return p.count
}
