// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type MethodCacheAssertions struct {
	*assert.Assertions
	Cache *methodCache
	Stub  *Stub
}

func NewMethodCacheAssertions(t assert.TestingT, size int) *MethodCacheAssertions {
	return &MethodCacheAssertions{
		assert.New(t),
		newMethodCache(size),
		&Stub{},
	}
}

func (a *MethodCacheAssertions) key(method string) methodKey {
	return methodKey{stub: a.Stub, method: method}
}

// GetID fetches a method from the cache; if not present, it is added
// with the given ID.
func (a *MethodCacheAssertions) GetID(method string, id int32) {
	got, err := a.Cache.Get(a.key(method), func() (int32, error) {
		return id, nil
	})
	if a.NoError(err) {
		a.Equal(id, got)
	}
}

// GetPresent fetches a method that must already be cached.
func (a *MethodCacheAssertions) GetPresent(method string, id int32) {
	got, err := a.Cache.Get(a.key(method), func() (int32, error) {
		return -1, assert.AnError
	})
	if a.NoError(err) {
		a.Equal(id, got)
	}
}

// Has asserts that a method is cached.
func (a *MethodCacheAssertions) Has(method string) {
	_, ok := a.Cache.Peek(a.key(method))
	a.True(ok, "cache should contain %v", method)
}

// DoesNotHave asserts that a method is not cached.
func (a *MethodCacheAssertions) DoesNotHave(method string) {
	_, ok := a.Cache.Peek(a.key(method))
	a.False(ok, "cache should not contain %v", method)
}

func TestMethodCacheGetPut(t *testing.T) {
	a := NewMethodCacheAssertions(t, 5)
	a.GetID("a()->void", 10)
	a.GetPresent("a()->void", 10)
	a.Cache.Put(a.key("b()->void"), 11)
	a.GetPresent("b()->void", 11)
	a.Equal(2, a.Cache.Len())
}

func TestMethodCacheFetchError(t *testing.T) {
	a := NewMethodCacheAssertions(t, 5)
	_, err := a.Cache.Get(a.key("a()->void"), func() (int32, error) {
		return -1, ErrNoSuchMethod
	})
	a.Equal(ErrNoSuchMethod, err)
	a.DoesNotHave("a()->void")
}

func TestMethodCacheEviction(t *testing.T) {
	a := NewMethodCacheAssertions(t, 2)
	a.GetID("a", 1)
	a.GetID("b", 2)
	a.GetPresent("a", 1)
	a.GetID("c", 3)
	a.Has("a")
	a.DoesNotHave("b")
	a.Has("c")
}

func TestMethodCachePerStub(t *testing.T) {
	a := NewMethodCacheAssertions(t, 5)
	a.GetID("a", 1)
	other := &Stub{}
	_, ok := a.Cache.Peek(methodKey{stub: other, method: "a"})
	a.False(ok)
	a.Cache.Remove(a.key("a"))
	a.DoesNotHave("a")
	a.Cache.Remove(a.key("a"))
}
