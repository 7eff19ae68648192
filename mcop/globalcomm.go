// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// GlobalComm is a naming service mapping global names to object
// reference strings.
type GlobalComm interface {
	// Put stores value under name.  It returns false if name is
	// already taken.
	Put(name, value string) bool

	// Get returns the value stored under name, or "" if there is
	// none.
	Get(name string) string

	// Erase removes name.
	Erase(name string)
}

// TmpGlobalComm stores global names as files in a directory, so
// every process of the same user on one machine sees the same names.
type TmpGlobalComm struct {
	Dir string
}

// NewTmpGlobalComm creates a file-based naming service in dir,
// creating the directory if needed.
func NewTmpGlobalComm(dir string) (*TmpGlobalComm, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &TmpGlobalComm{Dir: dir}, nil
}

func (g *TmpGlobalComm) path(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, "/\x00") || name == cookieFile {
		return "", false
	}
	return filepath.Join(g.Dir, name), true
}

// Put creates a file named name holding value.
func (g *TmpGlobalComm) Put(name, value string) bool {
	path, ok := g.path(name)
	if !ok {
		return false
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return false
	}
	_, err = f.WriteString(value)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(path)
		return false
	}
	return true
}

// Get reads the file named name.
func (g *TmpGlobalComm) Get(name string) string {
	path, ok := g.path(name)
	if !ok {
		return ""
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Erase deletes the file named name.
func (g *TmpGlobalComm) Erase(name string) {
	if path, ok := g.path(name); ok {
		os.Remove(path)
	}
}
