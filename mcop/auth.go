// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Authentication protocol names offered in the server hello.
const (
	AuthMD5    = "MD5-AUTH"
	AuthNoAuth = "noauth"
)

// cookieFile is the name of the shared secret within the MCOP
// directory.
const cookieFile = "secret-cookie"

// DefaultDir returns the per-user directory holding the MCOP secret
// cookie, Unix sockets, and file-based global references.
func DefaultDir() string {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(os.TempDir(), "mcop-"+name)
}

// ensureDir creates the MCOP directory if needed.  It must be private
// to the user, since it holds the secret cookie.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return os.Chmod(dir, 0700)
}

// loadCookie reads the secret cookie from dir, creating it if it does
// not exist yet.
func loadCookie(dir string) (string, error) {
	path := filepath.Join(dir, cookieFile)
	for {
		data, err := ioutil.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		cookie, err := randomHex(32)
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if os.IsExist(err) {
			// Someone else created it first; read theirs.
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = f.WriteString(cookie)
		if err2 := f.Close(); err == nil {
			err = err2
		}
		return cookie, err
	}
}

func randomHex(n int) (string, error) {
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// md5Auth computes the MD5-AUTH response for a cookie and a server's
// seed.
func md5Auth(cookie, seed string) string {
	sum := md5.Sum([]byte(cookie + seed))
	return hex.EncodeToString(sum[:])
}

// checkMD5Auth verifies an MD5-AUTH response.
func checkMD5Auth(cookie, seed, data string) bool {
	expected := md5Auth(cookie, seed)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(data)) == 1
}
