// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
)

// MaybeEncodeName examines a name, and if it cannot be directly
// inserted into a URL path segment as-is, base64 encodes it.  The
// encoded name begins with - and uses the URL-safe base64 alphabet
// with no padding.
func MaybeEncodeName(name string) string {
	if nameIsSafe(name) {
		return name
	}
	return "-" + base64.RawURLEncoding.EncodeToString([]byte(name))
}

// nameIsSafe reports whether name is non-empty, does not start with
// "-", and only holds RFC 3986 unreserved characters or ":".
func nameIsSafe(name string) bool {
	if name == "" || name[0] == '-' {
		return false
	}
	for _, c := range name {
		switch {
		case c == '-', c == '.', c == '_', c == ':',
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// MaybeDecodeName is the dual of MaybeEncodeName: a name starting
// with - is base64 decoded, anything else is returned as is.
func MaybeDecodeName(name string) (string, error) {
	if len(name) == 0 || name[0] != '-' {
		return name, nil
	}
	bytes, err := base64.RawURLEncoding.DecodeString(name[1:])
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
