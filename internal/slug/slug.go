// Package slug generates short random identifiers used as public share
// links and storage key prefixes.
package slug

import (
	"crypto/rand"
	"strings"
)

// alphabet is URL-safe: slugs appear verbatim in share links and object keys.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Length is the number of characters in a generated slug.
const Length = 7

// New returns a fresh random slug.
//
// Uniqueness is probabilistic: with 64^7 possible values collisions are
// vanishingly rare, and the non-overwrite write policy on the primary
// object turns a collision into a failed upload rather than silent data
// loss. No collision check is performed before use.
func New() string {
	return NewLen(Length)
}

// NewLen returns a random slug of n characters.
func NewLen(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// there is no reasonable way to continue serving uploads.
		panic("slug: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// IsValid reports whether s looks like a slug this service could have
// issued. Used to reject path garbage before it reaches the storage
// backend.
func IsValid(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
