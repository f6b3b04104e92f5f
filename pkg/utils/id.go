package utils

import (
	"crypto/rand"

	"github.com/jxskiss/base62"
)

const (
	IdentityPrefix = "user-"
	RoomPrefix     = "RM_"

	guidBytes = 9
)

// NewGuid returns prefix followed by a random base62 suffix of at least 12 characters.
func NewGuid(prefix string) string {
	b := make([]byte, guidBytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return prefix + base62.EncodeToString(b)
}
