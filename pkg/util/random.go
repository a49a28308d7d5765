package util

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns a random hex string of n bytes (2n characters).
// Used for generated object names such as selfie files.
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
