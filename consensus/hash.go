package consensus

import (
	"math/bits"

	"bro.dev/mint/crypto"
)

// DoubleHash returns SHA-256(SHA-256(b)).
func DoubleHash(b []byte) [32]byte {
	return crypto.Std.SHA256d(b)
}

// SingleHash returns SHA-256(b).
func SingleHash(b []byte) [32]byte {
	return crypto.Std.SHA256(b)
}

// LeadingZeroBits counts the most-significant zero bits of b. An all-zero
// (or empty) input yields 8*len(b).
func LeadingZeroBits(b []byte) int {
	for i, v := range b {
		if v != 0 {
			return i*8 + bits.LeadingZeros8(v)
		}
	}
	return len(b) * 8
}
