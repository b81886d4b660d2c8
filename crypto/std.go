package crypto

import (
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// StdHashProvider is the software provider backed by sha256-simd and
// x/crypto/sha3.
type StdHashProvider struct{}

func (p StdHashProvider) SHA256(input []byte) [32]byte {
	return sha256.Sum256(input)
}

// SHA256d hashes input twice; the first digest is the second preimage.
func (p StdHashProvider) SHA256d(input []byte) [32]byte {
	first := sha256.Sum256(input)
	return sha256.Sum256(first[:])
}

func (p StdHashProvider) SHA3_256(input []byte) [32]byte {
	h := sha3.New256()
	_, _ = h.Write(input)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
