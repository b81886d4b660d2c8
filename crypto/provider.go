package crypto

// HashProvider is the narrow hashing interface used by the mint rules and
// the tooling around them.
type HashProvider interface {
	SHA256(input []byte) [32]byte
	SHA256d(input []byte) [32]byte
	SHA3_256(input []byte) [32]byte
}

// Std is the process-wide default provider. It is stateless and safe for
// concurrent use.
var Std HashProvider = StdHashProvider{}
