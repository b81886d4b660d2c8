package consensus

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// CompactToTarget expands a compact nBits value into a 256-bit target.
// Negative, zero, and overflowing encodings are rejected.
func CompactToTarget(bits uint32) (*big.Int, error) {
	target := blockchain.CompactToBig(bits)
	if target.Sign() <= 0 {
		return nil, fmt.Errorf("target: non-positive compact 0x%08x", bits)
	}
	if target.BitLen() > 256 {
		return nil, fmt.Errorf("target: compact 0x%08x overflows 256 bits", bits)
	}
	return target, nil
}

// CheckProofOfWork verifies that header's hash meets the target the header
// declares, and that the declared target is no looser than the target
// encoded by minTargetBits.
func CheckProofOfWork(header *wire.BlockHeader, minTargetBits uint32) error {
	if header == nil {
		return minterr(MINT_ERR_INSUFFICIENT_WORK, "nil header")
	}
	declared, err := CompactToTarget(header.Bits)
	if err != nil {
		return minterr(MINT_ERR_INSUFFICIENT_WORK, err.Error())
	}
	hash := header.BlockHash()
	if blockchain.HashToBig(&hash).Cmp(declared) > 0 {
		return minterrf(MINT_ERR_INSUFFICIENT_WORK, "block hash %s above declared target", hash)
	}

	minTarget, err := CompactToTarget(minTargetBits)
	if err != nil {
		return minterr(MINT_ERR_INSUFFICIENT_WORK, err.Error())
	}
	if declared.Cmp(minTarget) > 0 {
		return minterrf(MINT_ERR_INSUFFICIENT_WORK, "declared bits 0x%08x looser than minimum 0x%08x", header.Bits, minTargetBits)
	}
	return nil
}
