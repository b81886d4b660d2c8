package consensus

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func TestCompactToTarget(t *testing.T) {
	got, err := CompactToTarget(0x1d00ffff)
	if err != nil {
		t.Fatalf("CompactToTarget: %v", err)
	}
	if got.Text(16) != "ffff0000000000000000000000000000000000000000000000000000" {
		t.Fatalf("target=%s", got.Text(16))
	}

	for _, bits := range []uint32{0, 0x1d000000, 0x1d800001, 0x2200ffff} {
		if _, err := CompactToTarget(bits); err == nil {
			t.Fatalf("bits 0x%08x: expected error", bits)
		}
	}
}

func regtestHeader(t *testing.T) *wire.BlockHeader {
	t.Helper()
	h := wire.NewBlockHeader(0x20000000, &chainhash.Hash{}, &chainhash.Hash{0x07}, regtestMinTargetBits, 0)
	h.Timestamp = time.Unix(1756786800, 0)
	mineHeader(t, h)
	return h
}

func TestCheckProofOfWork_Accepts(t *testing.T) {
	h := regtestHeader(t)
	if err := CheckProofOfWork(h, regtestMinTargetBits); err != nil {
		t.Fatalf("CheckProofOfWork: %v", err)
	}
}

func TestCheckProofOfWork_DeclaredTargetTooLoose(t *testing.T) {
	h := regtestHeader(t)
	for _, minBits := range []uint32{testnet4MinTargetBits, mainnetMinTargetBits} {
		err := CheckProofOfWork(h, minBits)
		wantCode(t, err, MINT_ERR_INSUFFICIENT_WORK)
	}
}

func TestCheckProofOfWork_HashAboveDeclaredTarget(t *testing.T) {
	h := regtestHeader(t)
	// Keep searching until the hash misses the regtest target.
	for {
		hash := h.BlockHash()
		if hash[31] >= 0x80 {
			break
		}
		h.Nonce++
	}
	wantCode(t, CheckProofOfWork(h, regtestMinTargetBits), MINT_ERR_INSUFFICIENT_WORK)
}

func TestCheckProofOfWork_BadDeclaredBits(t *testing.T) {
	h := regtestHeader(t)
	h.Bits = 0x1d800001
	wantCode(t, CheckProofOfWork(h, regtestMinTargetBits), MINT_ERR_INSUFFICIENT_WORK)

	wantCode(t, CheckProofOfWork(nil, regtestMinTargetBits), MINT_ERR_INSUFFICIENT_WORK)
}
