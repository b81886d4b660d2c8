package consensus

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
)

// decodeHexStrict accepts bare hex only; surrounding whitespace is an error.
func decodeHexStrict(name string, s string) ([]byte, error) {
	if s == "" {
		return nil, minterrf(MINT_ERR_DECODE, "%s: empty", name)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, minterrf(MINT_ERR_DECODE, "%s: bad hex: %v", name, err)
	}
	return b, nil
}

// DecodeMiningTx parses a hex-encoded consensus-serialized Bitcoin
// transaction (segwit or legacy). Trailing bytes are rejected.
func DecodeMiningTx(txHex string) (*wire.MsgTx, error) {
	raw, err := decodeHexStrict("tx", txHex)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	tx := new(wire.MsgTx)
	if err := tx.Deserialize(r); err != nil {
		return nil, minterrf(MINT_ERR_DECODE, "tx: %v", err)
	}
	if r.Len() != 0 {
		return nil, minterrf(MINT_ERR_DECODE, "tx: %d trailing bytes", r.Len())
	}
	return tx, nil
}

// DecodeMerkleBlock parses a hex-encoded merkle block (header, transaction
// count, hashes, flag bytes) as produced by gettxoutproof. Trailing bytes
// are rejected.
func DecodeMerkleBlock(proofHex string) (*wire.MsgMerkleBlock, error) {
	raw, err := decodeHexStrict("tx_block_proof", proofHex)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	mb := new(wire.MsgMerkleBlock)
	if err := mb.BtcDecode(r, wire.ProtocolVersion, wire.BaseEncoding); err != nil {
		return nil, minterrf(MINT_ERR_DECODE, "tx_block_proof: %v", err)
	}
	if r.Len() != 0 {
		return nil, minterrf(MINT_ERR_DECODE, "tx_block_proof: %d trailing bytes", r.Len())
	}
	return mb, nil
}
