package consensus

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Challenge is the outpoint spent by a mining transaction's first input.
type Challenge struct {
	TxID chainhash.Hash
	Vout uint32
}

// String renders "<txid>:<vout>" with the txid in display (byte-reversed)
// hex.
func (c Challenge) String() string {
	return fmt.Sprintf("%s:%d", c.TxID, c.Vout)
}

func ExtractChallenge(tx *wire.MsgTx) (Challenge, error) {
	if tx == nil || len(tx.TxIn) == 0 || tx.TxIn[0] == nil {
		return Challenge{}, minterr(MINT_ERR_MALFORMED_NONCE, "mining tx has no inputs")
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return Challenge{TxID: prev.Hash, Vout: prev.Index}, nil
}

// ExtractNonce reads the nonce from the mining transaction's first output,
// which must be an OP_RETURN script whose single length byte at offset 1
// covers exactly the remaining payload.
func ExtractNonce(tx *wire.MsgTx) (string, error) {
	if tx == nil || len(tx.TxOut) == 0 || tx.TxOut[0] == nil {
		return "", minterr(MINT_ERR_MALFORMED_NONCE, "mining tx has no outputs")
	}
	script := tx.TxOut[0].PkScript
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return "", minterr(MINT_ERR_MALFORMED_NONCE, "first output is not OP_RETURN")
	}
	if len(script) < 2 {
		return "", minterr(MINT_ERR_MALFORMED_NONCE, "OP_RETURN without push length")
	}
	if len(script) != int(script[1])+2 {
		return "", minterrf(MINT_ERR_MALFORMED_NONCE, "push length %d does not match payload length %d", script[1], len(script)-2)
	}
	payload := script[2:]
	if !utf8.Valid(payload) {
		return "", minterr(MINT_ERR_MALFORMED_NONCE, "nonce is not valid UTF-8")
	}
	return string(payload), nil
}

// BuildHashInput returns the mining hash preimage
// "<challenge_txid>:<vout><nonce>". There is no separator between vout and
// nonce.
func BuildHashInput(challengeTxID string, vout uint32, nonce string) string {
	buf := make([]byte, 0, len(challengeTxID)+1+10+len(nonce))
	buf = append(buf, challengeTxID...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(vout), 10)
	buf = append(buf, nonce...)
	return string(buf)
}

// ComputeMiningHash double-hashes the preimage built by BuildHashInput.
func ComputeMiningHash(challengeTxID string, vout uint32, nonce string) [32]byte {
	return DoubleHash([]byte(BuildHashInput(challengeTxID, vout, nonce)))
}
