package consensus

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
)

// PrivateInput is the witness of a token mint.
type PrivateInput struct {
	// Tx is the hex-encoded mining transaction.
	Tx string `cbor:"tx" json:"tx"`
	// TxBlockProof is the hex-encoded merkle block proving Tx's inclusion.
	TxBlockProof string `cbor:"tx_block_proof" json:"tx_block_proof"`
}

// TokenMint describes a token mint that passed verification.
type TokenMint struct {
	MiningTxID chainhash.Hash
	BlockHash  chainhash.Hash
	BlockTime  uint64
	Challenge  Challenge
	Nonce      string
	Hash       [32]byte
	Clz        int
	Amount     uint64
}

// VerifyTokenMint checks a proof-of-work token mint.
func (c *Contract) VerifyTokenMint(app App, tx *Transaction, w Data) error {
	_, err := c.EvaluateTokenMint(app, tx, w)
	return err
}

// EvaluateTokenMint runs the token rule and, on success, returns the
// values it derived. Steps run in order and the first failure wins.
func (c *Contract) EvaluateTokenMint(app App, tx *Transaction, w Data) (*TokenMint, error) {
	if tx == nil {
		return nil, minterr(MINT_ERR_DECODE, "nil transaction")
	}

	// Decode.
	var in PrivateInput
	if err := w.Value(&in); err != nil {
		return nil, minterrf(MINT_ERR_DECODE, "witness: %v", err)
	}
	miningTx, err := DecodeMiningTx(in.Tx)
	if err != nil {
		return nil, err
	}
	proof, err := DecodeMerkleBlock(in.TxBlockProof)
	if err != nil {
		return nil, err
	}

	// Bind.
	miningTxID := miningTx.TxHash()
	if len(tx.Ins) == 0 {
		return nil, minterr(MINT_ERR_IDENTITY_MISMATCH, "settlement tx spends no inputs")
	}
	if tx.Ins[0].TxID != miningTxID {
		return nil, minterrf(MINT_ERR_IDENTITY_MISMATCH, "first input spends %s, mining tx is %s", tx.Ins[0].TxID, miningTxID)
	}

	// Prove inclusion.
	matches, _, err := ExtractMatches(proof)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 || matches[0] != miningTxID {
		return nil, minterrf(MINT_ERR_NOT_INCLUDED, "proof does not match mining tx %s", miningTxID)
	}

	// Prove difficulty.
	if err := CheckProofOfWork(&proof.Header, c.params.MinTargetBits); err != nil {
		return nil, err
	}

	// Extract.
	challenge, err := ExtractChallenge(miningTx)
	if err != nil {
		return nil, err
	}
	nonce, err := ExtractNonce(miningTx)
	if err != nil {
		return nil, err
	}

	// Hash.
	hash := ComputeMiningHash(challenge.TxID.String(), challenge.Vout, nonce)
	clz := LeadingZeroBits(hash[:])

	// Expected reward.
	blockTime := uint64(proof.Header.Timestamp.Unix())
	expected := ComputeReward(blockTime, clz, c.params.Reward)

	c.logger.Debug(
		"token mint evaluated",
		zap.Stringer("mining_txid", miningTxID),
		zap.Uint64("block_time", blockTime),
		zap.String("hash", hex.EncodeToString(hash[:])),
		zap.Int("clz", clz),
		zap.Uint64("expected_amount", expected),
	)

	// Compare against the designated output.
	if len(tx.Outs) == 0 {
		return nil, minterr(MINT_ERR_AMOUNT_MISMATCH, "settlement tx has no outputs")
	}
	v, ok := tx.Outs[0][app]
	if !ok {
		return nil, minterr(MINT_ERR_AMOUNT_MISMATCH, "first output carries no token amount")
	}
	// CBOR null and undefined leave the pointer nil; neither is an amount.
	var minted *uint64
	if err := v.Value(&minted); err != nil {
		return nil, minterrf(MINT_ERR_AMOUNT_MISMATCH, "token amount: %v", err)
	}
	if minted == nil {
		return nil, minterr(MINT_ERR_AMOUNT_MISMATCH, "token amount is null")
	}
	if *minted != expected {
		return nil, minterrf(MINT_ERR_AMOUNT_MISMATCH, "minted %d, expected %d", *minted, expected)
	}

	return &TokenMint{
		MiningTxID: miningTxID,
		BlockHash:  proof.Header.BlockHash(),
		BlockTime:  blockTime,
		Challenge:  challenge,
		Nonce:      nonce,
		Hash:       hash,
		Clz:        clz,
		Amount:     expected,
	}, nil
}
