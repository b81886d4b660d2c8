package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"bro.dev/mint/consensus"
)

type Request struct {
	Op string `json:"op"`

	ChallengeTxID string `json:"challenge_txid,omitempty"`
	Vout          uint32 `json:"vout,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	HashHex       string `json:"hash,omitempty"`

	BlockTime  uint64 `json:"block_time,omitempty"`
	Clz        int    `json:"clz,omitempty"`
	Deployment string `json:"deployment,omitempty"`

	TxHex string `json:"tx_hex,omitempty"`
	Utxo  string `json:"utxo,omitempty"`

	Verify *consensus.VerifyRequest `json:"verify,omitempty"`
}

type Response struct {
	Ok        bool    `json:"ok"`
	Err       string  `json:"err,omitempty"`
	HashHex   string  `json:"hash,omitempty"`
	Clz       *int    `json:"clz,omitempty"`
	Amount    *uint64 `json:"amount,omitempty"`
	Nonce     *string `json:"nonce,omitempty"`
	Challenge string  `json:"challenge,omitempty"`
	Identity  string  `json:"identity,omitempty"`
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func writeConsensusErr(w io.Writer, err error) {
	if code, ok := consensus.CodeOf(err); ok {
		writeResp(w, Response{Ok: false, Err: string(code)})
		return
	}
	writeResp(w, Response{Ok: false, Err: err.Error()})
}

func resolveParams(name string) (consensus.Params, error) {
	if strings.TrimSpace(name) == "" {
		return consensus.Testnet4Params(), nil
	}
	return consensus.DeploymentParams(name)
}

func runFromStdin() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResp(os.Stdout, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return
	}

	switch req.Op {
	case "mining_hash":
		h := consensus.ComputeMiningHash(req.ChallengeTxID, req.Vout, req.Nonce)
		clz := consensus.LeadingZeroBits(h[:])
		writeResp(os.Stdout, Response{Ok: true, HashHex: hex.EncodeToString(h[:]), Clz: &clz})
		return

	case "leading_zero_bits":
		b, err := hex.DecodeString(req.HashHex)
		if err != nil {
			writeResp(os.Stdout, Response{Ok: false, Err: "bad hex"})
			return
		}
		clz := consensus.LeadingZeroBits(b)
		writeResp(os.Stdout, Response{Ok: true, Clz: &clz})
		return

	case "mined_amount":
		p, err := resolveParams(req.Deployment)
		if err != nil {
			writeResp(os.Stdout, Response{Ok: false, Err: err.Error()})
			return
		}
		if req.Clz < 0 || req.Clz > 256 {
			writeResp(os.Stdout, Response{Ok: false, Err: "bad clz"})
			return
		}
		amount := consensus.ComputeReward(req.BlockTime, req.Clz, p.Reward)
		writeResp(os.Stdout, Response{Ok: true, Amount: &amount})
		return

	case "extract_nonce":
		tx, err := consensus.DecodeMiningTx(req.TxHex)
		if err != nil {
			writeConsensusErr(os.Stdout, err)
			return
		}
		challenge, err := consensus.ExtractChallenge(tx)
		if err != nil {
			writeConsensusErr(os.Stdout, err)
			return
		}
		nonce, err := consensus.ExtractNonce(tx)
		if err != nil {
			writeConsensusErr(os.Stdout, err)
			return
		}
		writeResp(os.Stdout, Response{Ok: true, Nonce: &nonce, Challenge: challenge.String()})
		return

	case "utxo_hash":
		utxo, err := consensus.ParseUtxoID(req.Utxo)
		if err != nil {
			writeResp(os.Stdout, Response{Ok: false, Err: "bad utxo"})
			return
		}
		writeResp(os.Stdout, Response{Ok: true, Identity: consensus.BadgeIdentity(utxo).String()})
		return

	case "verify":
		if req.Verify == nil {
			writeResp(os.Stdout, Response{Ok: false, Err: "missing verify"})
			return
		}
		p, err := resolveParams(req.Deployment)
		if err != nil {
			writeResp(os.Stdout, Response{Ok: false, Err: err.Error()})
			return
		}
		c, err := consensus.NewContract(p, nil)
		if err != nil {
			writeResp(os.Stdout, Response{Ok: false, Err: err.Error()})
			return
		}
		app, tx, x, w, err := req.Verify.Decode()
		if err != nil {
			writeConsensusErr(os.Stdout, err)
			return
		}
		minted, err := c.Evaluate(app, tx, x, w)
		if err != nil {
			writeConsensusErr(os.Stdout, err)
			return
		}
		if minted != nil {
			writeResp(os.Stdout, Response{
				Ok:      true,
				HashHex: hex.EncodeToString(minted.Hash[:]),
				Clz:     &minted.Clz,
				Amount:  &minted.Amount,
			})
			return
		}
		writeResp(os.Stdout, Response{Ok: true})
		return

	default:
		writeResp(os.Stdout, Response{Ok: false, Err: "unknown op"})
		return
	}
}
