package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bro.dev/mint/consensus"
	"bro.dev/mint/journal"
)

type verifyItem struct {
	source string
	index  int
	raw    []byte
}

type verifyResult struct {
	Source        string  `json:"source"`
	Index         int     `json:"index"`
	ID            string  `json:"id"`
	Ok            bool    `json:"ok"`
	Code          string  `json:"code,omitempty"`
	Error         string  `json:"error,omitempty"`
	Tag           string  `json:"tag,omitempty"`
	MiningTxID    string  `json:"mining_txid,omitempty"`
	Clz           *int    `json:"clz,omitempty"`
	Amount        *uint64 `json:"amount,omitempty"`
	AmountDisplay string  `json:"amount_display,omitempty"`
	// ClaimedBy is the journal sequence of an earlier successful mint of
	// the same mining transaction.
	ClaimedBy *uint64 `json:"claimed_by,omitempty"`

	record *journal.Record
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "verify mint requests read from JSON files (object or array), '-' for stdin",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "decimals", Value: 8, Usage: "decimals used to display token amounts"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("verify: at least one FILE is required", 2)
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()

			var items []verifyItem
			for _, name := range c.Args().Slice() {
				got, err := readVerifyItems(name, c.App.Reader)
				if err != nil {
					return err
				}
				items = append(items, got...)
			}

			contract, err := consensus.NewContract(e.params, e.logger)
			if err != nil {
				return err
			}
			results, err := verifyAll(c, contract, items, e.cfg.Workers, int32(c.Int("decimals")))
			if err != nil {
				return err
			}

			if e.cfg.Journal.Path != "" {
				if err := journalResults(e, results); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetEscapeHTML(false)
			rejected := 0
			for _, r := range results {
				if !r.Ok {
					rejected++
				}
				if err := enc.Encode(r); err != nil {
					return errors.Wrap(err, "write result")
				}
			}
			if rejected > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d mints rejected", rejected, len(results)), 1)
			}
			return nil
		},
	}
}

// readVerifyItems splits one input into requests. Each request keeps its
// compacted JSON bytes, which identify it in the journal.
func readVerifyItems(name string, stdin io.Reader) ([]verifyItem, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(name) // #nosec G304 -- operator-supplied input file.
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}

	trimmed := bytes.TrimSpace(b)
	var raws []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
	} else {
		raws = []json.RawMessage{trimmed}
	}

	out := make([]verifyItem, 0, len(raws))
	for i, raw := range raws {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, errors.Wrapf(err, "parse %s[%d]", name, i)
		}
		out = append(out, verifyItem{source: name, index: i, raw: buf.Bytes()})
	}
	return out, nil
}

func verifyAll(c *cli.Context, contract *consensus.Contract, items []verifyItem, workers int, decimals int32) ([]*verifyResult, error) {
	results := make([]*verifyResult, len(items))
	eg, ctx := errgroup.WithContext(c.Context)
	eg.SetLimit(workers)
	for i := range items {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = verifyOne(contract, items[i], decimals)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, "verify")
	}
	return results, nil
}

func verifyOne(contract *consensus.Contract, item verifyItem, decimals int32) *verifyResult {
	id := journal.RecordID(item.raw)
	res := &verifyResult{
		Source: item.source,
		Index:  item.index,
		ID:     hex.EncodeToString(id[:]),
	}
	rec := &journal.Record{ID: id, VerifiedAt: time.Now().Unix()}
	res.record = rec

	var req consensus.VerifyRequest
	if err := json.Unmarshal(item.raw, &req); err != nil {
		res.fail(consensus.MINT_ERR_DECODE, err)
		return res
	}
	app, tx, x, w, err := req.Decode()
	if err != nil {
		code, ok := consensus.CodeOf(err)
		if !ok {
			code = consensus.MINT_ERR_DECODE
		}
		res.fail(code, err)
		return res
	}
	res.Tag = app.Tag.String()
	rec.Tag = byte(app.Tag)
	rec.Identity = app.Identity

	minted, err := contract.Evaluate(app, tx, x, w)
	if err != nil {
		code, _ := consensus.CodeOf(err)
		res.fail(code, err)
		return res
	}
	res.Ok = true
	rec.Ok = true
	if minted != nil {
		res.MiningTxID = minted.MiningTxID.String()
		res.Clz = &minted.Clz
		res.Amount = &minted.Amount
		res.AmountDisplay = consensus.FormatAmount(minted.Amount, decimals)
		rec.MiningTxID = minted.MiningTxID
		rec.Amount = minted.Amount
		rec.BlockTime = minted.BlockTime
		rec.Clz = uint16(minted.Clz) // #nosec G115 -- clz is at most 256.
	}
	return res
}

func (r *verifyResult) fail(code consensus.ErrorCode, err error) {
	r.Ok = false
	r.Code = string(code)
	r.Error = err.Error()
	r.record.Ok = false
	r.record.Code = string(code)
	r.record.Msg = err.Error()
}

func journalResults(e *env, results []*verifyResult) error {
	db, err := journal.Open(e.cfg.Journal.Path, e.params.Name, e.params.Version)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, r := range results {
		if r.Ok && r.record.MiningTxID != ([32]byte{}) {
			prev, ok, err := db.Claim(r.record.MiningTxID)
			if err != nil {
				return err
			}
			if ok && prev.ID != r.record.ID {
				seq := prev.Seq
				r.ClaimedBy = &seq
				e.logger.Warn(
					"mining tx already claimed",
					zap.String("mining_txid", r.MiningTxID),
					zap.Uint64("claimed_by", seq),
				)
			}
		}
		if _, _, err := db.Put(r.record); err != nil {
			return err
		}
	}
	return nil
}
