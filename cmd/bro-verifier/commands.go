package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"bro.dev/mint/consensus"
	"bro.dev/mint/journal"
)

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "write output")
}

func rewardCommand() *cli.Command {
	return &cli.Command{
		Name:  "reward",
		Usage: "compute the mint amount for a block time and leading-zero count",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "block-time", Required: true, Usage: "block header timestamp (unix seconds)"},
			&cli.IntFlag{Name: "clz", Required: true, Usage: "leading zero bits of the mining hash (0..256)"},
			&cli.IntFlag{Name: "decimals", Value: 8, Usage: "decimals used to display the amount"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()

			clz := c.Int("clz")
			if clz < 0 || clz > 256 {
				return cli.Exit(fmt.Sprintf("reward: clz %d out of range 0..256", clz), 2)
			}
			blockTime := c.Uint64("block-time")
			amount := consensus.ComputeReward(blockTime, clz, e.params.Reward)
			return writeJSON(c, map[string]any{
				"deployment":     e.params.Name,
				"periods":        consensus.HalvingPeriods(blockTime, e.params.Reward),
				"amount":         amount,
				"amount_display": consensus.FormatAmount(amount, int32(c.Int("decimals"))),
			})
		},
	}
}

func paramsCommand() *cli.Command {
	return &cli.Command{
		Name:  "params",
		Usage: "print the resolved deployment parameters",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()
			return writeJSON(c, e.params)
		},
	}
}

func openJournal(c *cli.Context) (*env, *journal.DB, error) {
	e, err := loadEnv(c)
	if err != nil {
		return nil, nil, err
	}
	if e.cfg.Journal.Path == "" {
		e.Close()
		return nil, nil, cli.Exit("journal: no journal configured (use --journal or journal.path)", 2)
	}
	db, err := journal.Open(e.cfg.Journal.Path, e.params.Name, e.params.Version)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, db, nil
}

type recordJSON struct {
	Seq        uint64 `json:"seq"`
	ID         string `json:"id"`
	VerifiedAt int64  `json:"verified_at"`
	Ok         bool   `json:"ok"`
	Tag        string `json:"tag"`
	Identity   string `json:"identity"`
	MiningTxID string `json:"mining_txid,omitempty"`
	Amount     uint64 `json:"amount,omitempty"`
	BlockTime  uint64 `json:"block_time,omitempty"`
	Clz        uint16 `json:"clz,omitempty"`
	Code       string `json:"code,omitempty"`
	Msg        string `json:"msg,omitempty"`
}

func toRecordJSON(r *journal.Record) recordJSON {
	out := recordJSON{
		Seq:        r.Seq,
		ID:         hex.EncodeToString(r.ID[:]),
		VerifiedAt: r.VerifiedAt,
		Ok:         r.Ok,
		Tag:        consensus.Tag(r.Tag).String(),
		Identity:   hex.EncodeToString(r.Identity[:]),
		Amount:     r.Amount,
		BlockTime:  r.BlockTime,
		Clz:        r.Clz,
		Code:       r.Code,
		Msg:        r.Msg,
	}
	if r.MiningTxID != ([32]byte{}) {
		out.MiningTxID = chainhash.Hash(r.MiningTxID).String()
	}
	return out
}

func journalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "inspect the verification journal",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "summarise journaled outcomes",
				Action: func(c *cli.Context) error {
					e, db, err := openJournal(c)
					if err != nil {
						return err
					}
					defer e.Close()
					defer func() { _ = db.Close() }()

					s, err := db.Stats()
					if err != nil {
						return err
					}
					codes := make([]string, 0, len(s.ByCode))
					for code := range s.ByCode {
						codes = append(codes, code)
					}
					sort.Strings(codes)
					rejections := make([]map[string]any, 0, len(codes))
					for _, code := range codes {
						rejections = append(rejections, map[string]any{"code": code, "count": s.ByCode[code]})
					}
					return writeJSON(c, map[string]any{
						"deployment": db.Manifest().Deployment,
						"total":      s.Total,
						"ok":         s.Ok,
						"rejected":   s.Rejected,
						"minted":     s.Minted,
						"reclaimed":  s.Reclaimed,
						"rejections": rejections,
					})
				},
			},
			{
				Name:  "list",
				Usage: "print journaled records as JSON lines",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "after", Usage: "only records with a larger sequence number"},
				},
				Action: func(c *cli.Context) error {
					e, db, err := openJournal(c)
					if err != nil {
						return err
					}
					defer e.Close()
					defer func() { _ = db.Close() }()

					enc := json.NewEncoder(c.App.Writer)
					enc.SetEscapeHTML(false)
					return db.ForEach(c.Uint64("after"), func(r *journal.Record) error {
						return enc.Encode(toRecordJSON(r))
					})
				},
			},
			{
				Name:      "claim",
				Usage:     "show the first successful mint of a mining transaction",
				ArgsUsage: "MINING_TXID",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("journal claim: exactly one MINING_TXID is required", 2)
					}
					txid, err := chainhash.NewHashFromStr(c.Args().First())
					if err != nil || len(c.Args().First()) != chainhash.MaxHashStringSize {
						return cli.Exit("journal claim: bad MINING_TXID", 2)
					}
					e, db, err := openJournal(c)
					if err != nil {
						return err
					}
					defer e.Close()
					defer func() { _ = db.Close() }()

					r, ok, err := db.Claim(*txid)
					if err != nil {
						return err
					}
					if !ok {
						return cli.Exit("journal claim: not claimed", 1)
					}
					return writeJSON(c, toRecordJSON(r))
				},
			},
		},
	}
}
