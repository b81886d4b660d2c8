package consensus

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AppJSON is the textual form of an App.
type AppJSON struct {
	Tag      string `json:"tag"`
	Identity string `json:"identity"`
	VK       string `json:"vk"`
}

// OutputJSON is the value one settlement output carries for the request's
// app. At most one of Amount, Nft, and Raw may be set; none means the
// output carries nothing for the app.
type OutputJSON struct {
	Amount *uint64     `json:"amount,omitempty"`
	Nft    *NftContent `json:"nft,omitempty"`
	// Raw is hex-encoded CBOR, passed through undecoded.
	Raw string `json:"raw,omitempty"`
}

// VerifyRequest is a self-contained mint verification request as accepted
// by the command line tools.
type VerifyRequest struct {
	App  AppJSON      `json:"app"`
	Ins  []string     `json:"ins"`
	Outs []OutputJSON `json:"outs"`
	// X is hex-encoded CBOR. Empty means no side-channel input.
	X string        `json:"x,omitempty"`
	W *PrivateInput `json:"w,omitempty"`
}

func decodeDataHex(name, s string) (Data, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: bad hex: %w", name, err)
	}
	return Data(b), nil
}

// Decode converts the request into contract inputs.
func (r *VerifyRequest) Decode() (App, *Transaction, Data, Data, error) {
	if len(r.App.Tag) != 1 {
		return App{}, nil, nil, nil, fmt.Errorf("app.tag: want one character, got %q", r.App.Tag)
	}
	identity, err := ParseB32(r.App.Identity)
	if err != nil {
		return App{}, nil, nil, nil, fmt.Errorf("app.identity: %w", err)
	}
	vk, err := ParseB32(r.App.VK)
	if err != nil {
		return App{}, nil, nil, nil, fmt.Errorf("app.vk: %w", err)
	}
	app, err := NewApp(r.App.Tag[0], identity, vk)
	if err != nil {
		return App{}, nil, nil, nil, err
	}

	tx := &Transaction{
		Ins:  make([]UtxoID, 0, len(r.Ins)),
		Outs: make([]Charms, 0, len(r.Outs)),
	}
	for i, s := range r.Ins {
		u, err := ParseUtxoID(s)
		if err != nil {
			return App{}, nil, nil, nil, fmt.Errorf("ins[%d]: %w", i, err)
		}
		tx.Ins = append(tx.Ins, u)
	}
	for i, o := range r.Outs {
		charms := Charms{}
		var (
			v   Data
			set int
		)
		if o.Amount != nil {
			set++
			if v, err = NewData(*o.Amount); err != nil {
				return App{}, nil, nil, nil, fmt.Errorf("outs[%d]: %w", i, err)
			}
		}
		if o.Nft != nil {
			set++
			if v, err = NewData(o.Nft); err != nil {
				return App{}, nil, nil, nil, fmt.Errorf("outs[%d]: %w", i, err)
			}
		}
		if o.Raw != "" {
			set++
			if v, err = decodeDataHex(fmt.Sprintf("outs[%d].raw", i), o.Raw); err != nil {
				return App{}, nil, nil, nil, err
			}
		}
		if set > 1 {
			return App{}, nil, nil, nil, fmt.Errorf("outs[%d]: amount, nft and raw are exclusive", i)
		}
		if set == 1 {
			charms[app] = v
		}
		tx.Outs = append(tx.Outs, charms)
	}

	x, err := decodeDataHex("x", r.X)
	if err != nil {
		return App{}, nil, nil, nil, err
	}
	w := EmptyData()
	if r.W != nil {
		if w, err = NewData(r.W); err != nil {
			return App{}, nil, nil, nil, fmt.Errorf("w: %w", err)
		}
	}
	return app, tx, x, w, nil
}
