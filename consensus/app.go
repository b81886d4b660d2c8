package consensus

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fxamacker/cbor/v2"
)

// Tag selects which mint rule governs an app.
type Tag byte

const (
	TagBadge Tag = 'n'
	TagToken Tag = 't'
)

func (t Tag) String() string {
	switch t {
	case TagBadge:
		return "badge"
	case TagToken:
		return "token"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// ParseTag accepts only the tags a contract can dispatch on.
func ParseTag(b byte) (Tag, error) {
	switch Tag(b) {
	case TagBadge, TagToken:
		return Tag(b), nil
	default:
		return 0, minterrf(MINT_ERR_UNKNOWN_TAG, "app tag 0x%02x", b)
	}
}

// B32 is a fixed 32-byte identifier.
type B32 [32]byte

func (b B32) String() string { return hex.EncodeToString(b[:]) }

func ParseB32(s string) (B32, error) {
	var out B32
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return out, fmt.Errorf("b32: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("b32: want %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// App binds a contract instance to one token or badge.
type App struct {
	Tag      Tag
	Identity B32
	VK       B32
}

// NewApp builds an App, rejecting tags no rule exists for.
func NewApp(tag byte, identity, vk B32) (App, error) {
	t, err := ParseTag(tag)
	if err != nil {
		return App{}, err
	}
	return App{Tag: t, Identity: identity, VK: vk}, nil
}

func (a App) String() string {
	return fmt.Sprintf("%c/%s/%s", byte(a.Tag), a.Identity, a.VK)
}

// UtxoID references a transaction output on the host chain.
type UtxoID struct {
	TxID chainhash.Hash
	Vout uint32
}

// String renders "<txid>:<vout>" with the txid in display order.
func (u UtxoID) String() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

func ParseUtxoID(s string) (UtxoID, error) {
	txid, vout, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return UtxoID{}, fmt.Errorf("utxo id %q: missing ':'", s)
	}
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil || len(txid) != chainhash.MaxHashStringSize {
		return UtxoID{}, fmt.Errorf("utxo id %q: bad txid", s)
	}
	n, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return UtxoID{}, fmt.Errorf("utxo id %q: bad vout: %w", s, err)
	}
	return UtxoID{TxID: *h, Vout: uint32(n)}, nil
}

// cborNull is the encoding of an explicitly empty value.
var cborNull = []byte{0xf6}

// Data is a CBOR-encoded value attached to an output or passed as
// contract input.
type Data []byte

// EmptyData is the canonical empty value.
func EmptyData() Data { return Data(append([]byte(nil), cborNull...)) }

func NewData(v any) (Data, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return Data(b), nil
}

// IsEmpty reports whether d is absent or CBOR null.
func (d Data) IsEmpty() bool {
	return len(d) == 0 || bytes.Equal(d, cborNull)
}

// Value decodes d into v. Trailing bytes are rejected.
func (d Data) Value(v any) error {
	if len(d) == 0 {
		return fmt.Errorf("data: empty")
	}
	if err := cbor.Unmarshal(d, v); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	return nil
}

// Charms maps apps to the values an output carries for them.
type Charms map[App]Data

// Transaction is the host's read-only view of the settlement transaction.
type Transaction struct {
	Ins  []UtxoID
	Outs []Charms
}

// charmValues collects the values carried for app across outs, in output
// order.
func charmValues(app App, outs []Charms) []Data {
	var out []Data
	for _, charms := range outs {
		if v, ok := charms[app]; ok {
			out = append(out, v)
		}
	}
	return out
}
