package consensus

import "github.com/fxamacker/cbor/v2"

// NftContent is the schema every badge value must follow.
type NftContent struct {
	Name        string `cbor:"name" json:"name"`
	Description string `cbor:"description" json:"description"`
	Ticker      string `cbor:"ticker" json:"ticker"`
	URL         string `cbor:"url" json:"url"`
	Image       string `cbor:"image" json:"image"`
	SupplyLimit uint64 `cbor:"supply_limit" json:"supply_limit"`
	Decimals    uint8  `cbor:"decimals" json:"decimals"`
}

// nftContentWire detects missing fields, which a plain struct decode would
// silently zero.
type nftContentWire struct {
	Name        *string `cbor:"name"`
	Description *string `cbor:"description"`
	Ticker      *string `cbor:"ticker"`
	URL         *string `cbor:"url"`
	Image       *string `cbor:"image"`
	SupplyLimit *uint64 `cbor:"supply_limit"`
	Decimals    *uint8  `cbor:"decimals"`
}

// DecodeNftContent decodes d as NftContent. All fields are required.
func DecodeNftContent(d Data) (NftContent, error) {
	if d.IsEmpty() {
		return NftContent{}, minterr(MINT_ERR_SCHEMA, "badge content is empty")
	}
	var w nftContentWire
	if err := cbor.Unmarshal(d, &w); err != nil {
		return NftContent{}, minterrf(MINT_ERR_SCHEMA, "badge content: %v", err)
	}
	if w.Name == nil || w.Description == nil || w.Ticker == nil || w.URL == nil ||
		w.Image == nil || w.SupplyLimit == nil || w.Decimals == nil {
		return NftContent{}, minterr(MINT_ERR_SCHEMA, "badge content: missing field")
	}
	return NftContent{
		Name:        *w.Name,
		Description: *w.Description,
		Ticker:      *w.Ticker,
		URL:         *w.URL,
		Image:       *w.Image,
		SupplyLimit: *w.SupplyLimit,
		Decimals:    *w.Decimals,
	}, nil
}

// BadgeIdentity is the app identity a badge minted by spending utxo must
// carry.
func BadgeIdentity(utxo UtxoID) B32 {
	return B32(SingleHash([]byte(utxo.String())))
}

// VerifyBadgeMint checks the one-time badge rule: the first spent input
// hashes to the app identity and exactly one output carries a well-formed
// badge value.
func (c *Contract) VerifyBadgeMint(app App, tx *Transaction) error {
	if tx == nil {
		return minterr(MINT_ERR_DECODE, "nil transaction")
	}
	if len(tx.Ins) == 0 {
		return minterr(MINT_ERR_IDENTITY_MISMATCH, "badge mint spends no inputs")
	}
	want := BadgeIdentity(tx.Ins[0])
	if want != app.Identity {
		return minterrf(MINT_ERR_IDENTITY_MISMATCH, "hash of %s is %s, app identity is %s", tx.Ins[0], want, app.Identity)
	}

	values := charmValues(app, tx.Outs)
	if len(values) != 1 {
		return minterrf(MINT_ERR_SCHEMA, "want exactly 1 badge output, got %d", len(values))
	}
	if _, err := DecodeNftContent(values[0]); err != nil {
		return err
	}
	return nil
}
