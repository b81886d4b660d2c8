package consensus

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func mustHash(t *testing.T, s string) chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		t.Fatalf("NewHashFromStr(%q): %v", s, err)
	}
	return *h
}

func mustB32(t *testing.T, s string) B32 {
	t.Helper()
	b, err := ParseB32(s)
	if err != nil {
		t.Fatalf("ParseB32(%q): %v", s, err)
	}
	return b
}

func mustData(t *testing.T, v any) Data {
	t.Helper()
	d, err := NewData(v)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}
	return d
}

func nonceScript(nonce string) []byte {
	return append([]byte{txscript.OP_RETURN, byte(len(nonce))}, nonce...)
}

// buildMiningTx returns a transaction spending challenge whose first output
// commits to nonce.
func buildMiningTx(challenge wire.OutPoint, nonce string) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&challenge, nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, nonceScript(nonce)))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	return tx
}

func serializeTxHex(t *testing.T, tx *wire.MsgTx) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("serialize tx: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

func serializeMerkleBlockHex(t *testing.T, mb *wire.MsgMerkleBlock) string {
	t.Helper()
	var buf bytes.Buffer
	if err := mb.BtcEncode(&buf, wire.ProtocolVersion, wire.BaseEncoding); err != nil {
		t.Fatalf("encode merkle block: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// partialTreeBuilder produces BIP37 partial merkle trees for tests.
type partialTreeBuilder struct {
	txids  []chainhash.Hash
	match  []bool
	hashes []*chainhash.Hash
	bits   []bool
}

func (b *partialTreeBuilder) width(height uint32) uint32 {
	n := uint32(len(b.txids))
	return (n + (1 << height) - 1) >> height
}

func (b *partialTreeBuilder) calcHash(height, pos uint32) chainhash.Hash {
	if height == 0 {
		return b.txids[pos]
	}
	left := b.calcHash(height-1, pos*2)
	right := left
	if pos*2+1 < b.width(height-1) {
		right = b.calcHash(height-1, pos*2+1)
	}
	return merkleParent(&left, &right)
}

func (b *partialTreeBuilder) build(height, pos uint32) {
	parentOfMatch := false
	for p := pos << height; p < (pos+1)<<height && p < uint32(len(b.txids)); p++ {
		parentOfMatch = parentOfMatch || b.match[p]
	}
	b.bits = append(b.bits, parentOfMatch)
	if height == 0 || !parentOfMatch {
		h := b.calcHash(height, pos)
		b.hashes = append(b.hashes, &h)
		return
	}
	b.build(height-1, pos*2)
	if pos*2+1 < b.width(height-1) {
		b.build(height-1, pos*2+1)
	}
}

func (b *partialTreeBuilder) height() uint32 {
	var h uint32
	for b.width(h) > 1 {
		h++
	}
	return h
}

// buildMerkleBlock returns an unmined merkle block over txids that proves
// the entries at the matched positions.
func buildMerkleBlock(txids []chainhash.Hash, matched ...int) *wire.MsgMerkleBlock {
	b := &partialTreeBuilder{txids: txids, match: make([]bool, len(txids))}
	for _, i := range matched {
		b.match[i] = true
	}
	h := b.height()
	b.build(h, 0)

	flags := make([]byte, (len(b.bits)+7)/8)
	for i, set := range b.bits {
		if set {
			flags[i/8] |= 1 << (i % 8)
		}
	}
	header := wire.NewBlockHeader(
		0x20000000,
		&chainhash.Hash{0x01},
		func() *chainhash.Hash { r := b.calcHash(h, 0); return &r }(),
		regtestMinTargetBits,
		0,
	)
	return &wire.MsgMerkleBlock{
		Header:       *header,
		Transactions: uint32(len(txids)),
		Hashes:       b.hashes,
		Flags:        flags,
	}
}

// mineHeader searches nonces until header meets its declared target. Only
// practical for very loose targets.
func mineHeader(t *testing.T, header *wire.BlockHeader) {
	t.Helper()
	target := blockchain.CompactToBig(header.Bits)
	for i := 0; i < 1<<16; i++ {
		h := header.BlockHash()
		if blockchain.HashToBig(&h).Cmp(target) <= 0 {
			return
		}
		header.Nonce++
	}
	t.Fatalf("no nonce found for bits 0x%08x", header.Bits)
}

func fillerTxids(n int) []chainhash.Hash {
	out := make([]chainhash.Hash, n)
	for i := range out {
		out[i] = chainhash.DoubleHashH([]byte{byte(i), 0xab})
	}
	return out
}

// tokenFixture is a complete, valid token mint at regtest difficulty.
type tokenFixture struct {
	challenge wire.OutPoint
	nonce     string
	miningTx  *wire.MsgTx
	proof     *wire.MsgMerkleBlock
	app       App
	tx        *Transaction
	w         PrivateInput
	amount    uint64
}

const (
	fixtureChallengeTxID = "3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f3f"
	fixtureNonce         = "3afc4"
	// fixtureClz is the leading-zero count of the mining hash of
	// fixtureChallengeTxID:1 with fixtureNonce.
	fixtureClz = 16
	// zeroClzNonce hashes with fixtureChallengeTxID:1 to a digest whose top
	// bit is set, so the expected reward is 0.
	zeroClzNonce = "a"
)

func newTokenFixture(t *testing.T, blockTime uint64) *tokenFixture {
	t.Helper()
	return newTokenFixtureWithNonce(t, blockTime, fixtureNonce, fixtureClz)
}

func newTokenFixtureWithNonce(t *testing.T, blockTime uint64, nonce string, clz int) *tokenFixture {
	t.Helper()
	f := &tokenFixture{
		challenge: wire.OutPoint{Hash: mustHash(t, fixtureChallengeTxID), Index: 1},
		nonce:     nonce,
	}
	f.miningTx = buildMiningTx(f.challenge, f.nonce)

	txids := fillerTxids(5)
	txids[3] = f.miningTx.TxHash()
	f.proof = buildMerkleBlock(txids, 3)
	f.proof.Header.Timestamp = time.Unix(int64(blockTime), 0)
	mineHeader(t, &f.proof.Header)

	f.amount = ComputeReward(blockTime, clz, RegtestParams().Reward)
	f.app = App{Tag: TagToken, Identity: B32{0x11}, VK: B32{0x22}}
	f.tx = &Transaction{
		Ins: []UtxoID{{TxID: f.miningTx.TxHash(), Vout: 1}},
		Outs: []Charms{
			{f.app: mustData(t, f.amount)},
		},
	}
	f.w = PrivateInput{
		Tx:           serializeTxHex(t, f.miningTx),
		TxBlockProof: serializeMerkleBlockHex(t, f.proof),
	}
	return f
}

func (f *tokenFixture) witness(t *testing.T) Data {
	t.Helper()
	return mustData(t, f.w)
}

func newTestContract(t *testing.T, params Params) *Contract {
	t.Helper()
	c, err := NewContract(params, nil)
	if err != nil {
		t.Fatalf("NewContract: %v", err)
	}
	return c
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	got, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected %s, got uncoded error %v", code, err)
	}
	if got != code {
		t.Fatalf("code=%s, want %s (%v)", got, code, err)
	}
}
