package journal

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, dir string) *DB {
	t.Helper()
	db, err := Open(dir, "regtest", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRecord(id string, ok bool) *Record {
	r := &Record{
		ID:         RecordID([]byte(id)),
		VerifiedAt: 1756786800,
		Ok:         ok,
		Tag:        't',
		Identity:   [32]byte{0x11},
		Amount:     25_600_000_000,
		BlockTime:  1756786801,
		Clz:        16,
	}
	if !ok {
		r.Amount = 0
		r.Code = "MINT_ERR_AMOUNT_MISMATCH"
		r.Msg = "minted 1, expected 2"
	}
	return r
}

func TestRecordEncodingRoundTrip(t *testing.T) {
	r := sampleRecord("a", false)
	r.MiningTxID = [32]byte{0xaa, 0xbb}
	r.VerifiedAt = -5

	b, err := encodeRecord(r)
	require.NoError(t, err)
	got, err := decodeRecord(9, b)
	require.NoError(t, err)

	want := *r
	want.Seq = 9
	assert.Equal(t, &want, got)
}

func TestDecodeRecordRejectsCorruption(t *testing.T) {
	b, err := encodeRecord(sampleRecord("a", false))
	require.NoError(t, err)

	_, err = decodeRecord(1, b[:len(b)-1])
	assert.Error(t, err)
	_, err = decodeRecord(1, append(append([]byte(nil), b...), 0))
	assert.Error(t, err)
	_, err = decodeRecord(1, b[:10])
	assert.Error(t, err)

	bad := append([]byte(nil), b...)
	bad[40] = 7
	_, err = decodeRecord(1, bad)
	assert.Error(t, err)
}

func TestEncodeRecordRejectsOversizedText(t *testing.T) {
	r := sampleRecord("a", false)
	r.Msg = string(make([]byte, maxTextLen+1))
	_, err := encodeRecord(r)
	assert.Error(t, err)
}

func hexOf(b [32]byte) string { return hex.EncodeToString(b[:]) }

func TestRecordIDIsSHA3(t *testing.T) {
	id := RecordID([]byte("abc"))
	assert.Equal(t, "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532", hexOf(id))
}

func TestOpenWritesManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	db := openTest(t, dir)

	m := db.Manifest()
	require.NotNil(t, m)
	assert.Equal(t, SchemaVersionV1, m.SchemaVersion)
	assert.Equal(t, "regtest", m.Deployment)
	assert.Equal(t, uint32(1), m.ParamsVersion)
	assert.Equal(t, dir, db.Dir())

	onDisk, err := readManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, m, onDisk)

	_, err = os.Stat(filepath.Join(dir, "MANIFEST.json.pending"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenRejectsOtherDeployment(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, "regtest", 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(dir, "mainnet", 1)
	assert.Error(t, err)
	_, err = Open(dir, "regtest", 2)
	assert.Error(t, err)

	db, err = Open(dir, "regtest", 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeManifestAtomic(dir, &Manifest{SchemaVersion: 2, Deployment: "regtest", ParamsVersion: 1}))
	_, err := Open(dir, "regtest", 1)
	assert.Error(t, err)
}

func TestOpenRequiresArguments(t *testing.T) {
	_, err := Open("", "regtest", 1)
	assert.Error(t, err)
	_, err = Open(t.TempDir(), "", 1)
	assert.Error(t, err)
}

func TestPutGetAndDeduplicate(t *testing.T) {
	db := openTest(t, t.TempDir())

	r1 := sampleRecord("first", true)
	seq, inserted, err := db.Put(r1)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, uint64(1), r1.Seq)

	again := sampleRecord("first", false)
	seq, inserted, err = db.Put(again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, uint64(1), seq)

	got, ok, err := db.Get(r1.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r1, got)

	_, ok, err = db.Get(RecordID([]byte("missing")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimIndexesFirstSuccess(t *testing.T) {
	db := openTest(t, t.TempDir())
	txid := [32]byte{0x42}

	rejected := sampleRecord("rejected", false)
	rejected.MiningTxID = txid
	_, _, err := db.Put(rejected)
	require.NoError(t, err)
	_, ok, err := db.Claim(txid)
	require.NoError(t, err)
	assert.False(t, ok, "rejected mints are not claims")

	first := sampleRecord("first", true)
	first.MiningTxID = txid
	_, _, err = db.Put(first)
	require.NoError(t, err)

	second := sampleRecord("second", true)
	second.MiningTxID = txid
	_, _, err = db.Put(second)
	require.NoError(t, err)

	claim, ok, err := db.Claim(txid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, claim.ID)

	badge := sampleRecord("badge", true)
	badge.Tag = 'n'
	badge.Amount = 0
	_, _, err = db.Put(badge)
	require.NoError(t, err)
	_, ok, err = db.Claim([32]byte{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestForEachAndStats(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, "regtest", 1)
	require.NoError(t, err)

	a, c := sampleRecord("a", true), sampleRecord("c", true)
	a.MiningTxID = [32]byte{0x0a}
	c.MiningTxID = [32]byte{0x0c}
	for _, r := range []*Record{
		a,
		sampleRecord("b", false),
		c,
		sampleRecord("d", false),
	} {
		_, _, err := db.Put(r)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	// Survives reopen.
	db = openTest(t, dir)

	var seqs []uint64
	require.NoError(t, db.ForEach(0, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4}, seqs)

	seqs = nil
	require.NoError(t, db.ForEach(2, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{3, 4}, seqs)

	stop := errors.New("stop")
	n := 0
	err = db.ForEach(0, func(*Record) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)

	s, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s.Total)
	assert.Equal(t, uint64(2), s.Ok)
	assert.Equal(t, uint64(2), s.Rejected)
	assert.Equal(t, uint64(51_200_000_000), s.Minted)
	assert.Equal(t, map[string]uint64{"MINT_ERR_AMOUNT_MISMATCH": 2}, s.ByCode)
}

func TestStatsCountsEachClaimOnce(t *testing.T) {
	db := openTest(t, t.TempDir())

	first := sampleRecord("first", true)
	first.MiningTxID = [32]byte{0x01}
	again := sampleRecord("again", true)
	again.MiningTxID = first.MiningTxID
	badge := sampleRecord("badge", true)
	badge.Tag = 'n'
	badge.Amount = 0
	for _, r := range []*Record{first, again, badge} {
		_, _, err := db.Put(r)
		require.NoError(t, err)
	}

	s, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s.Ok)
	assert.Equal(t, uint64(1), s.Reclaimed)
	assert.Equal(t, first.Amount, s.Minted)
}

func TestStatsSaturatesMinted(t *testing.T) {
	db := openTest(t, t.TempDir())

	for i, id := range []string{"x", "y"} {
		r := sampleRecord(id, true)
		r.MiningTxID = [32]byte{byte(i + 1)}
		r.Amount = ^uint64(0) - 1
		_, _, err := db.Put(r)
		require.NoError(t, err)
	}

	s, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), s.Minted)
}
