package journal

import (
	"encoding/binary"
	"fmt"

	"bro.dev/mint/crypto"
)

// Record is the journaled outcome of one verification.
type Record struct {
	// Seq is assigned by the journal in insertion order.
	Seq uint64
	// ID identifies the verified request (see RecordID).
	ID         [32]byte
	VerifiedAt int64
	Ok         bool
	Tag        byte
	Identity   [32]byte
	// MiningTxID is zero for badge mints and for token mints rejected
	// before the mining transaction decoded.
	MiningTxID [32]byte
	Amount     uint64
	BlockTime  uint64
	Clz        uint16
	Code       string
	Msg        string
}

// RecordID derives a record id from the canonical bytes of a request.
func RecordID(request []byte) [32]byte {
	return crypto.Std.SHA3_256(request)
}

const (
	recordFixedLen = 32 + 8 + 1 + 1 + 32 + 32 + 8 + 8 + 2
	maxTextLen     = 0xffff
)

func encodeSeqKey(seq uint64) []byte {
	// Big-endian so bbolt's byte order is insertion order.
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], seq)
	return out[:]
}

func decodeSeqKey(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("seq: expected 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeRecord(r *Record) ([]byte, error) {
	if len(r.Code) > maxTextLen || len(r.Msg) > maxTextLen {
		return nil, fmt.Errorf("record: text too large")
	}
	// Layout:
	// id 32 | verified_at i64le | ok u8 | tag u8 | identity 32 | mining_txid 32 |
	// amount u64le | block_time u64le | clz u16le |
	// code_len u16le | code | msg_len u16le | msg
	out := make([]byte, recordFixedLen, recordFixedLen+2+len(r.Code)+2+len(r.Msg))
	off := 0
	copy(out[off:off+32], r.ID[:])
	off += 32
	binary.LittleEndian.PutUint64(out[off:off+8], uint64(r.VerifiedAt)) // #nosec G115 -- round-trips through decodeRecord.
	off += 8
	if r.Ok {
		out[off] = 1
	}
	off++
	out[off] = r.Tag
	off++
	copy(out[off:off+32], r.Identity[:])
	off += 32
	copy(out[off:off+32], r.MiningTxID[:])
	off += 32
	binary.LittleEndian.PutUint64(out[off:off+8], r.Amount)
	off += 8
	binary.LittleEndian.PutUint64(out[off:off+8], r.BlockTime)
	off += 8
	binary.LittleEndian.PutUint16(out[off:off+2], r.Clz)

	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(r.Code))) // #nosec G115 -- checked against maxTextLen above.
	out = append(out, tmp2[:]...)
	out = append(out, r.Code...)
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(r.Msg))) // #nosec G115 -- checked against maxTextLen above.
	out = append(out, tmp2[:]...)
	out = append(out, r.Msg...)
	return out, nil
}

func decodeRecord(seq uint64, b []byte) (*Record, error) {
	if len(b) < recordFixedLen+2+2 {
		return nil, fmt.Errorf("record: truncated")
	}
	r := &Record{Seq: seq}
	off := 0
	copy(r.ID[:], b[off:off+32])
	off += 32
	r.VerifiedAt = int64(binary.LittleEndian.Uint64(b[off : off+8])) // #nosec G115 -- written by encodeRecord.
	off += 8
	switch b[off] {
	case 0:
	case 1:
		r.Ok = true
	default:
		return nil, fmt.Errorf("record: bad ok flag %d", b[off])
	}
	off++
	r.Tag = b[off]
	off++
	copy(r.Identity[:], b[off:off+32])
	off += 32
	copy(r.MiningTxID[:], b[off:off+32])
	off += 32
	r.Amount = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	r.BlockTime = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	r.Clz = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	codeLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+codeLen+2 > len(b) {
		return nil, fmt.Errorf("record: bad code len")
	}
	r.Code = string(b[off : off+codeLen])
	off += codeLen
	msgLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+msgLen != len(b) {
		return nil, fmt.Errorf("record: bad msg len")
	}
	r.Msg = string(b[off:])
	return r, nil
}
