package journal

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketRecords = []byte("records_by_seq")
	bucketIDs     = []byte("seq_by_record_id")
	bucketClaims  = []byte("seq_by_mining_txid")
)

// DB is an append-only journal of verification outcomes. It is written by
// tooling after a verification returns and is never read by the verifier.
type DB struct {
	dir      string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens or creates the journal in dir. A journal created for one
// deployment cannot be reopened for another.
func Open(dir string, deployment string, paramsVersion uint32) (*DB, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal dir required")
	}
	if deployment == "" {
		return nil, fmt.Errorf("deployment required")
	}
	if err := ensureDir(dir); err != nil {
		return nil, errors.Wrap(err, "open journal")
	}

	bdb, err := bolt.Open(filepath.Join(dir, "journal.db"), 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	d := &DB{dir: dir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketIDs, bucketClaims} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, errors.Wrap(err, "open journal")
	}

	m, err := readManifest(dir)
	switch {
	case os.IsNotExist(err):
		m = &Manifest{
			SchemaVersion: SchemaVersionV1,
			Deployment:    deployment,
			ParamsVersion: paramsVersion,
			CreatedAt:     time.Now().Unix(),
		}
		if err := writeManifestAtomic(dir, m); err != nil {
			_ = bdb.Close()
			return nil, errors.Wrap(err, "open journal")
		}
	case err != nil:
		_ = bdb.Close()
		return nil, errors.Wrap(err, "read manifest")
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	if m.Deployment != deployment || m.ParamsVersion != paramsVersion {
		_ = bdb.Close()
		return nil, fmt.Errorf(
			"journal %s belongs to deployment %s v%d, not %s v%d",
			dir, m.Deployment, m.ParamsVersion, deployment, paramsVersion,
		)
	}
	d.manifest = m
	return d, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Dir() string { return d.dir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

// Put appends r and returns its sequence number. A record whose ID is
// already journaled is not stored again; the existing sequence number is
// returned with inserted=false. The first successful record for a mining
// transaction is indexed as its claim.
func (d *DB) Put(r *Record) (seq uint64, inserted bool, err error) {
	err = d.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketIDs)
		if v := ids.Get(r.ID[:]); v != nil {
			s, err := decodeSeqKey(v)
			if err != nil {
				return err
			}
			seq = s
			return nil
		}

		records := tx.Bucket(bucketRecords)
		s, err := records.NextSequence()
		if err != nil {
			return err
		}
		r.Seq = s
		val, err := encodeRecord(r)
		if err != nil {
			return err
		}
		key := encodeSeqKey(s)
		if err := records.Put(key, val); err != nil {
			return err
		}
		if err := ids.Put(r.ID[:], key); err != nil {
			return err
		}
		if r.Ok && r.MiningTxID != ([32]byte{}) {
			claims := tx.Bucket(bucketClaims)
			if claims.Get(r.MiningTxID[:]) == nil {
				if err := claims.Put(r.MiningTxID[:], key); err != nil {
					return err
				}
			}
		}
		seq = s
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "put record")
	}
	return seq, inserted, nil
}

func (d *DB) getBySeqKey(tx *bolt.Tx, key []byte) (*Record, error) {
	v := tx.Bucket(bucketRecords).Get(key)
	if v == nil {
		return nil, fmt.Errorf("record %x: dangling index", key)
	}
	seq, err := decodeSeqKey(key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(seq, v)
}

// Get returns the record with the given ID.
func (d *DB) Get(id [32]byte) (*Record, bool, error) {
	var out *Record
	err := d.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get(id[:])
		if key == nil {
			return nil
		}
		r, err := d.getBySeqKey(tx, key)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Claim returns the first successful mint journaled for miningTxID.
func (d *DB) Claim(miningTxID [32]byte) (*Record, bool, error) {
	var out *Record
	err := d.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketClaims).Get(miningTxID[:])
		if key == nil {
			return nil
		}
		r, err := d.getBySeqKey(tx, key)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// ForEach calls fn for every record in insertion order, starting after
// sequence number after. Returning an error from fn stops the iteration.
func (d *DB) ForEach(after uint64, fn func(*Record) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Seek(encodeSeqKey(after + 1)); k != nil; k, v = c.Next() {
			seq, err := decodeSeqKey(k)
			if err != nil {
				return err
			}
			r, err := decodeRecord(seq, v)
			if err != nil {
				return err
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

type Stats struct {
	Total    uint64
	Ok       uint64
	Rejected uint64
	// Minted sums Amount over claim-indexed token mints, saturating at the
	// uint64 maximum.
	Minted uint64
	// Reclaimed counts successful records whose mining tx was already
	// claimed by an earlier record. Their amounts are not in Minted.
	Reclaimed uint64
	ByCode    map[string]uint64
}

func (d *DB) Stats() (Stats, error) {
	s := Stats{ByCode: map[string]uint64{}}
	err := d.db.View(func(tx *bolt.Tx) error {
		claims := tx.Bucket(bucketClaims)
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seq, err := decodeSeqKey(k)
			if err != nil {
				return err
			}
			r, err := decodeRecord(seq, v)
			if err != nil {
				return err
			}
			s.Total++
			if !r.Ok {
				s.Rejected++
				s.ByCode[r.Code]++
				continue
			}
			s.Ok++
			if r.MiningTxID == ([32]byte{}) {
				continue
			}
			if !bytes.Equal(claims.Get(r.MiningTxID[:]), k) {
				s.Reclaimed++
				continue
			}
			sum, carry := bits.Add64(s.Minted, r.Amount, 0)
			if carry != 0 {
				sum = math.MaxUint64
			}
			s.Minted = sum
		}
		return nil
	})
	if err != nil {
		return Stats{}, errors.Wrap(err, "journal stats")
	}
	return s, nil
}
