// Package keyimage implements the Key-Image Store (§4.C): a mapping from
// spent key image to the block index it appeared in, maintained as a
// side-effect of Block Store appends, plus uniform mixin sampling over the
// ledger's historical txo set for the Ring Sampler (§4.H).
package keyimage

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	bolt "go.etcd.io/bbolt"
)

var bucketKeyImages = []byte("key-images")

// Store is the Key-Image Store. It shares no locks with the Block Store; it
// is written by the same single writer (the Ledger Syncer, immediately
// after a successful Block Store append) and read by many.
type Store struct {
	db     *bolt.DB
	ledger *ledger.Store
}

// Open opens (creating if necessary) a Key-Image Store at path, backed by
// ledgerStore for mixin sampling.
func Open(path string, ledgerStore *ledger.Store) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKeyImages)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	return &Store{db: db, ledger: ledgerStore}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordBlock registers every key image a newly appended block reports as
// spent. Call immediately after the corresponding ledger.Store.Append.
func (s *Store) RecordBlock(blockIndex uint64, keyImages [][32]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKeyImages)
		for _, ki := range keyImages {
			if b.Get(ki[:]) != nil {
				return errs.Newf(errs.KindLedgerInconsistent, "keyimage: key image %x already spent", ki)
			}
			var v [8]byte
			binary.BigEndian.PutUint64(v[:], blockIndex)
			if err := b.Put(ki[:], v[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Contains reports whether a key image has ever appeared in the chain.
func (s *Store) Contains(ki [32]byte) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketKeyImages).Get(ki[:]) != nil
		return nil
	})
	return found, err
}

// BlockOf returns the block index a key image appeared in, if any.
func (s *Store) BlockOf(ki [32]byte) (uint64, bool, error) {
	var idx uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketKeyImages).Get(ki[:])
		if raw == nil {
			return nil
		}
		found = true
		idx = binary.BigEndian.Uint64(raw)
		return nil
	})
	return idx, found, err
}

// SampleN uniformly samples n distinct historical txo public keys for use
// as ring mixins, excluding the caller-supplied set of real inputs (§4.C
// sample_n). It fails with KindInsufficientLedger when fewer than
// n+len(exclude) eligible outputs exist in the ledger.
func (s *Store) SampleN(exclude map[[32]byte]struct{}, n int) ([][32]byte, error) {
	total, err := s.ledger.NumTxos()
	if err != nil {
		return nil, err
	}
	if total < uint64(n+len(exclude)) {
		return nil, errs.Newf(errs.KindInsufficientLedger,
			"keyimage: only %d outputs in ledger, need %d (excluding %d reals)", total, n, len(exclude))
	}

	chosen := make(map[uint64]struct{}, n)
	result := make([][32]byte, 0, n)

	const maxAttempts = 64
	for len(result) < n {
		attempts := 0
		for {
			attempts++
			idx, err := randUint64(total)
			if err != nil {
				return nil, errs.Wrap(errs.KindDatabase, err)
			}
			if _, already := chosen[idx]; already {
				if attempts > maxAttempts*n {
					return nil, errs.New(errs.KindInsufficientLedger, "keyimage: sampling retries exhausted")
				}
				continue
			}

			pk, found, err := s.ledger.GetTxOutByGlobalIndex(idx)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if _, excluded := exclude[pk]; excluded {
				if attempts > maxAttempts*n {
					return nil, errs.New(errs.KindInsufficientLedger, "keyimage: sampling retries exhausted")
				}
				continue
			}

			chosen[idx] = struct{}{}
			result = append(result, pk)
			break
		}
	}

	return result, nil
}

func randUint64(bound uint64) (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(bound))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}
