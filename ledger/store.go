// Package ledger implements the Block Store (§4.A): an append-only local
// copy of the blockchain plus the secondary indices needed for txo lookup
// and ring membership proofs. It is backed by bbolt, whose single-writer/
// many-reader MVCC model matches the concurrency policy spec §5 requires
// almost exactly.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/decred/slog"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	bolt "go.etcd.io/bbolt"
)

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Block Store.
func UseLogger(logger slog.Logger) { log = logger }

var (
	bucketBlocks      = []byte("blocks")
	bucketContents    = []byte("contents")
	bucketTxoByPubKey = []byte("txo-by-pubkey")
	bucketTxoSequence = []byte("txo-sequence")
	bucketTxoRecords  = []byte("txo-records")
	bucketMeta        = []byte("meta")

	keyTip = []byte("tip")
)

// MembershipProof is a Merkle inclusion proof for a single global txo index
// relative to the root recorded in a block (§4.A get_membership_proofs).
type MembershipProof struct {
	Index    uint64
	Elements [][32]byte
}

// Store is the Block Store. A single *Store is safe for concurrent use by
// one writer (the Ledger Syncer) and many readers (everything else).
type Store struct {
	db *bolt.DB

	// mu serializes Append calls; bbolt itself already serializes
	// writers, but Append needs to read-then-write the tip atomically
	// across the parent-hash check and the write itself.
	mu sync.Mutex
}

// Open opens (creating if necessary) a Block Store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketContents, bucketTxoByPubKey, bucketTxoSequence, bucketTxoRecords, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindDatabase, err)
	}

	s := &Store{db: db}
	if err := s.recoverTip(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// recoverTip verifies that the recorded tip (if any) is not a trailing
// partial write: every block up to the recorded tip must have matching
// contents. Since bbolt commits a whole Update transaction atomically,
// Append never leaves a block without its contents; this is a defensive
// re-check on reopen (§4.A Durability).
func (s *Store) recoverTip() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		tipBytes := meta.Get(keyTip)
		if tipBytes == nil {
			return nil
		}
		tip := binary.BigEndian.Uint64(tipBytes)

		blocks := tx.Bucket(bucketBlocks)
		contents := tx.Bucket(bucketContents)
		if blocks.Get(indexKey(tip)) == nil || contents.Get(indexKey(tip)) == nil {
			return errs.Newf(errs.KindDatabase, "ledger: trailing partial block at index %d", tip)
		}
		return nil
	})
}

func indexKey(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}

// NumBlocks returns the number of blocks currently stored, i.e. one past
// the highest index (§4.A num_blocks).
func (s *Store) NumBlocks() (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		tipBytes := meta.Get(keyTip)
		if tipBytes == nil {
			n = 0
			return nil
		}
		n = binary.BigEndian.Uint64(tipBytes) + 1
		return nil
	})
	return n, err
}

// Append validates and appends a new block (§4.A append). A block whose
// index is not the next one, whose parent hash does not match the current
// tip's hash, or whose cumulative txo count does not add up fails with
// KindBlockValidation; there is no separate parent-mismatch kind. The
// block's ContentsHash is stored as given and is not recomputed from
// contents.
func (s *Store) Append(block chain.Block, contents chain.BlockContents) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		blocks := tx.Bucket(bucketBlocks)
		contentsBucket := tx.Bucket(bucketContents)
		txoByKey := tx.Bucket(bucketTxoByPubKey)
		txoSeq := tx.Bucket(bucketTxoSequence)
		txoRecords := tx.Bucket(bucketTxoRecords)

		tipBytes := meta.Get(keyTip)
		if tipBytes == nil {
			if block.Index != 0 {
				return errs.Newf(errs.KindBlockValidation, "ledger: expected genesis block at index 0, got %d", block.Index)
			}
		} else {
			tip := binary.BigEndian.Uint64(tipBytes)
			if block.Index != tip+1 {
				return errs.Newf(errs.KindBlockValidation, "ledger: expected next block index %d, got %d", tip+1, block.Index)
			}

			prevBytes := blocks.Get(indexKey(tip))
			var prev chain.Block
			if err := json.Unmarshal(prevBytes, &prev); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
			prevHash := prev.Hash(crypto.Hash256)
			if prevHash != block.ParentHash {
				return errs.Newf(errs.KindBlockValidation, "ledger: parent hash mismatch at index %d", block.Index)
			}
		}

		expectedCumulative := uint64(0)
		if tipBytes != nil {
			tip := binary.BigEndian.Uint64(tipBytes)
			var prev chain.Block
			if err := json.Unmarshal(blocks.Get(indexKey(tip)), &prev); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
			expectedCumulative = prev.CumulativeTxoCount
		}
		if block.CumulativeTxoCount != expectedCumulative+uint64(len(contents.Outputs)) {
			return errs.Newf(errs.KindBlockValidation, "ledger: cumulative txo count mismatch at index %d", block.Index)
		}

		blockBytes, err := json.Marshal(block)
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}
		contentsBytes, err := json.Marshal(contents)
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		if err := blocks.Put(indexKey(block.Index), blockBytes); err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}
		if err := contentsBucket.Put(indexKey(block.Index), contentsBytes); err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		firstGlobalIndex := expectedCumulative
		for i, out := range contents.Outputs {
			globalIndex := firstGlobalIndex + uint64(i)
			if err := txoByKey.Put(out.PublicKey[:], indexKey(globalIndex)); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
			if err := txoSeq.Put(indexKey(globalIndex), out.PublicKey[:]); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
			recordBytes, err := json.Marshal(out)
			if err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
			if err := txoRecords.Put(indexKey(globalIndex), recordBytes); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
		}

		if err := meta.Put(keyTip, indexKey(block.Index)); err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		log.Debugf("ledger: appended block %d (%d new outputs, %d spent key images)",
			block.Index, len(contents.Outputs), len(contents.SpentKeyImages))
		return nil
	})
}

// GetBlock returns the block at index i.
func (s *Store) GetBlock(i uint64) (chain.Block, error) {
	var block chain.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlocks).Get(indexKey(i))
		if raw == nil {
			return errs.Newf(errs.KindBlockNotFound, "ledger: no block at index %d", i)
		}
		return json.Unmarshal(raw, &block)
	})
	return block, err
}

// GetBlockContents returns the contents appended by block i.
func (s *Store) GetBlockContents(i uint64) (chain.BlockContents, error) {
	var contents chain.BlockContents
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketContents).Get(indexKey(i))
		if raw == nil {
			return errs.Newf(errs.KindBlockNotFound, "ledger: no block contents at index %d", i)
		}
		return json.Unmarshal(raw, &contents)
	})
	return contents, err
}

// GetTxoByPublicKey returns the global output index for a txo public key.
func (s *Store) GetTxoByPublicKey(pubKey [32]byte) (uint64, bool, error) {
	var idx uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTxoByPubKey).Get(pubKey[:])
		if raw == nil {
			return nil
		}
		found = true
		idx = binary.BigEndian.Uint64(raw)
		return nil
	})
	return idx, found, err
}

// GetTxOutByGlobalIndex returns the txo public key at a given global output
// index.
func (s *Store) GetTxOutByGlobalIndex(j uint64) ([32]byte, bool, error) {
	var pk [32]byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTxoSequence).Get(indexKey(j))
		if raw == nil {
			return nil
		}
		found = true
		copy(pk[:], raw)
		return nil
	})
	return pk, found, err
}

// GetTxOutRecordByGlobalIndex returns the full on-chain output record at a
// given global output index, the form the Ring Sampler and Transaction
// Builder need to read a ring member's target key (§4.H, §4.I).
func (s *Store) GetTxOutRecordByGlobalIndex(j uint64) (chain.TxOutRecord, bool, error) {
	var rec chain.TxOutRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTxoRecords).Get(indexKey(j))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	return rec, found, err
}

// NumTxos returns the total number of outputs appended so far, the upper
// bound for ring sampling and membership proofs.
func (s *Store) NumTxos() (uint64, error) {
	n, err := s.NumBlocks()
	if err != nil || n == 0 {
		return 0, err
	}
	block, err := s.GetBlock(n - 1)
	if err != nil {
		return 0, err
	}
	return block.CumulativeTxoCount, nil
}

// GetMembershipProofs returns a Merkle inclusion proof for each requested
// global output index, relative to the current root (§4.A
// get_membership_proofs, §4.H Ring Sampler). The tree is built over the
// full ordered sequence of txo public keys recorded so far.
func (s *Store) GetMembershipProofs(indices []uint64) ([]MembershipProof, error) {
	total, err := s.NumTxos()
	if err != nil {
		return nil, err
	}

	leaves := make([][32]byte, total)
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxoSequence)
		for i := uint64(0); i < total; i++ {
			raw := b.Get(indexKey(i))
			if raw == nil {
				return errs.Newf(errs.KindDatabase, "ledger: missing txo sequence entry at %d", i)
			}
			copy(leaves[i][:], raw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	proofs := make([]MembershipProof, 0, len(indices))
	for _, idx := range indices {
		if idx >= total {
			return nil, errs.Newf(errs.KindInsufficientLedger, "ledger: membership proof requested for out-of-range index %d", idx)
		}
		proofs = append(proofs, buildProof(leaves, idx))
	}
	return proofs, nil
}

// buildProof constructs a bottom-up Merkle proof for leaf index idx over
// leaves, padding odd levels by duplicating the last element (a common,
// simple Merkle-tree convention).
func buildProof(leaves [][32]byte, idx uint64) MembershipProof {
	level := append([][32]byte(nil), leaves...)
	pos := idx
	var elements [][32]byte

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		siblingPos := pos ^ 1
		elements = append(elements, level[siblingPos])

		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = crypto.Hash256(level[2*i][:], level[2*i+1][:])
		}
		level = next
		pos /= 2
	}

	return MembershipProof{Index: idx, Elements: elements}
}

// Root computes the current Merkle root over all recorded txo public keys.
func (s *Store) Root() ([32]byte, error) {
	total, err := s.NumTxos()
	if err != nil {
		return [32]byte{}, err
	}
	if total == 0 {
		return [32]byte{}, nil
	}

	leaves := make([][32]byte, total)
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxoSequence)
		for i := uint64(0); i < total; i++ {
			raw := b.Get(indexKey(i))
			copy(leaves[i][:], raw)
		}
		return nil
	})
	if err != nil {
		return [32]byte{}, err
	}

	level := leaves
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = crypto.Hash256(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0], nil
}
