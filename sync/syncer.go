// Package sync implements the Ledger Syncer (§4.B): it drives the Block
// Store and Key-Image Store from the locally stored height toward the
// network height reported by peer status, fetching candidate blocks from
// archive mirrors and cross-checking them against a peer quorum before
// appending.
package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
)

// archiveBlob is the wire shape the archive mirrors serve for a block:
// the block header plus its contents, the opaque payload §6 leaves
// unspecified beyond "parsed by Block Store".
type archiveBlob struct {
	Block    chain.Block         `json:"block"`
	Contents chain.BlockContents `json:"contents"`
}

// Config bundles the Syncer's collaborators and tuning parameters.
type Config struct {
	BlockStore    *ledger.Store
	KeyImageStore *keyimage.Store
	Archive       peer.ArchiveFetcher
	Peer          peer.Client
	Quorum        *peer.QuorumClient
	FeeSchedule   *feeschedule.Schedule

	// BackoffBase is the initial delay between sync-cycle restarts after
	// a fatal batch failure; it doubles (capped) on repeated failure.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Syncer drives one sync cycle at a time; Start launches its background
// loop, Stop requests cooperative shutdown.
type Syncer struct {
	cfg Config

	mu     stdsync.Mutex
	cancel func()
	wg     stdsync.WaitGroup

	backoff time.Duration
}

// New builds a Syncer from cfg, filling in backoff defaults if unset.
func New(cfg Config) *Syncer {
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = 60 * time.Second
	}
	return &Syncer{cfg: cfg, backoff: cfg.BackoffBase}
}

// Start launches the syncer's background loop. It returns immediately;
// call Stop to request shutdown and Wait to block until it has drained.
func (s *Syncer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop requests cooperative shutdown of the background loop.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Wait blocks until the background loop has fully drained.
func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.RunOnce(ctx); err != nil {
			log.Errorf("sync: cycle aborted: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.nextBackoff()):
			}
			continue
		}

		s.backoff = s.cfg.BackoffBase

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Syncer) nextBackoff() time.Duration {
	d := s.backoff
	s.backoff *= 2
	if s.backoff > s.cfg.BackoffCap {
		s.backoff = s.cfg.BackoffCap
	}
	return d
}

// RunOnce drives the Block Store from its current height to the network
// height reported by peer status (§4.B algorithm), then refreshes the fee
// schedule cache. It checks ctx at each block boundary (§4.B "cooperative
// ... at each block boundary and between network round-trips").
func (s *Syncer) RunOnce(ctx context.Context) error {
	info, err := s.cfg.Peer.GetLastBlockInfo(ctx)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}

	local, err := s.cfg.BlockStore.NumBlocks()
	if err != nil {
		return err
	}

	for i := local; i < info.Index+1; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.syncOne(ctx, i); err != nil {
			return err
		}
	}

	if s.cfg.FeeSchedule != nil {
		s.cfg.FeeSchedule.Update(info.FeeMap, info.MaxTombstoneBlocks)
	}

	return nil
}

// syncOne fetches, cross-checks, and appends a single block at index i.
func (s *Syncer) syncOne(ctx context.Context, i uint64) error {
	blob, err := s.cfg.Archive.FetchBlock(ctx, i)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, err)
	}

	var parsed archiveBlob
	if err := json.Unmarshal(blob, &parsed); err != nil {
		return errs.Wrap(errs.KindBlockValidation, err)
	}

	if s.cfg.Quorum != nil {
		hash := parsed.Block.Hash(crypto.Hash256)
		agree, err := s.cfg.Quorum.AgreesOnHash(ctx, i, hash)
		if err != nil {
			return errs.Wrap(errs.KindNetwork, err)
		}
		if !agree {
			log.Errorf("sync: quorum mismatch at block %d, rejected block contents:\n%s", i, spew.Sdump(parsed))
			return errs.Newf(errs.KindLedgerInconsistent, "sync: no peer quorum agrees on hash for block %d", i)
		}
	}

	if err := s.cfg.BlockStore.Append(parsed.Block, parsed.Contents); err != nil {
		return err
	}

	if s.cfg.KeyImageStore != nil && len(parsed.Contents.SpentKeyImages) > 0 {
		if err := s.cfg.KeyImageStore.RecordBlock(i, parsed.Contents.SpentKeyImages); err != nil {
			return err
		}
	}

	log.Debugf("sync: appended block %d", i)
	return nil
}
