// Package feeschedule caches the network's per-token fee schedule as
// reported by peer status, and resolves the fee to charge a transaction
// when the caller does not supply an explicit override (§4.I step 1,
// §6 Peer RPC get_last_block_info).
package feeschedule

import (
	"sync"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// DefaultMinimumFee is used for a token the network has not yet reported a
// fee for, mirroring the notion of a floor fee below which the network
// will not relay a transaction.
const DefaultMinimumFee = 400000000

// Schedule is the cached fee map for the network's supported tokens. It is
// replaced wholesale once per sync cycle (§4.B "read from peer status and
// cached for the duration of a sync cycle"); reads never block on a
// network round-trip.
type Schedule struct {
	mu           sync.RWMutex
	feeByToken   map[uint64]uint64
	maxTombstone uint64
}

// New returns an empty Schedule; callers must call Update before relying on
// FeeFor returning anything but DefaultMinimumFee.
func New() *Schedule {
	return &Schedule{feeByToken: make(map[uint64]uint64)}
}

// Update replaces the cached fee map and maximum-tombstone-blocks value,
// called once per sync cycle with the latest get_last_block_info result.
func (s *Schedule) Update(feeByToken map[uint64]uint64, maxTombstoneBlocks uint64) {
	cp := make(map[uint64]uint64, len(feeByToken))
	for k, v := range feeByToken {
		cp[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeByToken = cp
	s.maxTombstone = maxTombstoneBlocks
}

// FeeFor returns the network's current fee for tokenID, or
// DefaultMinimumFee if the network has not reported one.
func (s *Schedule) FeeFor(tokenID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fee, ok := s.feeByToken[tokenID]; ok {
		return fee
	}
	return DefaultMinimumFee
}

// MaxTombstoneBlocks returns the network's current maximum distance between
// a transaction's submission block and its tombstone block.
func (s *Schedule) MaxTombstoneBlocks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.maxTombstone == 0 {
		return 10
	}
	return s.maxTombstone
}

// ResolveFee returns the fee to charge for a send of the given token,
// honoring an explicit override when provided (§4.I "fee_value, fee_token_id
// | Override fee; defaults from network fee schedule for the payload
// token"). An override of a different token than the payload requires the
// caller to have already validated a single spendable-token universe; this
// function only rejects a zero-valued override as almost certainly a
// caller mistake, not a genuine fee-free send.
func (s *Schedule) ResolveFee(payloadTokenID uint64, override *chain.Amount) (chain.Amount, error) {
	if override != nil {
		if override.Value == 0 {
			return chain.Amount{}, errs.New(errs.KindTransactionValidation, "feeschedule: explicit fee override of zero is not permitted")
		}
		return *override, nil
	}
	return chain.Amount{Value: s.FeeFor(payloadTokenID), TokenID: payloadTokenID}, nil
}
