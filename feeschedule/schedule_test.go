package feeschedule

import (
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/stretchr/testify/require"
)

func TestFeeForFallsBackToDefault(t *testing.T) {
	s := New()
	require.Equal(t, uint64(DefaultMinimumFee), s.FeeFor(0))
}

func TestUpdateThenFeeFor(t *testing.T) {
	s := New()
	s.Update(map[uint64]uint64{0: 400, 1: 2560}, 25)

	require.Equal(t, uint64(400), s.FeeFor(0))
	require.Equal(t, uint64(2560), s.FeeFor(1))
	require.Equal(t, uint64(DefaultMinimumFee), s.FeeFor(2))
	require.EqualValues(t, 25, s.MaxTombstoneBlocks())
}

func TestMaxTombstoneBlocksDefaultsWhenUnset(t *testing.T) {
	s := New()
	require.EqualValues(t, 10, s.MaxTombstoneBlocks())
}

func TestResolveFeeUsesOverride(t *testing.T) {
	s := New()
	s.Update(map[uint64]uint64{0: 400}, 10)

	override := chain.Amount{Value: 999, TokenID: 0}
	got, err := s.ResolveFee(0, &override)
	require.NoError(t, err)
	require.Equal(t, override, got)
}

func TestResolveFeeDefaultsFromSchedule(t *testing.T) {
	s := New()
	s.Update(map[uint64]uint64{0: 400}, 10)

	got, err := s.ResolveFee(0, nil)
	require.NoError(t, err)
	require.Equal(t, chain.Amount{Value: 400, TokenID: 0}, got)
}

func TestResolveFeeRejectsZeroOverride(t *testing.T) {
	s := New()
	zero := chain.Amount{Value: 0, TokenID: 0}
	_, err := s.ResolveFee(0, &zero)
	require.Error(t, err)
}
