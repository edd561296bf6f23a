package ring

import (
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/stretchr/testify/require"
)

func openTestStores(t *testing.T) (*ledger.Store, *keyimage.Store) {
	t.Helper()
	ls, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })

	ks, err := keyimage.Open(filepath.Join(t.TempDir(), "keyimage.db"), ls)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })

	return ls, ks
}

func outputWithKey(b byte) chain.TxOutRecord {
	var out chain.TxOutRecord
	out.PublicKey[0] = b
	return out
}

func appendGenesis(t *testing.T, ls *ledger.Store, outputs []chain.TxOutRecord) {
	t.Helper()
	block := chain.Block{Index: 0, CumulativeTxoCount: uint64(len(outputs)), Version: 1}
	require.NoError(t, ls.Append(block, chain.BlockContents{Outputs: outputs}))
}

func TestSampleRingsIncludesRealAtSomePositionWithProofs(t *testing.T) {
	ls, ks := openTestStores(t)

	outs := make([]chain.TxOutRecord, 0, 20)
	for i := byte(1); i <= 20; i++ {
		outs = append(outs, outputWithKey(i))
	}
	appendGenesis(t, ls, outs)

	real := [32]byte{3}
	sampler := New(ls, ks)
	rings, err := sampler.SampleRings([][32]byte{real})
	require.NoError(t, err)
	require.Len(t, rings, 1)

	r := rings[0]
	require.Len(t, r.Members, Size)
	require.True(t, r.RealIndex >= 0 && r.RealIndex < Size)
	require.Equal(t, real, r.Members[r.RealIndex].PublicKey)

	seen := make(map[[32]byte]struct{}, Size)
	for _, m := range r.Members {
		_, dup := seen[m.PublicKey]
		require.False(t, dup, "duplicate ring member %x", m.PublicKey)
		seen[m.PublicKey] = struct{}{}
		require.NotEmpty(t, m.Proof.Elements)
	}
}

func TestSampleRingsExcludesAllRealInputsFromMixins(t *testing.T) {
	ls, ks := openTestStores(t)

	outs := make([]chain.TxOutRecord, 0, 20)
	for i := byte(1); i <= 20; i++ {
		outs = append(outs, outputWithKey(i))
	}
	appendGenesis(t, ls, outs)

	reals := [][32]byte{{3}, {7}}
	sampler := New(ls, ks)
	rings, err := sampler.SampleRings(reals)
	require.NoError(t, err)
	require.Len(t, rings, 2)

	for ringIdx, r := range rings {
		for i, m := range r.Members {
			if i == r.RealIndex {
				require.Equal(t, reals[ringIdx], m.PublicKey)
				continue
			}
			for _, real := range reals {
				require.NotEqual(t, real, m.PublicKey, "mixin equals a real input")
			}
		}
	}
}

func TestSampleRingsFailsWhenLedgerTooSmall(t *testing.T) {
	ls, ks := openTestStores(t)
	appendGenesis(t, ls, []chain.TxOutRecord{outputWithKey(1), outputWithKey(2)})

	sampler := New(ls, ks)
	_, err := sampler.SampleRings([][32]byte{{1}})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInsufficientLedger))
}
