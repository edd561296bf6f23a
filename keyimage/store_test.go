package keyimage

import (
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/stretchr/testify/require"
)

func openTestStores(t *testing.T) (*ledger.Store, *Store) {
	t.Helper()
	ls, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })

	ks, err := Open(filepath.Join(t.TempDir(), "keyimage.db"), ls)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })

	return ls, ks
}

func outputWithKey(b byte) chain.TxOutRecord {
	var out chain.TxOutRecord
	out.PublicKey[0] = b
	return out
}

func appendGenesis(t *testing.T, ls *ledger.Store, outputs []chain.TxOutRecord) chain.Block {
	t.Helper()
	block := chain.Block{
		Index:              0,
		CumulativeTxoCount: uint64(len(outputs)),
		Version:            1,
	}
	require.NoError(t, ls.Append(block, chain.BlockContents{Outputs: outputs}))
	return block
}

func TestRecordBlockAndContains(t *testing.T) {
	_, ks := openTestStores(t)

	ki := [32]byte{7}
	found, err := ks.Contains(ki)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, ks.RecordBlock(3, [][32]byte{ki}))

	found, err = ks.Contains(ki)
	require.NoError(t, err)
	require.True(t, found)

	block, found, err := ks.BlockOf(ki)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, block)
}

func TestRecordBlockRejectsDoubleSpend(t *testing.T) {
	_, ks := openTestStores(t)

	ki := [32]byte{9}
	require.NoError(t, ks.RecordBlock(1, [][32]byte{ki}))

	err := ks.RecordBlock(2, [][32]byte{ki})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindLedgerInconsistent))
}

func TestSampleNExcludesRealInputsAndIsDistinct(t *testing.T) {
	ls, ks := openTestStores(t)

	outs := make([]chain.TxOutRecord, 0, 10)
	for i := byte(1); i <= 10; i++ {
		outs = append(outs, outputWithKey(i))
	}
	appendGenesis(t, ls, outs)

	exclude := map[[32]byte]struct{}{
		{1}: {},
		{2}: {},
	}

	mixins, err := ks.SampleN(exclude, 5)
	require.NoError(t, err)
	require.Len(t, mixins, 5)

	seen := make(map[[32]byte]struct{}, len(mixins))
	for _, pk := range mixins {
		_, excluded := exclude[pk]
		require.False(t, excluded, "sampled excluded public key %x", pk)
		_, dup := seen[pk]
		require.False(t, dup, "sampled duplicate public key %x", pk)
		seen[pk] = struct{}{}
	}
}

func TestSampleNFailsWhenLedgerTooSmall(t *testing.T) {
	ls, ks := openTestStores(t)
	appendGenesis(t, ls, []chain.TxOutRecord{outputWithKey(1), outputWithKey(2)})

	_, err := ks.SampleN(nil, 5)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInsufficientLedger))
}
