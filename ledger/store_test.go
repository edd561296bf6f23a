package ledger

import (
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func outputWithKey(b byte) chain.TxOutRecord {
	var out chain.TxOutRecord
	out.PublicKey[0] = b
	return out
}

func appendBlock(t *testing.T, s *Store, prev *chain.Block, outputs []chain.TxOutRecord) chain.Block {
	t.Helper()

	var parentHash [32]byte
	var index uint64
	var cumulative uint64
	if prev != nil {
		parentHash = prev.Hash(crypto.Hash256)
		index = prev.Index + 1
		cumulative = prev.CumulativeTxoCount
	}

	block := chain.Block{
		Index:              index,
		ParentHash:         parentHash,
		CumulativeTxoCount: cumulative + uint64(len(outputs)),
		Version:            1,
	}
	require.NoError(t, s.Append(block, chain.BlockContents{Outputs: outputs}))
	return block
}

func TestAppendAndRead(t *testing.T) {
	s := openTestStore(t)

	genesis := appendBlock(t, s, nil, []chain.TxOutRecord{outputWithKey(1), outputWithKey(2)})
	n, err := s.NumBlocks()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.GetBlock(0)
	require.NoError(t, err)
	require.Equal(t, genesis.CumulativeTxoCount, got.CumulativeTxoCount)

	idx, found, err := s.GetTxoByPublicKey([32]byte{1})
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 0, idx)
}

func TestAppendRejectsParentMismatch(t *testing.T) {
	s := openTestStore(t)
	genesis := appendBlock(t, s, nil, []chain.TxOutRecord{outputWithKey(1)})

	bad := chain.Block{
		Index:              genesis.Index + 1,
		ParentHash:         [32]byte{0xff},
		CumulativeTxoCount: genesis.CumulativeTxoCount + 1,
	}
	err := s.Append(bad, chain.BlockContents{Outputs: []chain.TxOutRecord{outputWithKey(2)}})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindBlockValidation))
}

func TestNumBlocksMonotone(t *testing.T) {
	s := openTestStore(t)

	before, err := s.NumBlocks()
	require.NoError(t, err)

	genesis := appendBlock(t, s, nil, []chain.TxOutRecord{outputWithKey(1)})
	after, err := s.NumBlocks()
	require.NoError(t, err)
	require.GreaterOrEqual(t, after, before)

	appendBlock(t, s, &genesis, []chain.TxOutRecord{outputWithKey(2)})
	final, err := s.NumBlocks()
	require.NoError(t, err)
	require.GreaterOrEqual(t, final, after)
}

func TestMembershipProofsCoverAllLeaves(t *testing.T) {
	s := openTestStore(t)

	outs := []chain.TxOutRecord{outputWithKey(1), outputWithKey(2), outputWithKey(3)}
	appendBlock(t, s, nil, outs)

	proofs, err := s.GetMembershipProofs([]uint64{0, 1, 2})
	require.NoError(t, err)
	require.Len(t, proofs, 3)
	for _, p := range proofs {
		require.NotEmpty(t, p.Elements)
	}

	_, err = s.GetMembershipProofs([]uint64{99})
	require.Error(t, err)
}

func TestReopenRecoversTip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	appendBlock(t, s, nil, []chain.TxOutRecord{outputWithKey(1)})
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.NumBlocks()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
