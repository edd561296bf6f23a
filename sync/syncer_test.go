package sync

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	blocks map[uint64][]byte
}

func (f *fakeArchive) FetchBlock(ctx context.Context, index uint64) ([]byte, error) {
	return f.blocks[index], nil
}

type fakePeer struct {
	info peer.LastBlockInfo
}

func (f *fakePeer) GetLastBlockInfo(ctx context.Context) (peer.LastBlockInfo, error) {
	return f.info, nil
}

func (f *fakePeer) GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error) {
	return chain.Block{}, chain.BlockContents{}, nil
}

func (f *fakePeer) ProposeTx(ctx context.Context, blob []byte) (peer.ProposeResult, error) {
	return peer.ProposeResult{}, nil
}

func makeBlob(t *testing.T, block chain.Block, contents chain.BlockContents) []byte {
	t.Helper()
	raw, err := json.Marshal(struct {
		Block    chain.Block         `json:"block"`
		Contents chain.BlockContents `json:"contents"`
	}{block, contents})
	require.NoError(t, err)
	return raw
}

func TestRunOnceSyncsToNetworkHeight(t *testing.T) {
	ls, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ls.Close()

	ks, err := keyimage.Open(filepath.Join(t.TempDir(), "ki.db"), ls)
	require.NoError(t, err)
	defer ks.Close()

	var out chain.TxOutRecord
	out.PublicKey[0] = 1
	genesis := chain.Block{Index: 0, CumulativeTxoCount: 1, Version: 1}
	genesisContents := chain.BlockContents{Outputs: []chain.TxOutRecord{out}}

	block1 := chain.Block{
		Index:              1,
		ParentHash:         genesis.Hash(crypto.Hash256),
		CumulativeTxoCount: 1,
		Version:            1,
	}
	block1Contents := chain.BlockContents{SpentKeyImages: [][32]byte{{9}}}

	archive := &fakeArchive{blocks: map[uint64][]byte{
		0: makeBlob(t, genesis, genesisContents),
		1: makeBlob(t, block1, block1Contents),
	}}

	fp := &fakePeer{info: peer.LastBlockInfo{
		Index:  1,
		FeeMap: map[uint64]uint64{0: 400},
	}}

	fs := feeschedule.New()

	syncer := New(Config{
		BlockStore:    ls,
		KeyImageStore: ks,
		Archive:       archive,
		Peer:          fp,
		FeeSchedule:   fs,
	})

	require.NoError(t, syncer.RunOnce(context.Background()))

	n, err := ls.NumBlocks()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	found, err := ks.Contains([32]byte{9})
	require.NoError(t, err)
	require.True(t, found)

	require.Equal(t, uint64(400), fs.FeeFor(0))
}

func TestRunOnceStopsAtContextCancellation(t *testing.T) {
	ls, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ls.Close()

	fp := &fakePeer{info: peer.LastBlockInfo{Index: 5}}
	archive := &fakeArchive{blocks: map[uint64][]byte{}}

	syncer := New(Config{BlockStore: ls, Archive: archive, Peer: fp})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, syncer.RunOnce(ctx))
	n, err := ls.NumBlocks()
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
