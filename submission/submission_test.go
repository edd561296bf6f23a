package submission

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	result peer.ProposeResult
	err    error
	calls  int
}

func (f *fakePeer) GetLastBlockInfo(ctx context.Context) (peer.LastBlockInfo, error) {
	return peer.LastBlockInfo{}, nil
}
func (f *fakePeer) GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error) {
	return chain.Block{}, chain.BlockContents{}, nil
}
func (f *fakePeer) ProposeTx(ctx context.Context, blob []byte) (peer.ProposeResult, error) {
	f.calls++
	return f.result, f.err
}

func openTestDB(t *testing.T) *walletdb.DB {
	t.Helper()
	db, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makeAccount(b byte) walletdb.Account {
	var acct walletdb.Account
	acct.ID[0] = b
	acct.ViewPrivate[0] = b
	acct.SpendPublic[0] = b
	acct.Name = "test"
	acct.FirstBlockIndex = 1
	return acct
}

func testProposal(acctID [32]byte) txbuilder.TxProposal {
	var input walletdb.Txo
	input.ID[0] = 0xAA
	input.PublicKey[0] = 0xAB

	var payload txbuilder.ProposalOutput
	payload.Record.PublicKey[0] = 0xCD
	payload.RecipientPublicAddressB58 = "recipient"

	return txbuilder.TxProposal{
		AccountID:           acctID,
		InputTxos:           []walletdb.Txo{input},
		PayloadTxos:         []txbuilder.ProposalOutput{payload},
		TombstoneBlockIndex: 100,
		TxProto:             []byte(`{}`),
		LogID:               [32]byte{0x01},
	}
}

func TestSubmitRecordsLogOnAcceptance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(1)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	fp := &fakePeer{result: peer.ProposeResult{Accepted: true}}
	mgr := New(db, fp, func() (uint64, error) { return 42, nil })

	prop := testProposal(acct.ID)
	require.NoError(t, mgr.Submit(ctx, prop, true, "test comment"))
	require.Equal(t, 1, fp.calls)

	got, err := db.GetTransactionLog(ctx, prop.LogID)
	require.NoError(t, err)
	require.Equal(t, walletdb.StatusPending, got.Status)
	require.NotNil(t, got.SubmittedBlockIndex)
	require.EqualValues(t, 42, *got.SubmittedBlockIndex)
	require.EqualValues(t, 100, got.TombstoneBlockIndex)
}

func TestSubmitPropagatesRejection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(2)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	fp := &fakePeer{result: peer.ProposeResult{Accepted: false, Code: "tombstone-block-exceeded", Message: "too old"}}
	mgr := New(db, fp, func() (uint64, error) { return 1, nil })

	prop := testProposal(acct.ID)
	err := mgr.Submit(ctx, prop, true, "")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindTransactionValidation))

	_, err = db.GetTransactionLog(ctx, prop.LogID)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindTransactionLogNotFound))
}

func TestBuildAndSubmitUsesBuildResultLogID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(3)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	fp := &fakePeer{result: peer.ProposeResult{Accepted: true}}
	mgr := New(db, fp, func() (uint64, error) { return 7, nil })

	prop := testProposal(acct.ID)
	got, err := mgr.BuildAndSubmit(ctx, func() (txbuilder.TxProposal, error) { return prop, nil }, "")
	require.NoError(t, err)
	require.Equal(t, prop.LogID, got.LogID)

	logRow, err := db.GetTransactionLog(ctx, prop.LogID)
	require.NoError(t, err)
	require.Equal(t, walletdb.StatusPending, logRow.Status)
}
