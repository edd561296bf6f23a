package giftcode

import (
	"context"
	"crypto/rand"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/ring"
	"github.com/mobilecoinofficial/full-service-sub000/selector"
	"github.com/mobilecoinofficial/full-service-sub000/submission"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/stretchr/testify/require"
)

type acceptingPeer struct{}

func (acceptingPeer) GetLastBlockInfo(ctx context.Context) (peer.LastBlockInfo, error) {
	return peer.LastBlockInfo{}, nil
}
func (acceptingPeer) GetBlock(ctx context.Context, index uint64) (chain.Block, chain.BlockContents, error) {
	return chain.Block{}, chain.BlockContents{}, nil
}
func (acceptingPeer) ProposeTx(ctx context.Context, blob []byte) (peer.ProposeResult, error) {
	return peer.ProposeResult{Accepted: true}, nil
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
	acct.Name = "gift account"
	return acct
}

func randomPoint(t *testing.T) crypto.Point {
	t.Helper()
	s, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	return s.BasepointMul()
}

func TestBundleRoundTrips(t *testing.T) {
	entropy := [32]byte{1, 2, 3}
	txoPublicKey := randomPoint(t).Bytes()

	b58 := encodeBundle(entropy, txoPublicKey, "happy birthday")

	gotEntropy, gotKey, gotMemo, err := DecodeBundle(b58)
	require.NoError(t, err)
	require.Equal(t, entropy, gotEntropy)
	require.Equal(t, txoPublicKey, gotKey)
	require.Equal(t, "happy birthday", gotMemo)
}

func TestBundleRoundTripsEmptyMemo(t *testing.T) {
	entropy := [32]byte{9}
	txoPublicKey := randomPoint(t).Bytes()

	b58 := encodeBundle(entropy, txoPublicKey, "")
	gotEntropy, gotKey, gotMemo, err := DecodeBundle(b58)
	require.NoError(t, err)
	require.Equal(t, entropy, gotEntropy)
	require.Equal(t, txoPublicKey, gotKey)
	require.Equal(t, "", gotMemo)
}

func TestDecodeBundleRejectsCorruption(t *testing.T) {
	entropy := [32]byte{1}
	b58 := encodeBundle(entropy, randomPoint(t).Bytes(), "memo")
	corrupted := "x" + b58[1:]
	_, _, _, err := DecodeBundle(corrupted)
	require.Error(t, err)
}

func insertTxo(t *testing.T, db *walletdb.DB, txo walletdb.Txo) {
	t.Helper()
	require.NoError(t, db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return db.InsertTxo(context.Background(), tx, txo)
	}))
}

func TestCheckStatusTransitionsSubmittedPendingToAvailable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	giftAcct := makeAccount(1)
	require.NoError(t, db.CreateAccount(ctx, giftAcct, "addr-main", "addr-change"))

	sub := uint64(0)
	received := uint64(5)
	txo := walletdb.Txo{AccountID: giftAcct.ID, AmountValue: 1000, SubaddressIndex: &sub, ReceivedBlockIndex: &received, RawOutputBlob: []byte{1}}
	txo.ID[0] = 0xAA
	txo.PublicKey[0] = 0xAB
	insertTxo(t, db, txo)

	require.NoError(t, db.CreateGiftCode(ctx, walletdb.GiftCode{
		B58:       "gift-code-1",
		Entropy:   []byte{1, 2, 3},
		Value:     1000,
		TokenID:   0,
		AccountID: giftAcct.ID,
	}))

	mgr := New(db, nil, nil)
	gc, err := mgr.CheckStatus(ctx, "gift-code-1")
	require.NoError(t, err)
	require.Equal(t, walletdb.GiftCodeAvailable, gc.Status)
}

func TestCheckStatusTransitionsAvailableToClaimed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	giftAcct := makeAccount(2)
	require.NoError(t, db.CreateAccount(ctx, giftAcct, "addr-main", "addr-change"))

	sub := uint64(0)
	received := uint64(5)
	spent := uint64(6)
	var ki [32]byte
	ki[0] = 0xCC
	txo := walletdb.Txo{
		AccountID: giftAcct.ID, AmountValue: 1000, SubaddressIndex: &sub,
		ReceivedBlockIndex: &received, SpentBlockIndex: &spent, KeyImage: &ki, RawOutputBlob: []byte{1},
	}
	txo.ID[0] = 0xAA
	txo.PublicKey[0] = 0xAB
	insertTxo(t, db, txo)

	require.NoError(t, db.CreateGiftCode(ctx, walletdb.GiftCode{
		B58:       "gift-code-2",
		Entropy:   []byte{1, 2, 3},
		Value:     1000,
		TokenID:   0,
		AccountID: giftAcct.ID,
	}))
	require.NoError(t, db.SetGiftCodeStatus(ctx, "gift-code-2", walletdb.GiftCodeAvailable))

	mgr := New(db, nil, nil)
	gc, err := mgr.CheckStatus(ctx, "gift-code-2")
	require.NoError(t, err)
	require.Equal(t, walletdb.GiftCodeClaimed, gc.Status)
}

func TestRemoveDeletesGiftCodeRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	giftAcct := makeAccount(3)
	require.NoError(t, db.CreateAccount(ctx, giftAcct, "addr-main", "addr-change"))
	require.NoError(t, db.CreateGiftCode(ctx, walletdb.GiftCode{
		B58: "gift-code-3", Entropy: []byte{1}, Value: 1, AccountID: giftAcct.ID,
	}))

	mgr := New(db, nil, nil)
	require.NoError(t, mgr.Remove(ctx, "gift-code-3"))

	_, err := db.GetGiftCode(ctx, "gift-code-3")
	require.Error(t, err)
}

func TestClaimSweepsFundingOutputMinusFee(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ls, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })
	ks, err := keyimage.Open(filepath.Join(t.TempDir(), "keyimage.db"), ls)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })

	spendPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	viewPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	spendPublic := spendPrivate.BasepointMul()
	giftAcctID := address.AccountID(viewPrivate.BasepointMul(), spendPublic)

	mainAddr := address.Encode(address.PublicAddress{ViewPublic: viewPrivate.BasepointMul(), SpendPublic: spendPublic})
	changeSpendPublic, changeViewPublic := address.DeriveSubaddressPublicKeys(viewPrivate, spendPublic, walletdb.ChangeSubaddressIndex)
	changeAddr := address.Encode(address.PublicAddress{ViewPublic: changeViewPublic, SpendPublic: changeSpendPublic})

	spendPrivateBytes := spendPrivate.Bytes()
	giftAcct := walletdb.Account{
		ID:           giftAcctID,
		ViewPrivate:  viewPrivate.Bytes(),
		SpendPrivate: &spendPrivateBytes,
		SpendPublic:  spendPublic.Bytes(),
		Name:         "gift code",
	}
	require.NoError(t, db.CreateAccount(ctx, giftAcct, mainAddr, changeAddr))

	realPub := randomPoint(t).Bytes()
	outs := make([]chain.TxOutRecord, ring.Size)
	for i := range outs {
		outs[i].TargetKey = randomPoint(t).Bytes()
		var pk [32]byte
		pk[0] = byte(i + 1)
		outs[i].PublicKey = pk
	}
	outs[0].PublicKey = realPub
	require.NoError(t, ls.Append(
		chain.Block{Index: 0, CumulativeTxoCount: uint64(len(outs)), Version: 1},
		chain.BlockContents{Outputs: outs}))

	sub := uint64(0)
	received := uint64(0)
	const fundedValue = 10_000_000_000
	fundTxo := walletdb.Txo{
		AccountID:          giftAcctID,
		AmountValue:        fundedValue,
		AmountTokenID:      0,
		SubaddressIndex:    &sub,
		ReceivedBlockIndex: &received,
		PublicKey:          realPub,
		RawOutputBlob:      []byte{0x01},
	}
	realPubPoint, err := crypto.NewPointFromBytes(realPub)
	require.NoError(t, err)
	fundTxo.ID = address.TxoID(realPubPoint)
	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.InsertTxo(ctx, tx, fundTxo)
	}))

	require.NoError(t, db.CreateGiftCode(ctx, walletdb.GiftCode{
		B58:       "gift-code-4",
		Entropy:   []byte{1, 2, 3},
		Value:     fundedValue,
		TokenID:   0,
		AccountID: giftAcctID,
	}))

	claimant := makeAccount(9)
	require.NoError(t, db.CreateAccount(ctx, claimant, "claimant-main", "claimant-change"))

	sel := selector.New(db)
	sampler := ring.New(ls, ks)
	fees := feeschedule.New()
	builder := txbuilder.New(db, sel, sampler, fees, ls, func() (uint64, error) { return 0, nil })
	submitMgr := submission.New(db, acceptingPeer{}, func() (uint64, error) { return 0, nil })

	mgr := New(db, builder, submitMgr)
	require.NoError(t, mgr.Claim(ctx, "gift-code-4", claimant))

	gc, err := db.GetGiftCode(ctx, "gift-code-4")
	require.NoError(t, err)
	require.Equal(t, walletdb.GiftCodeClaimed, gc.Status)

	logs, err := db.ListTransactionLogs(ctx, giftAcctID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.EqualValues(t, feeschedule.DefaultMinimumFee, logs[0].FeeValue)

	claimantMain, err := db.GetSubaddress(ctx, claimant.ID, 0)
	require.NoError(t, err)

	outputs, err := db.OutputsForLog(ctx, logs[0].ID)
	require.NoError(t, err)
	require.Len(t, outputs, 1, "a full-balance sweep must produce no change output")
	require.Equal(t, walletdb.OutputKindPayload, outputs[0].Kind)
	require.Equal(t, claimantMain.PublicAddressB58, outputs[0].RecipientPublicAddressB58)
}
