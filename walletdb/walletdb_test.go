package walletdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makeAccount(b byte) Account {
	var acct Account
	acct.ID[0] = b
	acct.ViewPrivate[0] = b
	acct.SpendPublic[0] = b
	acct.Name = "test account"
	acct.FirstBlockIndex = 10
	return acct
}

func TestCreateAndGetAccount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(1)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	got, err := db.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, acct.Name, got.Name)
	require.EqualValues(t, 10, got.FirstBlockIndex)
	require.EqualValues(t, 2, got.NextSubaddressIndex)

	subs, err := db.ListSubaddresses(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
}

func TestCreateAccountRejectsDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(2)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))
	err := db.CreateAccount(ctx, acct, "addr-main-2", "addr-change-2")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindAccountAlreadyExists))
}

func TestRemoveAccountCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(3)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	require.NoError(t, db.RemoveAccount(ctx, acct.ID))

	_, err := db.GetAccount(ctx, acct.ID)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindAccountNotFound))

	subs, err := db.ListSubaddresses(ctx, acct.ID)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestAssignNextSubaddressIndexIncrements(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(4)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	idx, err := db.AssignNextSubaddressIndex(ctx, acct.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, idx)

	idx2, err := db.AssignNextSubaddressIndex(ctx, acct.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, idx2)
}

func TestInsertTxoAndListUnspent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(5)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	var sub uint64 = 0
	var received uint64 = 11
	txo := Txo{AccountID: acct.ID, AmountValue: 500, AmountTokenID: 0, SubaddressIndex: &sub, ReceivedBlockIndex: &received}
	txo.ID[0] = 0xAA
	txo.PublicKey[0] = 0xBB

	require.NoError(t, db.withTx(ctx, func(tx *sql.Tx) error {
		return db.InsertTxo(ctx, tx, txo)
	}))

	unspent, err := db.ListUnspent(ctx, acct.ID, 0)
	require.NoError(t, err)
	require.Len(t, unspent, 1)
	require.EqualValues(t, 500, unspent[0].AmountValue)
}

func TestTransactionLogLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(6)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	var logID [32]byte
	logID[0] = 0xCC
	logRow := TransactionLog{ID: logID, AccountID: acct.ID, TombstoneBlockIndex: 20, FeeValue: 40, FeeTokenID: 0}
	require.NoError(t, db.CreateTransactionLog(ctx, logRow, nil, nil))

	require.NoError(t, db.MarkSubmitted(ctx, logID, 11))

	pending, err := db.ListPending(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, StatusPending, pending[0].Status)

	require.NoError(t, db.withTx(ctx, func(tx *sql.Tx) error {
		return db.FinalizeSucceeded(ctx, tx, logID, 12)
	}))

	pending, err = db.ListPending(ctx, acct.ID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestGiftCodeLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(7)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	gc := GiftCode{B58: "gift123", Entropy: []byte{1, 2, 3}, Value: 1000, TokenID: 0, AccountID: acct.ID}
	require.NoError(t, db.CreateGiftCode(ctx, gc))

	got, err := db.GetGiftCode(ctx, "gift123")
	require.NoError(t, err)
	require.Equal(t, GiftCodeSubmittedPending, got.Status)

	require.NoError(t, db.SetGiftCodeStatus(ctx, "gift123", GiftCodeAvailable))
	got, err = db.GetGiftCode(ctx, "gift123")
	require.NoError(t, err)
	require.Equal(t, GiftCodeAvailable, got.Status)
}
