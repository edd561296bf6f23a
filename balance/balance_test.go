package balance

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/stretchr/testify/require"
)

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
	return acct
}

func insertTxo(t *testing.T, db *walletdb.DB, txo walletdb.Txo) {
	t.Helper()
	require.NoError(t, db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return db.InsertTxo(context.Background(), tx, txo)
	}))
}

func TestGetBalancesAggregatesByToken(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(1)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	var sub0 uint64 = 0
	var received uint64 = 5

	unspentTxo := walletdb.Txo{AccountID: acct.ID, AmountValue: 1000, AmountTokenID: 0, SubaddressIndex: &sub0, ReceivedBlockIndex: &received}
	unspentTxo.ID[0] = 1
	unspentTxo.PublicKey[0] = 1
	insertTxo(t, db, unspentTxo)

	orphanTxo := walletdb.Txo{AccountID: acct.ID, AmountValue: 250, AmountTokenID: 0, ReceivedBlockIndex: &received}
	orphanTxo.ID[0] = 2
	orphanTxo.PublicKey[0] = 2
	insertTxo(t, db, orphanTxo)

	eng := New(db, 0)
	balances, err := eng.GetBalances(ctx, acct.ID, func(uint64) uint64 { return 400000000 })
	require.NoError(t, err)

	b, ok := balances[0]
	require.True(t, ok)
	require.EqualValues(t, 1000, b.Unspent)
	require.EqualValues(t, 250, b.Orphaned)
	require.EqualValues(t, 0, b.Spent)
}

func TestGetBalancesCountsPendingFromTransactionLogInputs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(2)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	var sub0 uint64 = 0
	var received uint64 = 5
	txo := walletdb.Txo{AccountID: acct.ID, AmountValue: 5000, AmountTokenID: 0, SubaddressIndex: &sub0, ReceivedBlockIndex: &received}
	txo.ID[0] = 9
	txo.PublicKey[0] = 9
	insertTxo(t, db, txo)

	var logID [32]byte
	logID[0] = 0xAB
	logRow := walletdb.TransactionLog{ID: logID, AccountID: acct.ID, TombstoneBlockIndex: 20, FeeValue: 400000000, FeeTokenID: 0}
	require.NoError(t, db.CreateTransactionLog(ctx, logRow, [][32]byte{txo.ID}, nil))
	require.NoError(t, db.MarkSubmitted(ctx, logID, 6))

	eng := New(db, 0)
	balances, err := eng.GetBalances(ctx, acct.ID, nil)
	require.NoError(t, err)

	require.EqualValues(t, 5000, balances[0].Pending)
}

func TestGetBalancesSurfacesNonZeroTokenWithNoOtherActivity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := makeAccount(3)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	var sub0 uint64 = 0
	var received uint64 = 5
	const mobTokenID = 7

	unspentTxo := walletdb.Txo{AccountID: acct.ID, AmountValue: 300, AmountTokenID: mobTokenID, SubaddressIndex: &sub0, ReceivedBlockIndex: &received}
	unspentTxo.ID[0] = 30
	unspentTxo.PublicKey[0] = 30
	insertTxo(t, db, unspentTxo)

	var spentKeyImage [32]byte
	spentKeyImage[0] = 31
	spentTxo := walletdb.Txo{AccountID: acct.ID, AmountValue: 120, AmountTokenID: mobTokenID, SubaddressIndex: &sub0, ReceivedBlockIndex: &received, KeyImage: &spentKeyImage}
	spentTxo.ID[0] = 31
	spentTxo.PublicKey[0] = 31
	insertTxo(t, db, spentTxo)
	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, _, err := db.MarkSpent(ctx, tx, spentKeyImage, 6)
		return err
	}))

	eng := New(db, 0)
	balances, err := eng.GetBalances(ctx, acct.ID, nil)
	require.NoError(t, err)

	b, ok := balances[mobTokenID]
	require.True(t, ok, "non-zero token with only unspent/spent activity must still appear in the balance map")
	require.EqualValues(t, 300, b.Unspent)
	require.EqualValues(t, 120, b.Spent)
}

func TestMaxSpendableSubtractsFeeAndCapsAtK(t *testing.T) {
	unspent := []walletdb.Txo{
		{AmountValue: 100},
		{AmountValue: 80},
		{AmountValue: 50},
	}
	require.EqualValues(t, 170, maxSpendable(unspent, 2, 10))
	require.EqualValues(t, 0, maxSpendable(unspent, 2, 1000))
}
