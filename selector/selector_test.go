package selector

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
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

func unspentTxo(idByte byte, value uint64, subIndex uint64) walletdb.Txo {
	received := uint64(1)
	t := walletdb.Txo{AmountValue: value, AmountTokenID: 0, SubaddressIndex: &subIndex, ReceivedBlockIndex: &received}
	t.ID[0] = idByte
	t.PublicKey[0] = idByte
	return t
}

func TestSelectPrefersFewerLargerInputs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(1)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	big := unspentTxo(1, 1000, 0)
	big.AccountID = acct.ID
	small1 := unspentTxo(2, 300, 0)
	small1.AccountID = acct.ID
	small2 := unspentTxo(3, 300, 0)
	small2.AccountID = acct.ID
	insertTxo(t, db, big)
	insertTxo(t, db, small1)
	insertTxo(t, db, small2)

	sel := New(db)
	selected, change, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 500,
		Fee:         10,
	})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.EqualValues(t, 1000, selected[0].AmountValue)
	require.EqualValues(t, 490, change)
}

func TestSelectAccumulatesWhenNoSingleInputSuffices(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(2)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	a := unspentTxo(1, 300, 0)
	a.AccountID = acct.ID
	b := unspentTxo(2, 300, 0)
	b.AccountID = acct.ID
	insertTxo(t, db, a)
	insertTxo(t, db, b)

	sel := New(db)
	selected, change, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 500,
		Fee:         10,
	})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	require.EqualValues(t, 90, change)
}

func TestSelectInsufficientFunds(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(3)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	a := unspentTxo(1, 100, 0)
	a.AccountID = acct.ID
	insertTxo(t, db, a)

	sel := New(db)
	_, _, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 500,
		Fee:         10,
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInsufficientFunds))
}

func TestSelectInsufficientFundsAtSubaddress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(4)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	atOtherSubaddress := unspentTxo(1, 10000, 7)
	atOtherSubaddress.AccountID = acct.ID
	insertTxo(t, db, atOtherSubaddress)

	wantSub := uint64(1)
	sel := New(db)
	_, _, err := sel.Select(ctx, Params{
		AccountID:               acct.ID,
		TokenID:                 0,
		TargetValue:             500,
		Fee:                     10,
		SpendOnlyFromSubaddress: &wantSub,
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInsufficientFundsAtSubaddress))
}

func TestSelectAvoidsDustUnlessNecessary(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(5)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	dust := unspentTxo(1, 1, 0) // well under fee/4
	dust.AccountID = acct.ID
	plenty := unspentTxo(2, 10000, 0)
	plenty.AccountID = acct.ID
	insertTxo(t, db, dust)
	insertTxo(t, db, plenty)

	sel := New(db)
	selected, _, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 500,
		Fee:         10,
	})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.EqualValues(t, 10000, selected[0].AmountValue)
}

func TestSelectOverrideUsesExactInputs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(6)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	a := unspentTxo(1, 700, 0)
	a.AccountID = acct.ID
	insertTxo(t, db, a)

	sel := New(db)
	selected, change, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 500,
		Fee:         10,
		InputTxoIDs: [][32]byte{a.ID},
	})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.EqualValues(t, 190, change)
}

func TestSelectOverrideRejectsSpentInput(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acct := makeAccount(7)
	require.NoError(t, db.CreateAccount(ctx, acct, "addr-main", "addr-change"))

	a := unspentTxo(1, 700, 0)
	a.AccountID = acct.ID
	var ki [32]byte
	ki[0] = 0xFF
	a.KeyImage = &ki
	insertTxo(t, db, a)

	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, marked, err := db.MarkSpent(ctx, tx, ki, 5)
		require.NoError(t, err)
		require.True(t, marked)
		return nil
	}))

	sel := New(db)
	_, _, err := sel.Select(ctx, Params{
		AccountID:   acct.ID,
		TokenID:     0,
		TargetValue: 100,
		Fee:         10,
		InputTxoIDs: [][32]byte{a.ID},
	})
	require.Error(t, err)
}
