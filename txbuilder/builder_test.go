package txbuilder

import (
	"context"
	"crypto/rand"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/ring"
	"github.com/mobilecoinofficial/full-service-sub000/selector"
	"github.com/mobilecoinofficial/full-service-sub000/signer"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/stretchr/testify/require"
)

func randomPoint(t *testing.T) crypto.Point {
	t.Helper()
	s, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	return s.BasepointMul()
}

// fixture wires a wallet DB with one funded account, a ledger containing
// ring.Size outputs (the account's real input among them), and a Builder
// over fresh Selector/Sampler/Schedule collaborators, enough to exercise a
// full Build() end to end.
type fixture struct {
	db      *walletdb.DB
	ledger  *ledger.Store
	builder *Builder
	acct    walletdb.Account
}

func newFixture(t *testing.T, tip uint64) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

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
	acctID := address.AccountID(viewPrivate.BasepointMul(), spendPublic)

	mainAddr := address.Encode(address.PublicAddress{ViewPublic: viewPrivate.BasepointMul(), SpendPublic: spendPublic})
	changeSpendPublic, changeViewPublic := address.DeriveSubaddressPublicKeys(viewPrivate, spendPublic, walletdb.ChangeSubaddressIndex)
	changeAddr := address.Encode(address.PublicAddress{ViewPublic: changeViewPublic, SpendPublic: changeSpendPublic})

	spendPrivateBytes := spendPrivate.Bytes()
	acct := walletdb.Account{
		ID:           acctID,
		ViewPrivate:  viewPrivate.Bytes(),
		SpendPrivate: &spendPrivateBytes,
		SpendPublic:  spendPublic.Bytes(),
		Name:         "test",
	}
	require.NoError(t, db.CreateAccount(ctx, acct, mainAddr, changeAddr))
	acct, err = db.GetAccount(ctx, acctID)
	require.NoError(t, err)

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
	txo := walletdb.Txo{
		AccountID:          acctID,
		AmountValue:        1_000_000_000_000,
		AmountTokenID:      0,
		SubaddressIndex:    &sub,
		ReceivedBlockIndex: &received,
		PublicKey:          realPub,
		RawOutputBlob:      []byte{0x01},
	}
	txo.ID = address.TxoID(mustPoint(t, realPub))
	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.InsertTxo(ctx, tx, txo)
	}))

	sel := selector.New(db)
	sampler := ring.New(ls, ks)
	fees := feeschedule.New()
	builder := New(db, sel, sampler, fees, ls, func() (uint64, error) { return tip, nil })

	return fixture{db: db, ledger: ls, builder: builder, acct: acct}
}

func mustPoint(t *testing.T, b [32]byte) crypto.Point {
	t.Helper()
	p, err := crypto.NewPointFromBytes(b)
	require.NoError(t, err)
	return p
}

func recipientAddress(t *testing.T) string {
	t.Helper()
	return address.Encode(address.PublicAddress{ViewPublic: randomPoint(t), SpendPublic: randomPoint(t)})
}

func TestBuilderBuildSignsAndAssembles(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	recipient := recipientAddress(t)
	prop, err := f.builder.Build(ctx, f.acct, Params{
		AccountID: f.acct.ID,
		Outlays:   []Outlay{{RecipientPublicAddressB58: recipient, Amount: chain.Amount{Value: 5_000_000, TokenID: 0}}},
	})
	require.NoError(t, err)

	require.Len(t, prop.InputTxos, 1)
	require.Len(t, prop.PayloadTxos, 1)
	require.Len(t, prop.ChangeTxos, 1)
	require.Equal(t, recipient, prop.PayloadTxos[0].RecipientPublicAddressB58)
	require.EqualValues(t, feeschedule.DefaultMinimumFee, prop.FeeAmount.Value)
	require.EqualValues(t, 110, prop.TombstoneBlockIndex)
	require.NotEmpty(t, prop.TxProto)
	require.NotEqual(t, [32]byte{}, prop.LogID)
}

func TestBuilderBuildRoutesToBurnAddress(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	prop, err := f.builder.BuildBurn(ctx, f.acct, Params{
		AccountID:         f.acct.ID,
		Outlays:           []Outlay{{RecipientPublicAddressB58: "ignored", Amount: chain.Amount{Value: 1_000_000, TokenID: 0}}},
		RedemptionMemoHex: []byte{0xAB, 0xCD},
	})
	require.NoError(t, err)
	require.Equal(t, BurnPublicAddressB58, prop.PayloadTxos[0].RecipientPublicAddressB58)
}

func TestBuilderBuildUnsignedThenSign(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	recipient := recipientAddress(t)
	unsigned, err := f.builder.BuildUnsigned(ctx, f.acct, Params{
		AccountID: f.acct.ID,
		Outlays:   []Outlay{{RecipientPublicAddressB58: recipient, Amount: chain.Amount{Value: 2_000_000, TokenID: 0}}},
	})
	require.NoError(t, err)
	require.Len(t, unsigned.Descriptors, 1)
	require.Len(t, unsigned.Rings, 1)

	prop, err := f.builder.Sign(unsigned, signer.NewLocal(), f.acct)
	require.NoError(t, err)
	require.NotEmpty(t, prop.TxProto)
}

func TestBuilderRejectsMixedTokenOutlays(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, f.acct, Params{
		AccountID: f.acct.ID,
		Outlays: []Outlay{
			{RecipientPublicAddressB58: recipientAddress(t), Amount: chain.Amount{Value: 1, TokenID: 0}},
			{RecipientPublicAddressB58: recipientAddress(t), Amount: chain.Amount{Value: 1, TokenID: 1}},
		},
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindTokenMismatch))
}

func TestBuilderRejectsEmptyOutlays(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, f.acct, Params{AccountID: f.acct.ID})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindTransactionValidation))
}

