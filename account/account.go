// Package account implements account creation and import/export lifecycle
// operations on top of the Wallet DB and address packages: new random
// accounts, mnemonic and legacy-entropy import, view-only import, and the
// view-only export-sync-request bundle an external signer consumes (§4.D
// Account, §6 "import from mnemonic or legacy entropy, import view-only").
// Mnemonic handling is grounded on the pack's tyler-smith/go-bip39 usage
// (orbas1-Synnergy's core.HDWallet), the only BIP-39 library anywhere in
// the retrieved corpus.
package account

import (
	"context"
	"crypto/rand"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/tyler-smith/go-bip39"
)

// entropyBits is fixed at 256 bits (24-word mnemonics), the stronger of
// the two sizes bip39 supports.
const entropyBits = 256

// Keys is a derived account keypair plus its mnemonic, when one exists.
type Keys struct {
	SpendPrivate crypto.Scalar
	ViewPrivate  crypto.Scalar
	Mnemonic     string // empty for legacy-entropy or view-only derived keys
}

// NewRandom generates a fresh 24-word mnemonic and derives its keys.
func NewRandom() (Keys, error) {
	entropy := make([]byte, entropyBits/8)
	if _, err := rand.Read(entropy); err != nil {
		return Keys{}, errs.Wrap(errs.KindDatabase, err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Keys{}, errs.Wrap(errs.KindTransactionValidation, err)
	}
	keys, err := FromMnemonic(mnemonic)
	if err != nil {
		return Keys{}, err
	}
	keys.Mnemonic = mnemonic
	return keys, nil
}

// FromMnemonic recovers keys from a 12- or 24-word BIP-39 mnemonic. The
// mnemonic's own entropy (not its salted PBKDF2 seed) is what legacy
// entropy import round-trips against, so both import paths converge on
// the same DeriveAccountKeysFromEntropy call.
func FromMnemonic(mnemonic string) (Keys, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return Keys{}, errs.New(errs.KindTransactionValidation, "account: invalid mnemonic")
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return Keys{}, errs.Wrap(errs.KindTransactionValidation, err)
	}
	var seed32 [32]byte
	copy(seed32[:], entropy)
	spendPrivate, viewPrivate := address.DeriveAccountKeysFromEntropy(seed32)
	return Keys{SpendPrivate: spendPrivate, ViewPrivate: viewPrivate, Mnemonic: mnemonic}, nil
}

// FromLegacyEntropy recovers keys from 32 bytes of raw root entropy,
// bypassing the mnemonic's word encoding entirely (§6 "legacy entropy").
func FromLegacyEntropy(entropy [32]byte) Keys {
	spendPrivate, viewPrivate := address.DeriveAccountKeysFromEntropy(entropy)
	return Keys{SpendPrivate: spendPrivate, ViewPrivate: viewPrivate}
}

// Create persists a new full account and its reserved main and change
// subaddresses (§3 Subaddress "created on account creation").
func Create(ctx context.Context, db *walletdb.DB, keys Keys, name string, firstBlockIndex uint64) (walletdb.Account, error) {
	spendPublic := keys.SpendPrivate.BasepointMul()
	acctID := address.AccountID(keys.ViewPrivate.BasepointMul(), spendPublic)

	mainAddr := address.Encode(address.PublicAddress{ViewPublic: keys.ViewPrivate.BasepointMul(), SpendPublic: spendPublic})
	changeSpendPublic, changeViewPublic := address.DeriveSubaddressPublicKeys(keys.ViewPrivate, spendPublic, walletdb.ChangeSubaddressIndex)
	changeAddr := address.Encode(address.PublicAddress{ViewPublic: changeViewPublic, SpendPublic: changeSpendPublic})

	spendPrivateBytes := keys.SpendPrivate.Bytes()
	acct := walletdb.Account{
		ID:              acctID,
		ViewPrivate:     keys.ViewPrivate.Bytes(),
		SpendPrivate:    &spendPrivateBytes,
		SpendPublic:     spendPublic.Bytes(),
		Name:            name,
		FirstBlockIndex: firstBlockIndex,
		ViewOnly:        false,
	}
	if err := db.CreateAccount(ctx, acct, mainAddr, changeAddr); err != nil {
		return walletdb.Account{}, err
	}
	return db.GetAccount(ctx, acctID)
}

// CreateViewOnly persists a new view-only account from an externally
// supplied (view private, spend public) pair, the counterpart an external
// signer retains the spend key for (§4.D "spend_private?").
func CreateViewOnly(ctx context.Context, db *walletdb.DB, viewPrivate crypto.Scalar, spendPublic crypto.Point, name string, firstBlockIndex uint64) (walletdb.Account, error) {
	acctID := address.AccountID(viewPrivate.BasepointMul(), spendPublic)

	mainAddr := address.Encode(address.PublicAddress{ViewPublic: viewPrivate.BasepointMul(), SpendPublic: spendPublic})
	changeSpendPublic, changeViewPublic := address.DeriveSubaddressPublicKeys(viewPrivate, spendPublic, walletdb.ChangeSubaddressIndex)
	changeAddr := address.Encode(address.PublicAddress{ViewPublic: changeViewPublic, SpendPublic: changeSpendPublic})

	acct := walletdb.Account{
		ID:              acctID,
		ViewPrivate:     viewPrivate.Bytes(),
		SpendPublic:     spendPublic.Bytes(),
		Name:            name,
		FirstBlockIndex: firstBlockIndex,
		ViewOnly:        true,
	}
	if err := db.CreateAccount(ctx, acct, mainAddr, changeAddr); err != nil {
		return walletdb.Account{}, err
	}
	return db.GetAccount(ctx, acctID)
}

// ViewOnlySyncRequest is the bundle a view-only account's owner hands to
// an external full-key signer so it can derive the same key images and
// sign on the view-only account's behalf (§4.K "export view-only sync
// request").
type ViewOnlySyncRequest struct {
	AccountID   [32]byte
	ViewPrivate [32]byte
	SpendPublic [32]byte
}

// ExportViewOnlySyncRequest builds the sync request bundle for acct. It
// works for both full and view-only accounts: a full account exporting
// this is handing out its view key (but never its spend key) so a
// separate signer-only process can watch and sign for it.
func ExportViewOnlySyncRequest(acct walletdb.Account) ViewOnlySyncRequest {
	return ViewOnlySyncRequest{AccountID: acct.ID, ViewPrivate: acct.ViewPrivate, SpendPublic: acct.SpendPublic}
}
