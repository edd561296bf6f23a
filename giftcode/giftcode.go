// Package giftcode implements the Gift Code lifecycle (§3 Gift Code, §4.K
// gift-code dispatcher methods): a one-time transient self-account is
// funded with a single output, bundled into a shareable b58 code, and later
// claimed by sweeping that output into the claimant's own account. Status
// tracking (submitted_pending -> available -> claimed) is driven by the
// same Scanner observations that drive every other balance change; this
// package only reconciles a gift code's row against the transient
// account's txos on demand, the way check_gift_code_status is specified as
// a dispatcher-invoked method rather than a push notification.
package giftcode

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/mobilecoinofficial/full-service-sub000/account"
	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/submission"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// bundleChecksumLength mirrors the address package's checksum convention
// for the gift code's own b58 bundle (entropy, txo public key, memo).
const bundleChecksumLength = 4

// ErrNotAvailable is returned by Claim when the gift code is not yet
// funded on-chain or has already been claimed.
var ErrNotAvailable = errors.New("giftcode: gift code is not available to claim")

// Proposal is the result of Build (§4.K "build_gift_code"): a funding
// transaction ready to submit, plus everything needed to persist the gift
// code row once it has been accepted by a peer.
type Proposal struct {
	B58       string
	Entropy   [32]byte
	Value     uint64
	TokenID   uint64
	Memo      string
	AccountID [32]byte
	Tx        txbuilder.TxProposal
}

// Manager builds, submits, and claims gift codes against one Wallet DB.
type Manager struct {
	db        *walletdb.DB
	builder   *txbuilder.Builder
	submitMgr *submission.Manager
}

// New builds a Manager.
func New(db *walletdb.DB, builder *txbuilder.Builder, submitMgr *submission.Manager) *Manager {
	return &Manager{db: db, builder: builder, submitMgr: submitMgr}
}

// Build implements build_gift_code (§4.K): it mints a transient self-account
// from fresh entropy, funds it from fundingAcct with a single output of the
// given value, and returns the unsubmitted proposal. The transient account
// is persisted immediately (not on Submit) so the entropy and the
// derivation work only happen once, and so Submit is retry-idempotent on
// the log id alone.
func (m *Manager) Build(ctx context.Context, fundingAcct walletdb.Account, value chain.Amount, memo string, currentBlockIndex uint64) (Proposal, error) {
	var entropy [32]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return Proposal{}, errs.Wrap(errs.KindDatabase, err)
	}

	keys := account.FromLegacyEntropy(entropy)
	giftAcct, err := account.Create(ctx, m.db, keys, "gift code", currentBlockIndex)
	if err != nil {
		return Proposal{}, err
	}

	mainSub, err := m.db.GetSubaddress(ctx, giftAcct.ID, 0)
	if err != nil {
		return Proposal{}, err
	}

	prop, err := m.builder.Build(ctx, fundingAcct, txbuilder.Params{
		AccountID: fundingAcct.ID,
		Outlays: []txbuilder.Outlay{
			{RecipientPublicAddressB58: mainSub.PublicAddressB58, Amount: value},
		},
	})
	if err != nil {
		return Proposal{}, err
	}

	var txoPublicKey [32]byte
	if len(prop.PayloadTxos) > 0 {
		txoPublicKey = prop.PayloadTxos[0].Record.PublicKey
	}

	return Proposal{
		B58:       encodeBundle(entropy, txoPublicKey, memo),
		Entropy:   entropy,
		Value:     value.Value,
		TokenID:   value.TokenID,
		Memo:      memo,
		AccountID: giftAcct.ID,
		Tx:        prop,
	}, nil
}

// Submit implements submit_gift_code (§4.K): it hands the funding
// transaction to a peer and, on acceptance, records the gift code row in
// submitted_pending status.
func (m *Manager) Submit(ctx context.Context, p Proposal) error {
	if err := m.submitMgr.Submit(ctx, p.Tx, true, "gift code funding"); err != nil {
		return err
	}
	return m.db.CreateGiftCode(ctx, walletdb.GiftCode{
		B58:       p.B58,
		Entropy:   append([]byte(nil), p.Entropy[:]...),
		Value:     p.Value,
		TokenID:   p.TokenID,
		Memo:      p.Memo,
		AccountID: p.AccountID,
	})
}

// Get implements get_gift_code.
func (m *Manager) Get(ctx context.Context, b58 string) (walletdb.GiftCode, error) {
	return m.db.GetGiftCode(ctx, b58)
}

// GetAll implements get_all_gift_codes.
func (m *Manager) GetAll(ctx context.Context) ([]walletdb.GiftCode, error) {
	return m.db.ListGiftCodes(ctx)
}

// CheckStatus implements check_gift_code_status (§4.K): it reconciles a
// gift code's row against its transient account's current txos. A
// submitted_pending code becomes available once the funding output is
// observed unspent; an available code becomes claimed once that output is
// observed spent. Both transitions are idempotent no-ops once already
// applied.
func (m *Manager) CheckStatus(ctx context.Context, b58 string) (walletdb.GiftCode, error) {
	gc, err := m.db.GetGiftCode(ctx, b58)
	if err != nil {
		return walletdb.GiftCode{}, err
	}
	if gc.Status == walletdb.GiftCodeClaimed {
		return gc, nil
	}

	txos, err := m.db.ListTxosForAccount(ctx, gc.AccountID)
	if err != nil {
		return walletdb.GiftCode{}, err
	}

	var sawUnspent, sawSpent bool
	for _, t := range txos {
		if t.SpentBlockIndex != nil {
			sawSpent = true
		} else if t.ReceivedBlockIndex != nil {
			sawUnspent = true
		}
	}

	switch {
	case sawSpent && gc.Status != walletdb.GiftCodeClaimed:
		if err := m.db.SetGiftCodeStatus(ctx, b58, walletdb.GiftCodeClaimed); err != nil {
			return walletdb.GiftCode{}, err
		}
		gc.Status = walletdb.GiftCodeClaimed
	case sawUnspent && gc.Status == walletdb.GiftCodeSubmittedPending:
		if err := m.db.SetGiftCodeStatus(ctx, b58, walletdb.GiftCodeAvailable); err != nil {
			return walletdb.GiftCode{}, err
		}
		gc.Status = walletdb.GiftCodeAvailable
	}
	return gc, nil
}

// Claim implements claim_gift_code (§4.K): it recovers the transient
// account's keys from the gift code's own stored entropy, sweeps its
// single funding output to claimantAcct, and marks the code claimed.
func (m *Manager) Claim(ctx context.Context, b58 string, claimantAcct walletdb.Account) error {
	gc, err := m.CheckStatus(ctx, b58)
	if err != nil {
		return err
	}
	if gc.Status != walletdb.GiftCodeAvailable {
		return errs.Wrap(errs.KindTransactionValidation, ErrNotAvailable)
	}

	giftAcct, err := m.db.GetAccount(ctx, gc.AccountID)
	if err != nil {
		return err
	}

	unspent, err := m.db.ListUnspent(ctx, gc.AccountID, gc.TokenID)
	if err != nil {
		return err
	}
	if len(unspent) == 0 {
		return errs.Wrap(errs.KindTransactionValidation, ErrNotAvailable)
	}

	claimantMain, err := m.db.GetSubaddress(ctx, claimantAcct.ID, 0)
	if err != nil {
		return err
	}

	inputIDs := make([][32]byte, len(unspent))
	var total uint64
	for i, t := range unspent {
		inputIDs[i] = t.ID
		total += t.AmountValue
	}

	fee, err := m.builder.FeeFor(gc.TokenID)
	if err != nil {
		return err
	}
	if fee.Value >= total {
		return errs.Wrap(errs.KindInsufficientFunds, ErrNotAvailable)
	}
	sweepValue := total - fee.Value

	prop, err := m.builder.Build(ctx, giftAcct, txbuilder.Params{
		AccountID:   gc.AccountID,
		InputTxoIDs: inputIDs,
		FeeOverride: &fee,
		Outlays: []txbuilder.Outlay{
			{RecipientPublicAddressB58: claimantMain.PublicAddressB58, Amount: chain.Amount{Value: sweepValue, TokenID: gc.TokenID}},
		},
	})
	if err != nil {
		return err
	}

	if err := m.submitMgr.Submit(ctx, prop, true, "gift code claim"); err != nil {
		return err
	}
	return m.db.SetGiftCodeStatus(ctx, b58, walletdb.GiftCodeClaimed)
}

// Remove implements remove_gift_code: it drops local tracking of the code
// by deleting its gift-code row only; the transient account's own rows
// remain. It does not touch anything already broadcast to the ledger.
func (m *Manager) Remove(ctx context.Context, b58 string) error {
	return m.db.RemoveGiftCode(ctx, b58)
}

// encodeBundle produces the shareable gift_code_b58 string (§3 "b58-encoded
// bundle of (entropy, txo public key, memo)").
func encodeBundle(entropy, txoPublicKey [32]byte, memo string) string {
	var buf bytes.Buffer
	buf.Write(entropy[:])
	buf.Write(txoPublicKey[:])
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(memo)))
	buf.Write(l[:])
	buf.WriteString(memo)

	payload := buf.Bytes()
	sum := bundleChecksum(payload)
	return base58.Encode(append(payload, sum...))
}

// DecodeBundle parses a gift_code_b58 string, verifying its checksum.
func DecodeBundle(b58 string) (entropy, txoPublicKey [32]byte, memo string, err error) {
	raw, decErr := base58.Decode(b58)
	if decErr != nil {
		return entropy, txoPublicKey, "", address.ErrInvalidAddress
	}
	if len(raw) < 32+32+4+bundleChecksumLength {
		return entropy, txoPublicKey, "", address.ErrInvalidAddress
	}
	payload := raw[:len(raw)-bundleChecksumLength]
	gotSum := raw[len(raw)-bundleChecksumLength:]
	if !bytes.Equal(gotSum, bundleChecksum(payload)) {
		return entropy, txoPublicKey, "", address.ErrInvalidAddress
	}

	copy(entropy[:], payload[0:32])
	copy(txoPublicKey[:], payload[32:64])
	memoLen := binary.LittleEndian.Uint32(payload[64:68])
	if uint32(len(payload)-68) != memoLen {
		return entropy, txoPublicKey, "", address.ErrInvalidAddress
	}
	memo = string(payload[68:])
	return entropy, txoPublicKey, memo, nil
}

func bundleChecksum(payload []byte) []byte {
	sum := blake2b.Sum256(payload)
	return sum[:bundleChecksumLength]
}
