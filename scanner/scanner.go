// Package scanner implements the Account Scanner (§4.E): per account, it
// walks newly appended blocks, matches outputs against the account's view
// key, records or orphans owned txos, reconciles spent key images, and
// finalizes pending transaction logs.
package scanner

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// scanLookahead bounds how far past an account's assigned subaddresses the
// scanner probes for orphaned outputs: an output whose target key matches
// only an index in this window is owned but not yet mapped to a known
// subaddress (§4.E "Orphans").
const scanLookahead = 20

// Scanner drives one account's view-key matching against the Block Store
// and writes the results to the Wallet DB.
type Scanner struct {
	db     *walletdb.DB
	ledger *ledger.Store
}

// New builds a Scanner over db and ledgerStore.
func New(db *walletdb.DB, ledgerStore *ledger.Store) *Scanner {
	return &Scanner{db: db, ledger: ledgerStore}
}

// ScanAccount advances an account's cursor to the Block Store's current
// height, one block per transaction so a failure mid-block rolls back
// cleanly (§4.E "a partially-processed block must be rolled back on
// error"). It returns when the cursor has caught up or ctx is done.
func (s *Scanner) ScanAccount(ctx context.Context, accountID [32]byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		acct, err := s.db.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		numBlocks, err := s.ledger.NumBlocks()
		if err != nil {
			return err
		}
		if acct.NextBlockIndex >= numBlocks {
			return nil
		}

		if err := s.scanBlock(ctx, acct, acct.NextBlockIndex); err != nil {
			return err
		}
	}
}

func (s *Scanner) scanBlock(ctx context.Context, acct walletdb.Account, blockIndex uint64) error {
	contents, err := s.ledger.GetBlockContents(blockIndex)
	if err != nil {
		return err
	}

	viewPrivate, err := crypto.NewScalarFromBytes(acct.ViewPrivate)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	spendPublic, err := crypto.NewPointFromBytes(acct.SpendPublic)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	var spendPrivate *crypto.Scalar
	if acct.SpendPrivate != nil {
		sp, err := crypto.NewScalarFromBytes(*acct.SpendPrivate)
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}
		spendPrivate = &sp
	}

	subs, err := s.db.ListSubaddresses(ctx, acct.ID)
	if err != nil {
		return err
	}
	known := make(map[uint64]struct{}, len(subs))
	for _, sub := range subs {
		known[sub.Index] = struct{}{}
	}

	pending, err := s.db.ListPending(ctx, acct.ID)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, out := range contents.Outputs {
			if err := s.matchOutput(ctx, tx, acct, viewPrivate, spendPublic, spendPrivate, known, blockIndex, out); err != nil {
				return err
			}
		}

		for _, ki := range contents.SpentKeyImages {
			txoID, matched, err := s.db.MarkSpent(ctx, tx, ki, blockIndex)
			if err != nil {
				return err
			}
			if matched {
				log.Debugf("scanner: account %x: txo %x spent in block %d", acct.ID, txoID, blockIndex)
			}
		}

		if err := s.reconcilePending(ctx, tx, acct, pending, blockIndex); err != nil {
			return err
		}

		return s.db.AdvanceCursor(ctx, tx, acct.ID, blockIndex+1)
	})
}

// matchOutput runs the view-key match of §4.E steps 1-4 against a single
// output, inserting a txo row when the account owns it.
func (s *Scanner) matchOutput(
	ctx context.Context,
	tx *sql.Tx,
	acct walletdb.Account,
	viewPrivate crypto.Scalar,
	spendPublic crypto.Point,
	spendPrivate *crypto.Scalar,
	known map[uint64]struct{},
	blockIndex uint64,
	out chain.TxOutRecord,
) error {
	outputPublicKey, err := crypto.NewPointFromBytes(out.PublicKey)
	if err != nil {
		log.Warnf("scanner: account %x: malformed output public key in block %d, skipping output", acct.ID, blockIndex)
		return nil
	}
	targetKey, err := crypto.NewPointFromBytes(out.TargetKey)
	if err != nil {
		log.Warnf("scanner: account %x: malformed target key in block %d, skipping output", acct.ID, blockIndex)
		return nil
	}

	sharedSecret := crypto.SharedSecret(viewPrivate, outputPublicKey)

	matchedIndex, isKnown, found := findSubaddress(viewPrivate, spendPublic, sharedSecret, targetKey, acct.NextSubaddressIndex, known)
	if !found {
		return nil
	}

	value, tokenID := crypto.UnmaskAmount(sharedSecret, out.MaskedValue, out.MaskedTokenID)
	if chain.CommitAmount(sharedSecret, value, tokenID) != out.Commitment {
		log.Warnf("scanner: account %x: commitment mismatch on output %x in block %d, skipping output", acct.ID, out.PublicKey, blockIndex)
		return nil
	}

	txoID := crypto.Hash256(out.PublicKey[:])

	var keyImage *[32]byte
	if spendPrivate != nil {
		subSpendPrivate := address.DeriveSubaddressSpendPrivate(*spendPrivate, viewPrivate, matchedIndex)
		onetimePrivate := crypto.DeriveOneTimePrivateKey(subSpendPrivate, sharedSecret)
		ki := crypto.KeyImage(onetimePrivate)
		keyImage = &ki
	}

	var subIdx *uint64
	if isKnown {
		idx := matchedIndex
		subIdx = &idx
	}

	rawBlob, err := json.Marshal(out)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}

	received := blockIndex
	t := walletdb.Txo{
		ID:                 txoID,
		AccountID:           acct.ID,
		AmountValue:         value,
		AmountTokenID:       tokenID,
		SubaddressIndex:     subIdx,
		ReceivedBlockIndex:  &received,
		KeyImage:            keyImage,
		PublicKey:           out.PublicKey,
		RawOutputBlob:       rawBlob,
	}

	if err := s.db.InsertTxo(ctx, tx, t); err != nil {
		if errs.Is(err, errs.KindTransactionValidation) {
			// Already recorded — a rescan revisiting a previously matched
			// output, not a fresh error.
			return nil
		}
		return err
	}

	if isKnown {
		log.Debugf("scanner: account %x: matched output at subaddress %d in block %d", acct.ID, matchedIndex, blockIndex)
	} else {
		log.Debugf("scanner: account %x: orphaned output in block %d", acct.ID, blockIndex)
	}
	return nil
}

// findSubaddress searches an account's known subaddresses, then a
// lookahead window past its next unassigned index, for one whose derived
// target key matches. A match outside the known set is owned but not yet
// mapped — an orphan (§4.E "Orphans").
func findSubaddress(
	viewPrivate crypto.Scalar,
	accountSpendPublic crypto.Point,
	sharedSecret crypto.Point,
	targetKey crypto.Point,
	nextSubaddressIndex uint64,
	known map[uint64]struct{},
) (index uint64, isKnown bool, found bool) {
	for idx := range known {
		candidateSpendPublic, _ := address.DeriveSubaddressPublicKeys(viewPrivate, accountSpendPublic, idx)
		candidateTarget := crypto.DeriveSubaddressTargetKey(sharedSecret, candidateSpendPublic)
		if candidateTarget.Equal(targetKey) {
			return idx, true, true
		}
	}

	for idx := nextSubaddressIndex; idx < nextSubaddressIndex+scanLookahead; idx++ {
		if _, already := known[idx]; already {
			continue
		}
		candidateSpendPublic, _ := address.DeriveSubaddressPublicKeys(viewPrivate, accountSpendPublic, idx)
		candidateTarget := crypto.DeriveSubaddressTargetKey(sharedSecret, candidateSpendPublic)
		if candidateTarget.Equal(targetKey) {
			return idx, false, true
		}
	}

	return 0, false, false
}

// reconcilePending sweeps an account's pending transaction logs, finalizing
// any whose inputs are now all spent at or before their tombstone, and
// failing any whose tombstone has passed with an input still unspent (§4.E
// step 6). The pending set is read by scanBlock before the block's
// transaction opens.
func (s *Scanner) reconcilePending(ctx context.Context, tx *sql.Tx, acct walletdb.Account, pending []walletdb.TransactionLog, blockIndex uint64) error {
	for _, txLog := range pending {
		inputIDs, err := s.db.InputTxoIDs(ctx, tx, txLog.ID)
		if err != nil {
			return err
		}

		allSpent := true
		maxSpent := uint64(0)
		for _, id := range inputIDs {
			input, err := s.db.GetTxoTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if input.SpentBlockIndex == nil {
				allSpent = false
				break
			}
			if *input.SpentBlockIndex > maxSpent {
				maxSpent = *input.SpentBlockIndex
			}
		}

		switch {
		case allSpent && maxSpent <= txLog.TombstoneBlockIndex:
			if err := s.db.FinalizeSucceeded(ctx, tx, txLog.ID, maxSpent); err != nil {
				return err
			}
			log.Infof("scanner: account %x: transaction log %x succeeded at block %d", acct.ID, txLog.ID, maxSpent)
		case !allSpent && blockIndex > txLog.TombstoneBlockIndex:
			if err := s.db.FinalizeFailed(ctx, tx, txLog.ID); err != nil {
				return err
			}
			log.Infof("scanner: account %x: transaction log %x failed, tombstone %d passed at block %d",
				acct.ID, txLog.ID, txLog.TombstoneBlockIndex, blockIndex)
		}
	}

	return nil
}
