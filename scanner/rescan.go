package scanner

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mobilecoinofficial/full-service-sub000/address"
	"github.com/mobilecoinofficial/full-service-sub000/chain"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
)

// RescanOrphans resolves an account's pending orphans against a subaddress
// index just assigned (§4.E "Newly assigning a subaddress triggers a
// rescan over pending orphans"). Each orphan already carries its raw
// on-chain output record; rescanning only needs to re-derive the target
// key for the newly known index and compare, not re-walk the ledger.
func (s *Scanner) RescanOrphans(ctx context.Context, accountID [32]byte, newIndex uint64) error {
	acct, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	orphans, err := s.db.ListOrphaned(ctx, accountID)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	viewPrivate, err := crypto.NewScalarFromBytes(acct.ViewPrivate)
	if err != nil {
		return err
	}
	spendPublic, err := crypto.NewPointFromBytes(acct.SpendPublic)
	if err != nil {
		return err
	}
	candidateSpendPublic, _ := address.DeriveSubaddressPublicKeys(viewPrivate, spendPublic, newIndex)

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, orphan := range orphans {
			var out chain.TxOutRecord
			if err := json.Unmarshal(orphan.RawOutputBlob, &out); err != nil {
				continue
			}
			outputPublicKey, err := crypto.NewPointFromBytes(out.PublicKey)
			if err != nil {
				continue
			}
			targetKey, err := crypto.NewPointFromBytes(out.TargetKey)
			if err != nil {
				continue
			}

			sharedSecret := crypto.SharedSecret(viewPrivate, outputPublicKey)
			candidateTarget := crypto.DeriveSubaddressTargetKey(sharedSecret, candidateSpendPublic)
			if !candidateTarget.Equal(targetKey) {
				continue
			}

			if err := s.db.AssignOrphanSubaddress(ctx, tx, orphan.ID, newIndex); err != nil {
				return err
			}
			log.Debugf("scanner: account %x: resolved orphan txo %x to subaddress %d", accountID, orphan.ID, newIndex)
		}
		return nil
	})
}
