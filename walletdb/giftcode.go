package walletdb

import (
	"context"
	"database/sql"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// GiftCodeStatus is one of the three states a gift code passes through
// (§3 Gift Code).
type GiftCodeStatus string

const (
	GiftCodeSubmittedPending GiftCodeStatus = "submitted_pending"
	GiftCodeAvailable        GiftCodeStatus = "available"
	GiftCodeClaimed          GiftCodeStatus = "claimed"
)

// GiftCode is the persisted row for a one-time self-account claimable
// bundle (§3 Gift Code).
type GiftCode struct {
	B58       string
	Entropy   []byte
	Value     uint64
	TokenID   uint64
	Memo      string
	AccountID [32]byte
	Status    GiftCodeStatus
}

// CreateGiftCode records a new gift code in submitted_pending status,
// tied to the transient self-account that minted it.
func (d *DB) CreateGiftCode(ctx context.Context, gc GiftCode) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO gift_codes (b58, entropy, value, token_id, memo, account_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		gc.B58, gc.Entropy, gc.Value, gc.TokenID, nullIfEmpty(gc.Memo), hexID(gc.AccountID), string(GiftCodeSubmittedPending))
	if isUniqueViolation(err) {
		return errs.New(errs.KindTransactionValidation, "walletdb: gift code already exists")
	}
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return nil
}

// GetGiftCode returns a gift code by its b58 identifier.
func (d *DB) GetGiftCode(ctx context.Context, b58 string) (GiftCode, error) {
	var gc GiftCode
	var idHex string
	var memo sql.NullString
	var status string
	row := d.sql.QueryRowContext(ctx, `
		SELECT b58, entropy, value, token_id, memo, account_id, status FROM gift_codes WHERE b58 = ?`, b58)
	if err := row.Scan(&gc.B58, &gc.Entropy, &gc.Value, &gc.TokenID, &memo, &idHex, &status); err == sql.ErrNoRows {
		return GiftCode{}, errs.New(errs.KindTxoNotFound, "walletdb: no such gift code")
	} else if err != nil {
		return GiftCode{}, errs.Wrap(errs.KindDatabase, err)
	}
	gc.Memo = memo.String
	gc.Status = GiftCodeStatus(status)
	copy(gc.AccountID[:], mustDecodeHexID(idHex))
	return gc, nil
}

// ListGiftCodes returns every gift code row, newest insertions last.
func (d *DB) ListGiftCodes(ctx context.Context) ([]GiftCode, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT b58, entropy, value, token_id, memo, account_id, status FROM gift_codes ORDER BY rowid`)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []GiftCode
	for rows.Next() {
		var gc GiftCode
		var idHex string
		var memo sql.NullString
		var status string
		if err := rows.Scan(&gc.B58, &gc.Entropy, &gc.Value, &gc.TokenID, &memo, &idHex, &status); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err)
		}
		gc.Memo = memo.String
		gc.Status = GiftCodeStatus(status)
		copy(gc.AccountID[:], mustDecodeHexID(idHex))
		out = append(out, gc)
	}
	return out, rows.Err()
}

// SetGiftCodeStatus updates a gift code's status, used as its minted
// output is observed on-chain (→ available) and later claimed
// (→ claimed).
func (d *DB) SetGiftCodeStatus(ctx context.Context, b58 string, status GiftCodeStatus) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE gift_codes SET status = ? WHERE b58 = ?`, string(status), b58)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTxoNotFound, "walletdb: no such gift code")
}

// RemoveGiftCode deletes a gift code row. Only the gift_codes row is
// removed; the backing transient account and its subaddresses, txos and
// transaction logs stay in the database.
func (d *DB) RemoveGiftCode(ctx context.Context, b58 string) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM gift_codes WHERE b58 = ?`, b58)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTxoNotFound, "walletdb: no such gift code")
}
