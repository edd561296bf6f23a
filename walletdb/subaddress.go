package walletdb

import (
	"context"
	"database/sql"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// Subaddress is the persisted row for a (account_id, index) subaddress
// (§3 Subaddress).
type Subaddress struct {
	AccountID        [32]byte
	Index            uint64
	PublicAddressB58 string
	Metadata         string
}

// CreateSubaddress inserts a subaddress row at an index already reserved
// by AssignNextSubaddressIndex. Orphaned txos matching this subaddress
// are rescanned by the caller (the Account Scanner), per §4.E "Newly
// assigning a subaddress triggers a rescan over pending orphans."
func (d *DB) CreateSubaddress(ctx context.Context, accountID [32]byte, idx uint64, publicAddressB58, metadata string) (Subaddress, error) {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO subaddresses (account_id, idx, public_address_b58, metadata) VALUES (?, ?, ?, ?)`,
		hexID(accountID), idx, publicAddressB58, nullIfEmpty(metadata))
	if isUniqueViolation(err) {
		return Subaddress{}, errs.New(errs.KindTransactionValidation, "walletdb: public address already assigned to a subaddress")
	}
	if err != nil {
		return Subaddress{}, errs.Wrap(errs.KindDatabase, err)
	}

	return Subaddress{AccountID: accountID, Index: idx, PublicAddressB58: publicAddressB58, Metadata: metadata}, nil
}

// GetSubaddress returns the subaddress at (accountID, index).
func (d *DB) GetSubaddress(ctx context.Context, accountID [32]byte, index uint64) (Subaddress, error) {
	var sub Subaddress
	var metadata sql.NullString
	row := d.sql.QueryRowContext(ctx, `
		SELECT account_id, idx, public_address_b58, metadata FROM subaddresses WHERE account_id = ? AND idx = ?`,
		hexID(accountID), index)

	var idHex string
	if err := row.Scan(&idHex, &sub.Index, &sub.PublicAddressB58, &metadata); err == sql.ErrNoRows {
		return Subaddress{}, errs.New(errs.KindAddressNotFound, "walletdb: no such subaddress")
	} else if err != nil {
		return Subaddress{}, errs.Wrap(errs.KindDatabase, err)
	}
	sub.AccountID = accountID
	sub.Metadata = metadata.String
	return sub, nil
}

// ListSubaddresses returns every subaddress for an account, ordered by
// index.
func (d *DB) ListSubaddresses(ctx context.Context, accountID [32]byte) ([]Subaddress, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT idx, public_address_b58, metadata FROM subaddresses WHERE account_id = ? ORDER BY idx`,
		hexID(accountID))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []Subaddress
	for rows.Next() {
		var sub Subaddress
		var metadata sql.NullString
		if err := rows.Scan(&sub.Index, &sub.PublicAddressB58, &metadata); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err)
		}
		sub.AccountID = accountID
		sub.Metadata = metadata.String
		out = append(out, sub)
	}
	return out, rows.Err()
}

// FindSubaddressByPublicAddress reverse-looks-up a public address string
// to its owning account and index, used by the scanner's view-key
// matching step (§4.E step 2).
func (d *DB) FindSubaddressByPublicAddress(ctx context.Context, publicAddressB58 string) (Subaddress, error) {
	var sub Subaddress
	var idHex string
	var metadata sql.NullString
	row := d.sql.QueryRowContext(ctx, `
		SELECT account_id, idx, metadata FROM subaddresses WHERE public_address_b58 = ?`, publicAddressB58)
	if err := row.Scan(&idHex, &sub.Index, &metadata); err == sql.ErrNoRows {
		return Subaddress{}, errs.New(errs.KindAddressNotFound, "walletdb: no subaddress for that public address")
	} else if err != nil {
		return Subaddress{}, errs.Wrap(errs.KindDatabase, err)
	}
	copy(sub.AccountID[:], mustDecodeHexID(idHex))
	sub.PublicAddressB58 = publicAddressB58
	sub.Metadata = metadata.String
	return sub, nil
}
