package walletdb

import (
	"context"
	"database/sql"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// Account is the persisted row for an account (§3 Account).
type Account struct {
	ID                  [32]byte
	ViewPrivate         [32]byte
	SpendPrivate        *[32]byte // nil for a view-only account
	SpendPublic         [32]byte
	Name                string
	FirstBlockIndex     uint64
	NextBlockIndex      uint64
	NextSubaddressIndex uint64
	FogReportURL        string
	FogAuthoritySig     []byte
	ViewOnly            bool
}

// CreateAccount inserts a new account row along with its reserved index-0
// and change subaddresses (§3 Subaddress "created on account creation").
func (d *DB) CreateAccount(ctx context.Context, acct Account, mainAddress, changeAddress string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var spendPrivate interface{}
		if acct.SpendPrivate != nil {
			spendPrivate = acct.SpendPrivate[:]
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (
				id, view_private, spend_private, spend_public, name,
				first_block_index, next_block_index, next_subaddress_index,
				fog_report_url, fog_authority_sig, view_only
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			hexID(acct.ID), acct.ViewPrivate[:], spendPrivate, acct.SpendPublic[:], acct.Name,
			acct.FirstBlockIndex, acct.FirstBlockIndex, 2,
			nullIfEmpty(acct.FogReportURL), nullIfEmpty(string(acct.FogAuthoritySig)), acct.ViewOnly,
		)
		if isUniqueViolation(err) {
			return errs.New(errs.KindAccountAlreadyExists, "walletdb: account already exists")
		}
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subaddresses (account_id, idx, public_address_b58) VALUES (?, ?, ?)`,
			hexID(acct.ID), 0, mainAddress); err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subaddresses (account_id, idx, public_address_b58) VALUES (?, ?, ?)`,
			hexID(acct.ID), ChangeSubaddressIndex, changeAddress); err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		return nil
	})
}

// GetAccount returns the account row for id.
func (d *DB) GetAccount(ctx context.Context, id [32]byte) (Account, error) {
	row := d.sql.QueryRowContext(ctx, `
		SELECT id, view_private, spend_private, spend_public, name,
		       first_block_index, next_block_index, next_subaddress_index,
		       fog_report_url, fog_authority_sig, view_only
		FROM accounts WHERE id = ?`, hexID(id))

	return scanAccount(row)
}

// ListAccounts returns every account row.
func (d *DB) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, view_private, spend_private, spend_public, name,
		       first_block_index, next_block_index, next_subaddress_index,
		       fog_report_url, fog_authority_sig, view_only
		FROM accounts ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// RenameAccount updates an account's display name.
func (d *DB) RenameAccount(ctx context.Context, id [32]byte, name string) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, hexID(id))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindAccountNotFound, "walletdb: no such account")
}

// AdvanceCursor updates an account's scanner cursor (§4.E "advance the
// cursor at block granularity").
func (d *DB) AdvanceCursor(ctx context.Context, tx *sql.Tx, id [32]byte, nextBlockIndex uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE accounts SET next_block_index = ? WHERE id = ?`, nextBlockIndex, hexID(id))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return nil
}

// AssignNextSubaddressIndex atomically reads and increments an account's
// next_subaddress_index, returning the index to assign (§3 "by explicit
// assignment (monotonically increasing index)").
func (d *DB) AssignNextSubaddressIndex(ctx context.Context, id [32]byte) (uint64, error) {
	var idx uint64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT next_subaddress_index FROM accounts WHERE id = ?`, hexID(id))
		if err := row.Scan(&idx); err == sql.ErrNoRows {
			return errs.New(errs.KindAccountNotFound, "walletdb: no such account")
		} else if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		_, err := tx.ExecContext(ctx, `UPDATE accounts SET next_subaddress_index = ? WHERE id = ?`, idx+1, hexID(id))
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}
		return nil
	})
	return idx, err
}

// RemoveAccount deletes an account row; ON DELETE CASCADE removes its
// subaddresses, txos, and transaction logs (§3 "destroyed by explicit
// removal, which cascades to its txos and logs").
func (d *DB) RemoveAccount(ctx context.Context, id [32]byte) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, hexID(id))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindAccountNotFound, "walletdb: no such account")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		spendPublicHex       []byte
		viewPrivate          []byte
		spendPrivate         []byte
		name                 string
		first, next, nextSub uint64
		fogURL               sql.NullString
		fogSig               []byte
		viewOnly             bool
		idHexStr             string
	)
	err := row.Scan(&idHexStr, &viewPrivate, &spendPrivate, &spendPublicHex, &name,
		&first, &next, &nextSub, &fogURL, &fogSig, &viewOnly)
	if err == sql.ErrNoRows {
		return Account{}, errs.New(errs.KindAccountNotFound, "walletdb: no such account")
	}
	if err != nil {
		return Account{}, errs.Wrap(errs.KindDatabase, err)
	}

	acct := Account{
		Name:                name,
		FirstBlockIndex:     first,
		NextBlockIndex:      next,
		NextSubaddressIndex: nextSub,
		FogReportURL:        fogURL.String,
		FogAuthoritySig:     fogSig,
		ViewOnly:            viewOnly,
	}
	copy(acct.ID[:], mustDecodeHexID(idHexStr))
	copy(acct.ViewPrivate[:], viewPrivate)
	copy(acct.SpendPublic[:], spendPublicHex)
	if spendPrivate != nil {
		var sp [32]byte
		copy(sp[:], spendPrivate)
		acct.SpendPrivate = &sp
	}
	return acct, nil
}

func requireRowAffected(res sql.Result, kind errs.Kind, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	if n == 0 {
		return errs.New(kind, msg)
	}
	return nil
}
