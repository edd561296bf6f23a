package walletdb

import (
	"context"
	"database/sql"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// Txo is the persisted row for a transaction output owned (or
// orphan-owned) by an account (§3 Txo).
type Txo struct {
	ID                 [32]byte
	AccountID           [32]byte
	AmountValue         uint64
	AmountTokenID       uint64
	SubaddressIndex     *uint64 // nil iff the output is an unassigned orphan
	ReceivedBlockIndex  *uint64
	SpentBlockIndex     *uint64
	KeyImage            *[32]byte // nil for an unmatched view-only txo
	PublicKey           [32]byte
	ConfirmationNumber  *[32]byte
	RawOutputBlob       []byte
}

// InsertTxo records a newly matched output (§4.E step 4). subaddressIndex
// is nil for an orphan (owned but unmapped); keyImage is nil for a
// view-only account awaiting an external signer's sync_txos call.
func (d *DB) InsertTxo(ctx context.Context, tx *sql.Tx, t Txo) error {
	var subIdx, keyImage, confirmation interface{}
	if t.SubaddressIndex != nil {
		subIdx = *t.SubaddressIndex
	}
	if t.KeyImage != nil {
		keyImage = t.KeyImage[:]
	}
	if t.ConfirmationNumber != nil {
		confirmation = t.ConfirmationNumber[:]
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO txos (
			id, account_id, amount_value, amount_token_id, subaddress_index,
			received_block_index, spent_block_index, key_image, public_key,
			confirmation_number, raw_output_blob
		) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)`,
		hexID(t.ID), hexID(t.AccountID), t.AmountValue, t.AmountTokenID, subIdx,
		derefUint64(t.ReceivedBlockIndex), keyImage, t.PublicKey[:], confirmation, t.RawOutputBlob,
	)
	if isUniqueViolation(err) {
		return errs.New(errs.KindTransactionValidation, "walletdb: txo with that public key already recorded for this account")
	}
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return nil
}

// MarkSpent sets spent_block_index on the not-yet-spent txo whose key image
// matches (in any account), for use by the scanner's spent-key-image reconciliation
// (§4.E step 5). It enforces the invariant that spent_block_index may only
// move forward and only on a txo that already has a key image.
func (d *DB) MarkSpent(ctx context.Context, tx *sql.Tx, keyImage [32]byte, blockIndex uint64) ([32]byte, bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, received_block_index FROM txos WHERE key_image = ? AND spent_block_index IS NULL`, keyImage[:])

	var idHex string
	var receivedBlockIndex sql.NullInt64
	if err := row.Scan(&idHex, &receivedBlockIndex); err == sql.ErrNoRows {
		return [32]byte{}, false, nil
	} else if err != nil {
		return [32]byte{}, false, errs.Wrap(errs.KindDatabase, err)
	}

	if receivedBlockIndex.Valid && blockIndex < uint64(receivedBlockIndex.Int64) {
		return [32]byte{}, false, errs.New(errs.KindLedgerInconsistent, "walletdb: spend observed before receipt")
	}

	if _, err := tx.ExecContext(ctx, `UPDATE txos SET spent_block_index = ? WHERE id = ?`, blockIndex, idHex); err != nil {
		return [32]byte{}, false, errs.Wrap(errs.KindDatabase, err)
	}

	var id [32]byte
	copy(id[:], mustDecodeHexID(idHex))
	return id, true, nil
}

// ListUnspent returns an account's unspent txos of a token (§4.F
// `unspent`, §4.G candidate pool for selection).
func (d *DB) ListUnspent(ctx context.Context, accountID [32]byte, tokenID uint64) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos
		WHERE account_id = ? AND amount_token_id = ? AND spent_block_index IS NULL
		  AND subaddress_index IS NOT NULL
		ORDER BY amount_value DESC`, hexID(accountID), tokenID)
}

// ListOrphaned returns an account's owned-but-unmapped txos (§4.F
// `orphaned`).
func (d *DB) ListOrphaned(ctx context.Context, accountID [32]byte) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? AND subaddress_index IS NULL`, hexID(accountID))
}

// ListUnverified returns a view-only account's txos that have no key
// image yet (§4.F `unverified`).
func (d *DB) ListUnverified(ctx context.Context, accountID [32]byte) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? AND key_image IS NULL`, hexID(accountID))
}

// ListSpent returns an account's spent txos of a token (§4.F `spent`).
func (d *DB) ListSpent(ctx context.Context, accountID [32]byte, tokenID uint64) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? AND amount_token_id = ? AND spent_block_index IS NOT NULL`,
		hexID(accountID), tokenID)
}

// GetTxo returns a single txo by id.
func (d *DB) GetTxo(ctx context.Context, id [32]byte) (Txo, error) {
	txos, err := d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE id = ?`, hexID(id))
	if err != nil {
		return Txo{}, err
	}
	if len(txos) == 0 {
		return Txo{}, errs.New(errs.KindTxoNotFound, "walletdb: no such txo")
	}
	return txos[0], nil
}

// GetTxoTx is GetTxo scoped to an in-flight transaction, for callers (the
// scanner reconciling pending logs) that must observe writes made earlier
// in the same transaction.
func (d *DB) GetTxoTx(ctx context.Context, tx *sql.Tx, id [32]byte) (Txo, error) {
	txos, err := d.queryTxos(ctx, tx, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE id = ?`, hexID(id))
	if err != nil {
		return Txo{}, err
	}
	if len(txos) == 0 {
		return Txo{}, errs.New(errs.KindTxoNotFound, "walletdb: no such txo")
	}
	return txos[0], nil
}

// AssignOrphanSubaddress assigns a previously orphaned txo to the now-known
// subaddress index, the DB half of the scanner's orphan-rescan flow
// (§4.E "Newly assigning a subaddress triggers a rescan over pending
// orphans").
func (d *DB) AssignOrphanSubaddress(ctx context.Context, tx *sql.Tx, txoID [32]byte, subaddressIndex uint64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE txos SET subaddress_index = ? WHERE id = ? AND subaddress_index IS NULL`,
		subaddressIndex, hexID(txoID))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTxoNotFound, "walletdb: no such orphaned txo")
}

// ListTxosForAccount returns every txo owned (or orphan-owned) by an
// account, regardless of status, for the `get txos for account` request
// method (§4.K).
func (d *DB) ListTxosForAccount(ctx context.Context, accountID [32]byte) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? ORDER BY received_block_index`, hexID(accountID))
}

// ListTxosForSubaddress returns every txo matched to a specific subaddress
// index, for the `get txos for address` request method (§4.K).
func (d *DB) ListTxosForSubaddress(ctx context.Context, accountID [32]byte, subaddressIndex uint64) ([]Txo, error) {
	return d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? AND subaddress_index = ? ORDER BY received_block_index`,
		hexID(accountID), subaddressIndex)
}

// GetTxoByPublicKey looks up a txo by its on-chain output public key,
// scoped to an account, for `validate tx_out by public key` (§4.K).
func (d *DB) GetTxoByPublicKey(ctx context.Context, accountID [32]byte, publicKey [32]byte) (Txo, error) {
	txos, err := d.queryTxos(ctx, d.sql, `
		SELECT id, account_id, amount_value, amount_token_id, subaddress_index,
		       received_block_index, spent_block_index, key_image, public_key,
		       confirmation_number, raw_output_blob
		FROM txos WHERE account_id = ? AND public_key = ?`, hexID(accountID), publicKey[:])
	if err != nil {
		return Txo{}, err
	}
	if len(txos) == 0 {
		return Txo{}, errs.New(errs.KindTxoNotFound, "walletdb: no such txo")
	}
	return txos[0], nil
}

// SetKeyImage attaches an externally-supplied key image to a view-only
// account's txo, the write half of `sync_txos` (§4.E "an external signer
// later supplies key images via a sync endpoint").
func (d *DB) SetKeyImage(ctx context.Context, txoID [32]byte, keyImage [32]byte) error {
	res, err := d.sql.ExecContext(ctx, `
		UPDATE txos SET key_image = ? WHERE id = ? AND key_image IS NULL`,
		keyImage[:], hexID(txoID))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTxoNotFound, "walletdb: no unverified txo with that id")
}

// ListTokenIDs returns every amount_token_id an account holds a txo of, in
// any state, for the Balance Engine (§4.F) to know which tokens to compute
// unspent/spent entries for without relying on a coincidental sighting in
// another category.
func (d *DB) ListTokenIDs(ctx context.Context, accountID [32]byte) ([]uint64, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT DISTINCT amount_token_id FROM txos WHERE account_id = ?`, hexID(accountID))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var tokenID uint64
		if err := rows.Scan(&tokenID); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err)
		}
		out = append(out, tokenID)
	}
	return out, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either against the pool or against an in-flight transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (d *DB) queryTxos(ctx context.Context, q queryer, query string, args ...interface{}) ([]Txo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []Txo
	for rows.Next() {
		t, err := scanTxo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTxo(rows *sql.Rows) (Txo, error) {
	var (
		idHex, accountIDHex                        string
		amountValue, amountTokenID                 uint64
		subIdx, receivedBlockIndex, spentBlockIndex sql.NullInt64
		keyImage, publicKey, confirmation, rawBlob  []byte
	)
	if err := rows.Scan(&idHex, &accountIDHex, &amountValue, &amountTokenID, &subIdx,
		&receivedBlockIndex, &spentBlockIndex, &keyImage, &publicKey, &confirmation, &rawBlob); err != nil {
		return Txo{}, errs.Wrap(errs.KindDatabase, err)
	}

	t := Txo{
		AmountValue:   amountValue,
		AmountTokenID: amountTokenID,
		RawOutputBlob: rawBlob,
	}
	copy(t.ID[:], mustDecodeHexID(idHex))
	copy(t.AccountID[:], mustDecodeHexID(accountIDHex))
	copy(t.PublicKey[:], publicKey)

	if subIdx.Valid {
		v := uint64(subIdx.Int64)
		t.SubaddressIndex = &v
	}
	if receivedBlockIndex.Valid {
		v := uint64(receivedBlockIndex.Int64)
		t.ReceivedBlockIndex = &v
	}
	if spentBlockIndex.Valid {
		v := uint64(spentBlockIndex.Int64)
		t.SpentBlockIndex = &v
	}
	if len(keyImage) == 32 {
		var ki [32]byte
		copy(ki[:], keyImage)
		t.KeyImage = &ki
	}
	if len(confirmation) == 32 {
		var c [32]byte
		copy(c[:], confirmation)
		t.ConfirmationNumber = &c
	}

	return t, nil
}

func derefUint64(p *uint64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
