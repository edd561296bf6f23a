package walletdb

import (
	"context"
	"database/sql"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// TransactionLogStatus is one of the four lifecycle states a transaction
// log passes through (§3 Transaction Log).
type TransactionLogStatus string

const (
	StatusBuilt     TransactionLogStatus = "built"
	StatusPending   TransactionLogStatus = "pending"
	StatusSucceeded TransactionLogStatus = "succeeded"
	StatusFailed    TransactionLogStatus = "failed"
)

// TransactionLog is the persisted row for an attempted or successful send
// (§3 Transaction Log).
type TransactionLog struct {
	ID                  [32]byte
	AccountID           [32]byte
	Status              TransactionLogStatus
	SubmittedBlockIndex *uint64
	TombstoneBlockIndex uint64
	FinalizedBlockIndex *uint64
	FeeValue            uint64
	FeeTokenID          uint64
	Comment             string
}

// TransactionLogOutputKind distinguishes a payload output from a change
// output within a transaction log (§3 Transaction Log).
type TransactionLogOutputKind string

const (
	OutputKindPayload TransactionLogOutputKind = "payload"
	OutputKindChange  TransactionLogOutputKind = "change"
)

// TransactionLogOutput links a txo to a transaction log as a payload or
// change output, with the recipient address it was sent to.
type TransactionLogOutput struct {
	TxoID                     [32]byte
	Kind                      TransactionLogOutputKind
	RecipientPublicAddressB58 string
}

// CreateTransactionLog inserts a new transaction log row in `built` status
// along with its input and output links, all inside one transaction
// (§4.I step 8 "Assemble TxProposal").
func (d *DB) CreateTransactionLog(ctx context.Context, logRow TransactionLog, inputTxoIDs [][32]byte, outputs []TransactionLogOutput) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_logs (
				id, account_id, status, submitted_block_index, tombstone_block_index,
				finalized_block_index, fee_value, fee_token_id, comment
			) VALUES (?, ?, ?, NULL, ?, NULL, ?, ?, ?)`,
			hexID(logRow.ID), hexID(logRow.AccountID), string(StatusBuilt),
			logRow.TombstoneBlockIndex, logRow.FeeValue, logRow.FeeTokenID, nullIfEmpty(logRow.Comment))
		if err != nil {
			return errs.Wrap(errs.KindDatabase, err)
		}

		for _, txoID := range inputTxoIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transaction_log_inputs (log_id, txo_id) VALUES (?, ?)`,
				hexID(logRow.ID), hexID(txoID)); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
		}

		for _, out := range outputs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transaction_log_outputs (log_id, txo_id, kind, recipient_public_address_b58)
				VALUES (?, ?, ?, ?)`,
				hexID(logRow.ID), hexID(out.TxoID), string(out.Kind), out.RecipientPublicAddressB58); err != nil {
				return errs.Wrap(errs.KindDatabase, err)
			}
		}

		return nil
	})
}

// MarkSubmitted transitions a log from built to pending, recording the
// block index it was submitted under (§3 "submitted_block_index set on
// submission").
func (d *DB) MarkSubmitted(ctx context.Context, id [32]byte, submittedBlockIndex uint64) error {
	res, err := d.sql.ExecContext(ctx, `
		UPDATE transaction_logs SET status = ?, submitted_block_index = ?
		WHERE id = ? AND status = ?`,
		string(StatusPending), submittedBlockIndex, hexID(id), string(StatusBuilt))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTransactionLogNotFound, "walletdb: no built transaction log with that id")
}

// FinalizeSucceeded transitions a pending log to succeeded (§4.E step 6).
func (d *DB) FinalizeSucceeded(ctx context.Context, tx *sql.Tx, id [32]byte, finalizedBlockIndex uint64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transaction_logs SET status = ?, finalized_block_index = ?
		WHERE id = ? AND status = ?`,
		string(StatusSucceeded), finalizedBlockIndex, hexID(id), string(StatusPending))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTransactionLogNotFound, "walletdb: no pending transaction log with that id")
}

// FinalizeFailed transitions a pending log to failed when its tombstone
// passes with an input still unspent (§4.E step 6).
func (d *DB) FinalizeFailed(ctx context.Context, tx *sql.Tx, id [32]byte) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transaction_logs SET status = ? WHERE id = ? AND status = ?`,
		string(StatusFailed), hexID(id), string(StatusPending))
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return requireRowAffected(res, errs.KindTransactionLogNotFound, "walletdb: no pending transaction log with that id")
}

// ListPending returns every pending transaction log for an account, the
// working set the scanner sweeps each block (§4.E step 6).
func (d *DB) ListPending(ctx context.Context, accountID [32]byte) ([]TransactionLog, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, account_id, status, submitted_block_index, tombstone_block_index,
		       finalized_block_index, fee_value, fee_token_id, comment
		FROM transaction_logs WHERE account_id = ? AND status = ?`,
		hexID(accountID), string(StatusPending))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []TransactionLog
	for rows.Next() {
		l, err := scanTransactionLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetTransactionLog returns a single transaction log by id.
func (d *DB) GetTransactionLog(ctx context.Context, id [32]byte) (TransactionLog, error) {
	row := d.sql.QueryRowContext(ctx, `
		SELECT id, account_id, status, submitted_block_index, tombstone_block_index,
		       finalized_block_index, fee_value, fee_token_id, comment
		FROM transaction_logs WHERE id = ?`, hexID(id))
	l, err := scanTransactionLog(row)
	if err == sql.ErrNoRows {
		return TransactionLog{}, errs.New(errs.KindTransactionLogNotFound, "walletdb: no such transaction log")
	}
	return l, err
}

// ListTransactionLogs returns every transaction log for an account, newest
// insertions last.
func (d *DB) ListTransactionLogs(ctx context.Context, accountID [32]byte) ([]TransactionLog, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, account_id, status, submitted_block_index, tombstone_block_index,
		       finalized_block_index, fee_value, fee_token_id, comment
		FROM transaction_logs WHERE account_id = ? ORDER BY rowid`, hexID(accountID))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []TransactionLog
	for rows.Next() {
		l, err := scanTransactionLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// OutputsForLog returns the payload and change outputs recorded against a
// transaction log, the form needed to rebuild receiver receipts and
// `get_confirmations` (§4.K transaction log methods).
func (d *DB) OutputsForLog(ctx context.Context, logID [32]byte) ([]TransactionLogOutput, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT txo_id, kind, recipient_public_address_b58 FROM transaction_log_outputs WHERE log_id = ?`,
		hexID(logID))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out []TransactionLogOutput
	for rows.Next() {
		var idHex, kind, recipient string
		if err := rows.Scan(&idHex, &kind, &recipient); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err)
		}
		o := TransactionLogOutput{Kind: TransactionLogOutputKind(kind), RecipientPublicAddressB58: recipient}
		copy(o.TxoID[:], mustDecodeHexID(idHex))
		out = append(out, o)
	}
	return out, rows.Err()
}

// InputTxoIDs returns the input txo ids recorded for a transaction log.
func (d *DB) InputTxoIDs(ctx context.Context, tx *sql.Tx, logID [32]byte) ([][32]byte, error) {
	return d.inputTxoIDs(ctx, tx, logID)
}

// InputTxoIDsDB is InputTxoIDs against the connection pool, for callers
// (the Balance Engine) reading outside any in-flight transaction.
func (d *DB) InputTxoIDsDB(ctx context.Context, logID [32]byte) ([][32]byte, error) {
	return d.inputTxoIDs(ctx, d.sql, logID)
}

func (d *DB) inputTxoIDs(ctx context.Context, q queryer, logID [32]byte) ([][32]byte, error) {
	rows, err := q.QueryContext(ctx, `SELECT txo_id FROM transaction_log_inputs WHERE log_id = ?`, hexID(logID))
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	defer rows.Close()

	var out [][32]byte
	for rows.Next() {
		var idHex string
		if err := rows.Scan(&idHex); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err)
		}
		var id [32]byte
		copy(id[:], mustDecodeHexID(idHex))
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanTransactionLog(rows rowScanner) (TransactionLog, error) {
	var (
		idHex, accountIDHex                          string
		status                                        string
		submittedBlockIndex, finalizedBlockIndex      sql.NullInt64
		tombstoneBlockIndex, feeValue, feeTokenID      uint64
		comment                                        sql.NullString
	)
	if err := rows.Scan(&idHex, &accountIDHex, &status, &submittedBlockIndex, &tombstoneBlockIndex,
		&finalizedBlockIndex, &feeValue, &feeTokenID, &comment); err != nil {
		if err == sql.ErrNoRows {
			return TransactionLog{}, err
		}
		return TransactionLog{}, errs.Wrap(errs.KindDatabase, err)
	}

	l := TransactionLog{
		Status:              TransactionLogStatus(status),
		TombstoneBlockIndex: tombstoneBlockIndex,
		FeeValue:            feeValue,
		FeeTokenID:          feeTokenID,
		Comment:             comment.String,
	}
	copy(l.ID[:], mustDecodeHexID(idHex))
	copy(l.AccountID[:], mustDecodeHexID(accountIDHex))
	if submittedBlockIndex.Valid {
		v := uint64(submittedBlockIndex.Int64)
		l.SubmittedBlockIndex = &v
	}
	if finalizedBlockIndex.Valid {
		v := uint64(finalizedBlockIndex.Int64)
		l.FinalizedBlockIndex = &v
	}
	return l, nil
}
