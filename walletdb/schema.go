package walletdb

import "database/sql"

// migrations is the ordered list of schema migrations. The schema version
// recorded in schema_version gates how many of these have been applied;
// on Open, any migration past the recorded version runs once, in order,
// before the store serves any request (§4.D "Migration").
var migrations = []string{
	// 1: base schema.
	`CREATE TABLE accounts (
		id                    TEXT PRIMARY KEY,
		view_private          BLOB NOT NULL,
		spend_private         BLOB,
		spend_public          BLOB NOT NULL,
		name                  TEXT NOT NULL,
		first_block_index     INTEGER NOT NULL,
		next_block_index      INTEGER NOT NULL,
		next_subaddress_index INTEGER NOT NULL,
		fog_report_url        TEXT,
		fog_authority_sig     BLOB,
		view_only             INTEGER NOT NULL
	);

	CREATE TABLE subaddresses (
		account_id         TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		idx                INTEGER NOT NULL,
		public_address_b58 TEXT NOT NULL UNIQUE,
		metadata           TEXT,
		PRIMARY KEY (account_id, idx)
	);

	CREATE TABLE txos (
		id                  TEXT PRIMARY KEY,
		account_id          TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		amount_value        INTEGER NOT NULL,
		amount_token_id     INTEGER NOT NULL,
		subaddress_index    INTEGER,
		received_block_index INTEGER,
		spent_block_index   INTEGER,
		key_image           BLOB,
		public_key          BLOB NOT NULL,
		confirmation_number BLOB,
		raw_output_blob     BLOB NOT NULL,
		UNIQUE (account_id, public_key)
	);

	CREATE TABLE transaction_logs (
		id                    TEXT PRIMARY KEY,
		account_id            TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		status                TEXT NOT NULL,
		submitted_block_index INTEGER,
		tombstone_block_index INTEGER NOT NULL,
		finalized_block_index INTEGER,
		fee_value             INTEGER NOT NULL,
		fee_token_id          INTEGER NOT NULL,
		comment               TEXT,
		sent_time             INTEGER
	);

	CREATE TABLE transaction_log_inputs (
		log_id TEXT NOT NULL REFERENCES transaction_logs(id) ON DELETE CASCADE,
		txo_id TEXT NOT NULL REFERENCES txos(id),
		PRIMARY KEY (log_id, txo_id)
	);

	-- txo_id is not FK-constrained to txos(id): a payload output's txo
	-- belongs to whichever wallet owns the recipient address, usually not
	-- this one, so the row this id names may never exist in this
	-- database's txos table. A change output's txo is always this
	-- account's own and is inserted by the scanner once the block lands.
	CREATE TABLE transaction_log_outputs (
		log_id                    TEXT NOT NULL REFERENCES transaction_logs(id) ON DELETE CASCADE,
		txo_id                    TEXT NOT NULL,
		kind                      TEXT NOT NULL,
		recipient_public_address_b58 TEXT NOT NULL,
		PRIMARY KEY (log_id, txo_id, kind)
	);

	CREATE TABLE gift_codes (
		b58        TEXT PRIMARY KEY,
		entropy    BLOB NOT NULL,
		value      INTEGER NOT NULL,
		token_id   INTEGER NOT NULL,
		memo       TEXT,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		status     TEXT NOT NULL
	);

	CREATE INDEX idx_txos_account_spendable ON txos(account_id, spent_block_index, subaddress_index);
	CREATE INDEX idx_txos_key_image ON txos(key_image);
	CREATE INDEX idx_translogs_account_status ON transaction_logs(account_id, status);
	`,
}

// applyMigrations brings the database up to the latest schema version,
// recording progress in schema_version so a partially-applied run resumes
// correctly.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	switch err := row.Scan(&current); err {
	case sql.ErrNoRows:
		current = 0
	case nil:
	default:
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}
