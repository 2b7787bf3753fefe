package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the ledger layout this binary writes. A database stamped
// with a higher version was written by a newer release and is refused.
const schemaVersion = 1

// migrate creates the ledger tables if needed and stamps the schema version.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO metadata(key, value) VALUES('schema_version', ?)",
		strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}

	var stored string
	if err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&stored); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parse schema version %q: %w", stored, err)
	}
	if version > schemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported %d", version, schemaVersion)
	}

	return tx.Commit()
}
