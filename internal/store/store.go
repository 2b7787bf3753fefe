package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Snapshot statuses.
const (
	StatusWritten = "written"
	StatusSwapped = "swapped"
)

type Store struct {
	db *sql.DB
}

// Snapshot is one index generation written to one host.
type Snapshot struct {
	ID         int64
	Index      string
	Alias      string
	Host       string
	Docs       int
	ItemErrors int
	Status     string
	WrittenAt  time.Time
	SwappedAt  time.Time
}

type SnapshotInput struct {
	Index      string
	Alias      string
	Host       string
	Docs       int
	ItemErrors int
	WrittenAt  time.Time
}

// SnapshotFilter holds optional filters for ListSnapshots.
type SnapshotFilter struct {
	Status string // "written" or "swapped"
	Index  string
	Limit  int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordWritten stores a snapshot as written but not yet swapped. Writing
// the same index to the same host again resets it to written.
func (s *Store) RecordWritten(ctx context.Context, in SnapshotInput) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.Index) == "" {
		return Snapshot{}, errors.New("index is required")
	}
	if strings.TrimSpace(in.Alias) == "" {
		return Snapshot{}, errors.New("alias is required")
	}
	if strings.TrimSpace(in.Host) == "" {
		return Snapshot{}, errors.New("host is required")
	}
	if in.WrittenAt.IsZero() {
		return Snapshot{}, errors.New("written_at is required")
	}
	if in.Docs < 0 || in.ItemErrors < 0 {
		return Snapshot{}, errors.New("counts must not be negative")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (
			index_name, alias, host, docs, item_errors, status, written_at, swapped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(index_name, host) DO UPDATE SET
			alias = excluded.alias,
			docs = excluded.docs,
			item_errors = excluded.item_errors,
			status = excluded.status,
			written_at = excluded.written_at,
			swapped_at = NULL
	`,
		in.Index,
		in.Alias,
		in.Host,
		in.Docs,
		in.ItemErrors,
		StatusWritten,
		formatTime(in.WrittenAt),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("record snapshot: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, index_name, alias, host, docs, item_errors, status, written_at, swapped_at
		FROM snapshots
		WHERE index_name = ? AND host = ?
	`, in.Index, in.Host)

	return scanSnapshot(row)
}

// MarkSwapped records that the alias now points at index on host.
func (s *Store) MarkSwapped(ctx context.Context, index, host string, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if at.IsZero() {
		return errors.New("swapped_at is required")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE snapshots SET status = ?, swapped_at = ?
		WHERE index_name = ? AND host = ?
	`, StatusSwapped, formatTime(at), index, host)
	if err != nil {
		return fmt.Errorf("mark swapped: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark swapped: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark swapped: no snapshot %s on %s", index, host)
	}
	return nil
}

// ListSnapshots returns snapshots newest first.
func (s *Store) ListSnapshots(ctx context.Context, filters ...SnapshotFilter) ([]Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT id, index_name, alias, host, docs, item_errors, status, written_at, swapped_at
		FROM snapshots
		WHERE 1 = 1`
	var args []any

	var filter SnapshotFilter
	if len(filters) > 0 {
		filter = filters[0]
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Index != "" {
		query += " AND index_name = ?"
		args = append(args, filter.Index)
	}

	query += " ORDER BY written_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var snapshots []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// Pending returns snapshots that were written but never swapped.
func (s *Store) Pending(ctx context.Context) ([]Snapshot, error) {
	return s.ListSnapshots(ctx, SnapshotFilter{Status: StatusWritten})
}

// PruneOld deletes snapshot rows written more than retainDays ago.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE written_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(scanner rowScanner) (Snapshot, error) {
	var (
		snap      Snapshot
		writtenAt string
		swappedAt sql.NullString
	)

	if err := scanner.Scan(
		&snap.ID,
		&snap.Index,
		&snap.Alias,
		&snap.Host,
		&snap.Docs,
		&snap.ItemErrors,
		&snap.Status,
		&writtenAt,
		&swappedAt,
	); err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	var err error
	snap.WrittenAt, err = parseTime(writtenAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse written_at: %w", err)
	}
	if swappedAt.Valid {
		snap.SwappedAt, err = parseTime(swappedAt.String)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse swapped_at: %w", err)
		}
	}

	return snap, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
