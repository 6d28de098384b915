// Package archive persists fetched mailbox contents to a local SQLite
// database and exports them as CSV, the substrate for offline analysis
// of a mailbox outside the bridge pipeline.
package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mnguyen/mailbridge/internal/bridge"
	"github.com/mnguyen/mailbridge/internal/model"
)

// Store is a SQLite-backed message archive.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps readers usable while an export run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveMessages archives a batch of messages under a fresh run ID and
// returns that ID. Messages already archived are replaced, so re-runs
// converge instead of accumulating duplicates.
func (s *Store) SaveMessages(
	ctx context.Context, folder string, msgs []model.Message,
) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, folder, started_at, message_count) VALUES (?, ?, ?, ?)",
		runID, folder, time.Now().UTC().Format(time.RFC3339), len(msgs),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run row: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO messages (
			id, run_id, folder, subject, sender,
			received, body, attachment_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		received := ""
		if !m.Received.IsZero() {
			received = m.Received.UTC().Format(time.RFC3339)
		}
		_, err = stmt.ExecContext(ctx,
			m.ID, runID, folder, m.Subject, m.Sender,
			received, bridge.ExtractBody(m), len(m.Attachments),
		)
		if err != nil {
			return "", fmt.Errorf("archiving message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive run: %w", err)
	}

	return runID, nil
}

// CountMessages returns the number of archived messages.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages")
	if err != nil {
		return 0, fmt.Errorf("counting archived messages: %w", err)
	}
	return count, nil
}

// exportRow mirrors the columns ExportCSV reads. Timestamps are stored
// as RFC 3339 text, which also sorts chronologically.
type exportRow struct {
	ID              string `db:"id"`
	Folder          string `db:"folder"`
	Subject         string `db:"subject"`
	Sender          string `db:"sender"`
	Received        string `db:"received"`
	Body            string `db:"body"`
	AttachmentCount int    `db:"attachment_count"`
}

// ExportCSV writes every archived message to w as CSV, ordered by
// received time, with a header row.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, folder, subject, sender, received, body, attachment_count
		FROM messages ORDER BY received`,
	)
	if err != nil {
		return fmt.Errorf("querying archived messages: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	header := []string{
		"id", "subject", "sender", "received", "folder", "attachments", "body",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for rows.Next() {
		var row exportRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("scanning archived message: %w", err)
		}

		record := []string{
			row.ID, row.Subject, row.Sender, row.Received,
			row.Folder, strconv.Itoa(row.AttachmentCount), row.Body,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating archived messages: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
