package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/maccolaco/claimsense/internal/model"
	_ "modernc.org/sqlite"
)

var _ ClaimStore = (*SQLiteStore)(nil)

// SQLiteStore implements ClaimStore using SQLite.
// The full claim is stored as a JSON document; queue, status and creation time
// are also kept in columns for filtering, and each procedure line is kept in
// claim_lines to serve historical charge averages.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	psql   sq.StatementBuilderType
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		queue TEXT NOT NULL,
		payer TEXT NOT NULL DEFAULT '',
		total_charges REAL NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS claim_lines (
		claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		code TEXT NOT NULL,
		charge REAL NOT NULL,
		PRIMARY KEY (claim_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_claims_queue ON claims(queue);
	CREATE INDEX IF NOT EXISTS idx_claims_created_at ON claims(created_at);
	CREATE INDEX IF NOT EXISTS idx_claim_lines_code ON claim_lines(code);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(s scanner) (*model.Claim, error) {
	var document string
	if err := s.Scan(&document); err != nil {
		return nil, err
	}

	c := &model.Claim{}
	if err := json.Unmarshal([]byte(document), c); err != nil {
		return nil, fmt.Errorf("decode claim: %w", err)
	}
	// Labels are returned as recorded; readers decide how to treat unknown ones.
	return c, nil
}

// Save inserts or replaces the claim
func (s *SQLiteStore) Save(ctx context.Context, c *model.Claim) (err error) {
	if c == nil || c.ID == "" {
		return errors.New("save: claim must have an id")
	}

	document, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode claim: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := s.psql.Insert("claims").
		Columns("id", "filename", "status", "queue", "payer", "total_charges", "document", "created_at", "updated_at").
		Values(c.ID, c.Filename, string(c.Status), string(c.Queue), c.Data.Payer, c.Data.TotalCharges(),
			string(document), c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			status = excluded.status,
			queue = excluded.queue,
			payer = excluded.payer,
			total_charges = excluded.total_charges,
			document = excluded.document,
			updated_at = excluded.updated_at`)

	if _, err = upsert.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to upsert claim: %w", err)
	}

	if _, err = s.psql.Delete("claim_lines").Where(sq.Eq{"claim_id": c.ID}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to clear claim lines: %w", err)
	}

	n := len(c.Data.CPTCodes)
	if len(c.Data.Charges) < n {
		n = len(c.Data.Charges)
	}
	if n > 0 {
		lines := s.psql.Insert("claim_lines").Columns("claim_id", "position", "code", "charge")
		for i := 0; i < n; i++ {
			lines = lines.Values(c.ID, i, lineCode(c.Data.CPTCodes[i]), c.Data.Charges[i])
		}
		if _, err = lines.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to insert claim lines: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the claim with id, or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Claim, error) {
	query, args, err := s.psql.Select("document").From("claims").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	c, err := scanClaim(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return c, nil
}

// List returns the claims matching f, oldest first
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*model.Claim, error) {
	q := s.psql.Select("document").From("claims").OrderBy("created_at ASC", "id ASC")

	if f.Queue != "" {
		q = q.Where(sq.Eq{"queue": string(f.Queue)})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.From.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.From.UnixNano()})
	}
	if !f.To.IsZero() {
		q = q.Where(sq.Lt{"created_at": f.To.UnixNano()})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*model.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Delete removes the claim with id, or returns ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.psql.Delete("claims").Where(sq.Eq{"id": id}).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// QueueCounts returns how many stored claims sit in each queue
func (s *SQLiteStore) QueueCounts(ctx context.Context) (map[model.Queue]int, error) {
	rows, err := s.psql.Select("queue", "COUNT(*)").From("claims").GroupBy("queue").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Queue]int, len(model.Queues))
	for _, q := range model.Queues {
		counts[q] = 0
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[model.Queue(label)] = n
	}
	return counts, rows.Err()
}

// AverageCharge returns the mean charge billed for code across stored claims.
// found is false when fewer than minSamples lines exist.
func (s *SQLiteStore) AverageCharge(ctx context.Context, code string, minSamples int) (avg float64, found bool, err error) {
	query, args, err := s.psql.Select("COALESCE(AVG(charge), 0)", "COUNT(*)").
		From("claim_lines").
		Where(sq.Eq{"code": lineCode(code)}).
		Where(sq.Gt{"charge": 0}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&avg, &n); err != nil {
		return 0, false, fmt.Errorf("failed to query average: %w", err)
	}
	if minSamples < 1 {
		minSamples = 1
	}
	if n < minSamples {
		return 0, false, nil
	}
	return avg, true, nil
}

func lineCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HistoryBaseline serves average charges computed from stored claims
type HistoryBaseline struct {
	store      *SQLiteStore
	minSamples int
}

// NewHistoryBaseline creates a baseline source requiring at least minSamples lines per code
func NewHistoryBaseline(s *SQLiteStore, minSamples int) *HistoryBaseline {
	return &HistoryBaseline{store: s, minSamples: minSamples}
}

// AverageCharge implements cache.AverageSource
func (h *HistoryBaseline) AverageCharge(ctx context.Context, code string) (float64, bool, error) {
	return h.store.AverageCharge(ctx, code, h.minSamples)
}
