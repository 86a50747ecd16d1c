// Package gateway persists variable records in SQLite and implements the
// validation, search and import/export operations the engine consumes.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"envman/internal/engine"
	"envman/internal/model"
)

// ErrProtected is returned when deleting a system variable Windows needs.
var ErrProtected = errors.New("protected system variable")

var protectedNames = map[string]bool{
	"PATH":              true,
	"PATHEXT":           true,
	"TEMP":              true,
	"TMP":               true,
	"WINDIR":            true,
	"SYSTEMROOT":        true,
	"PROGRAMFILES":      true,
	"PROGRAMFILES(X86)": true,
}

const schema = `CREATE TABLE IF NOT EXISTS variables (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	scope      TEXT NOT NULL CHECK (scope IN ('user', 'system')),
	note       TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

const selectColumns = `SELECT id, name, value, scope, note, created_at, updated_at FROM variables`

var validate = validator.New()

// recordInput is checked before any write.
type recordInput struct {
	Name  string `validate:"required,max=255,excludesall=="`
	Scope string `validate:"required,oneof=user system"`
}

// Store is a SQLite-backed engine.Gateway.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time

	validateLimit int
	exportTarget  string
	blobs         BlobStore
}

var _ engine.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithValidateConcurrency bounds the records checked at once by ValidateAll.
func WithValidateConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.validateLimit = n
		}
	}
}

// WithExportTarget sets where ExportAll writes: a directory or s3://bucket/prefix.
func WithExportTarget(target string) Option {
	return func(s *Store) { s.exportTarget = target }
}

// WithBlobStore sets the object store used for s3:// locations.
func WithBlobStore(b BlobStore) Option {
	return func(s *Store) { s.blobs = b }
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = "envman.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps concurrent deletes from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create variables table: %w", err)
	}
	s := &Store{
		db:            db,
		path:          path,
		logger:        slog.Default(),
		now:           time.Now,
		validateLimit: 8,
		exportTarget:  ".",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "gateway")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]model.VariableRecord, error) {
	return s.query(ctx, selectColumns+` ORDER BY seq`)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM variables`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count variables: %w", err)
	}
	return n, nil
}

// Create inserts a new record with a fresh id.
func (s *Store) Create(ctx context.Context, name, value string, scope model.Scope, note *string) (model.VariableRecord, error) {
	if err := validate.Struct(recordInput{Name: name, Scope: string(scope)}); err != nil {
		return model.VariableRecord{}, fmt.Errorf("invalid variable %q: %w", name, err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	r := model.VariableRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		Scope:     scope,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variables (id, name, value, scope, note, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Value, string(r.Scope), nullString(note), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return model.VariableRecord{}, fmt.Errorf("insert %q: %w", name, err)
	}
	return r, nil
}

// Update replaces the mutable fields of id.
func (s *Store) Update(ctx context.Context, id, name, value string, scope model.Scope, note *string) error {
	if err := validate.Struct(recordInput{Name: name, Scope: string(scope)}); err != nil {
		return fmt.Errorf("invalid variable %q: %w", name, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE variables SET name = ?, value = ?, scope = ?, note = ?, updated_at = ? WHERE id = ?`,
		name, value, string(scope), nullString(note), s.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("update %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

// Delete removes id. Protected system variables are refused.
func (s *Store) Delete(ctx context.Context, id string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var name, scope string
	err = tx.QueryRowContext(ctx, `SELECT name, scope FROM variables WHERE id = ?`, id).Scan(&name, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if model.Scope(scope) == model.ScopeSystem && protectedNames[strings.ToUpper(name)] {
		return fmt.Errorf("delete %s: %w", name, ErrProtected)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM variables WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.VariableRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select variables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.VariableRecord
	for rows.Next() {
		var (
			r                model.VariableRecord
			scope            string
			note             sql.NullString
			created, updated int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Value, &scope, &note, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Scope = model.Scope(scope)
		if note.Valid {
			n := note.String
			r.Note = &n
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		r.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
