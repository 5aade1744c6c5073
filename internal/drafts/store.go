// Package drafts keeps unsubmitted form state in a local SQLite database so a
// failed submission can be resumed with the entered values intact.
package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/form"
)

// ErrNotFound is returned when no draft exists under a key.
var ErrNotFound = errors.New("drafts: draft not found")

var schema = []string{
	`PRAGMA journal_mode=WAL;`,
	`CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		template_id INTEGER NOT NULL,
		document_id INTEGER NOT NULL DEFAULT 0,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		saved_at INTEGER NOT NULL
	);`,
}

// Store is a form.DraftStore backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
}

var _ form.DraftStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (creating when needed) the draft database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("drafts: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("drafts: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("drafts: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("drafts: init schema: %w", err)
		}
	}
	s.logger = s.logger.WithField("drafts_path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the draft under its key.
func (s *Store) Save(ctx context.Context, d form.Draft) error {
	if strings.TrimSpace(d.Key) == "" {
		return errors.New("drafts: draft key is required")
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode %s: %w", d.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO drafts(key, template_id, document_id, subject, body, error, saved_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET
			template_id=excluded.template_id,
			document_id=excluded.document_id,
			subject=excluded.subject,
			body=excluded.body,
			error=excluded.error,
			saved_at=excluded.saved_at`,
		d.Key, d.TemplateID, d.DocumentID, d.Subject, string(body), d.Error, d.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("drafts: save %s: %w", d.Key, err)
	}
	s.logger.WithField("key", d.Key).Debug("draft saved")
	return nil
}

// Load returns the draft stored under key.
func (s *Store) Load(ctx context.Context, key string) (form.Draft, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM drafts WHERE key=?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return form.Draft{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return form.Draft{}, fmt.Errorf("drafts: load %s: %w", key, err)
	}
	return decode(body)
}

// List returns every draft, most recent first.
func (s *Store) List(ctx context.Context) ([]form.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM drafts ORDER BY saved_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("drafts: list: %w", err)
	}
	defer rows.Close()

	var out []form.Draft
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("drafts: list: %w", err)
		}
		d, err := decode(body)
		if err != nil {
			s.logger.WithError(err).Warn("skipping unreadable draft")
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drafts: list: %w", err)
	}
	return out, nil
}

// Delete removes the draft under key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key=?`, key); err != nil {
		return fmt.Errorf("drafts: delete %s: %w", key, err)
	}
	return nil
}

func decode(body string) (form.Draft, error) {
	var d form.Draft
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return form.Draft{}, fmt.Errorf("drafts: decode: %w", err)
	}
	return d, nil
}
