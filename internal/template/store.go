// Package template persists per-supplier anchor templates. A template
// records where a known supplier prints each field, keyed by SIRET,
// and feeds the layout pairing pass with high-trust anchors.
package template

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/devisflow/docextract/internal/common"
	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/layout"
)

// Schema for the template tables. Store.Init() applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS suppliers (
	siret TEXT PRIMARY KEY,
	name  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS anchors (
	siret TEXT NOT NULL REFERENCES suppliers(siret) ON DELETE CASCADE,
	field TEXT NOT NULL,
	label TEXT NOT NULL,
	score REAL NOT NULL DEFAULT 0.90,
	PRIMARY KEY (siret, field, label)
);
`

// Template is one supplier's learned anchor set.
type Template struct {
	SIRET   string
	Name    string
	Anchors []layout.Anchor
}

// Store reads and writes supplier templates in a SQLite file.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the template database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open template db: %w", err)
	}
	s := &Store{db: db, log: logger}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the template tables if they don't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("init template schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the template registered for a SIRET, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, siret string) (*Template, error) {
	t := &Template{SIRET: siret}
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM suppliers WHERE siret = ?`, siret).Scan(&t.Name)
	if err == sql.ErrNoRows {
		return nil, common.NewAppError("TEMPLATE_NOT_FOUND",
			fmt.Sprintf("no template for siret %s", siret), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup supplier: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, label, score FROM anchors WHERE siret = ? ORDER BY field, label`, siret)
	if err != nil {
		return nil, fmt.Errorf("lookup anchors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field, label string
		var score float64
		if err := rows.Scan(&field, &label, &score); err != nil {
			return nil, fmt.Errorf("scan anchor: %w", err)
		}
		t.Anchors = append(t.Anchors, layout.Anchor{
			Label: label,
			Field: fields.Field(field),
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anchors: %w", err)
	}

	s.log.Debug("template.lookup", "siret", siret, "anchors", len(t.Anchors))
	return t, nil
}

// Save upserts a supplier and replaces its anchor set atomically.
func (s *Store) Save(ctx context.Context, t *Template) error {
	if t.SIRET == "" {
		return common.NewAppError("TEMPLATE_INVALID", "template requires a siret", common.ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO suppliers (siret, name) VALUES (?, ?)
		 ON CONFLICT(siret) DO UPDATE SET name = excluded.name`,
		t.SIRET, t.Name); err != nil {
		return fmt.Errorf("upsert supplier: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM anchors WHERE siret = ?`, t.SIRET); err != nil {
		return fmt.Errorf("clear anchors: %w", err)
	}
	for _, a := range t.Anchors {
		score := a.Score
		if score <= 0 {
			score = 0.90
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anchors (siret, field, label, score) VALUES (?, ?, ?, ?)`,
			t.SIRET, string(a.Field), a.Label, score); err != nil {
			return fmt.Errorf("insert anchor: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.Info("template.saved", "siret", t.SIRET, "name", t.Name, "anchors", len(t.Anchors))
	return nil
}
