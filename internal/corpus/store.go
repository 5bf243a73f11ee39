// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/guardrag/pkg/types"
)

const dbFile = "corpus.db"

// Store manages the corpus SQLite database and serves as the default
// retriever backend via FTS5 full-text search (R1, R2).
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the corpus database at
// cfg.IndexDir/corpus.db, creating the schema if needed.
func OpenStore(cfg types.CorpusConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.IndexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening corpus database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the audit sink can share the
// corpus database when configured to.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			source TEXT,
			created_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE documents_fts USING fts5(text, content=documents, content_rowid=rowid)`,
			`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
			`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			END`,
			`CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, text) VALUES('delete', old.rowid, old.text);
				INSERT INTO documents_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// corpusFile is the on-disk ingest format: a YAML list of documents.
type corpusFile struct {
	Documents []types.Document `yaml:"documents"`
}

// IngestSummary holds counts from a corpus ingest run.
type IngestSummary struct {
	Added   int
	Updated int
	Failed  int
}

// IngestFile loads documents from a YAML corpus file into the store.
// Existing document IDs are updated in place.
func (s *Store) IngestFile(ctx context.Context, path string) (IngestSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading corpus file: %w", err)
	}
	var cf corpusFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return IngestSummary{}, fmt.Errorf("parsing corpus file: %w", err)
	}
	return s.Ingest(ctx, cf.Documents)
}

// Ingest upserts documents into the store.
func (s *Store) Ingest(ctx context.Context, docs []types.Document) (IngestSummary, error) {
	var summary IngestSummary
	for _, d := range docs {
		if d.ID == "" || d.Text == "" {
			summary.Failed++
			continue
		}
		var createdAt string
		if !d.CreatedAt.IsZero() {
			createdAt = d.CreatedAt.UTC().Format(time.RFC3339)
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (id, text, source, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET text=excluded.text, source=excluded.source, created_at=excluded.created_at`,
			d.ID, d.Text, d.Source, createdAt)
		if err != nil {
			summary.Failed++
			continue
		}
		if n, _ := res.RowsAffected(); n > 1 {
			summary.Updated++
		} else {
			summary.Added++
		}
	}
	return summary, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Retrieve runs an FTS5 match for the query and returns up to topK
// documents honoring the allowlist and time window (R2.1-R2.3).
func (s *Store) Retrieve(ctx context.Context, query string, topK int, c types.Constraints) ([]types.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 8
	}

	var qb strings.Builder
	qb.WriteString(`
		SELECT d.id, d.text, d.source, d.created_at, documents_fts.rank
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?`)
	args := []any{ftsQuery(query)}

	if len(c.SourceAllowlist) > 0 {
		qb.WriteString(` AND d.source IN (?` + strings.Repeat(",?", len(c.SourceAllowlist)-1) + `)`)
		for _, src := range c.SourceAllowlist {
			args = append(args, src)
		}
	}
	if c.TimeWindowDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -c.TimeWindowDays).Format(time.RFC3339)
		qb.WriteString(` AND (d.created_at = '' OR d.created_at >= ?)`)
		args = append(args, cutoff)
	}
	qb.WriteString(` ORDER BY documents_fts.rank LIMIT ?`)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	rank := 0
	for rows.Next() {
		var (
			d         types.Document
			createdAt string
			ftsRank   float64
		)
		if err := rows.Scan(&d.ID, &d.Text, &d.Source, &createdAt, &ftsRank); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if createdAt != "" {
			if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
				d.CreatedAt = ts
			}
		}
		rank++
		d.Rank = rank
		// FTS5 rank is more-negative-is-better; flip the sign so higher
		// retrieval scores mean more relevant, matching the other backends.
		d.RetrievalScore = -ftsRank
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ftsQuery quotes each term so user punctuation cannot break FTS5 query
// syntax, joining terms with implicit AND.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " ")
}
