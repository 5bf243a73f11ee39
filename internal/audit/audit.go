// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit persists one structured record per request: the gate
// decision, filter provenance, and the winning search path. Records are
// append-only JSON lines; an optional SQLite mirror supports querying.
// Implements: prd007-pipeline (R4); docs/ARCHITECTURE § Audit Trail.
package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Record is the per-request audit entry.
type Record struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	Prompt string   `json:"prompt"`
	IR     types.IR `json:"ir"`

	// ValidationFailed marks requests whose introspection trace failed
	// validation and short-circuited to refusal.
	ValidationFailed bool `json:"validation_failed,omitempty"`

	Plan     types.RetrievalPlan  `json:"plan"`
	Evidence types.EvidenceBundle `json:"evidence"`

	Mode   types.ResponseMode    `json:"mode"`
	Answer string                `json:"answer"`
	Reward types.CompositeResult `json:"reward"`

	SearchIterations int    `json:"search_iterations"`
	BudgetLimited    bool   `json:"budget_limited,omitempty"`
	Path             []any  `json:"path,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Sink writes audit records. The JSONL file is the source of truth; the
// database mirror is best-effort and never fails a request.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	db   *sql.DB
}

// NewSink opens (or creates) the daily audit file under cfg.Dir. When db
// is non-nil and cfg.ToDB is set, records are mirrored into it.
func NewSink(cfg types.AuditConfig, db *sql.DB) (*Sink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	name := filepath.Join(cfg.Dir, time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}

	s := &Sink{file: f}
	if cfg.ToDB && db != nil {
		if err := createAuditTable(db); err != nil {
			f.Close()
			return nil, err
		}
		s.db = db
	}
	return s, nil
}

// Close flushes and closes the audit file. The mirrored database handle
// is owned by the caller and is not closed here.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// NewRequestID returns a fresh identifier for one pipeline run.
func NewRequestID() string {
	return uuid.NewString()
}

// Write appends one record. Writing is serialized so concurrent requests
// never interleave partial lines.
func (s *Sink) Write(ctx context.Context, rec Record) error {
	if rec.RequestID == "" {
		rec.RequestID = NewRequestID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	s.mu.Lock()
	_, err = s.file.Write(append(line, '\n'))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}

	if s.db != nil {
		// Best-effort mirror; the JSONL append already succeeded.
		_, _ = s.db.ExecContext(ctx,
			`INSERT INTO audit_records (request_id, timestamp, mode, budget_limited, record) VALUES (?, ?, ?, ?, ?)`,
			rec.RequestID, rec.Timestamp.Format(time.RFC3339), string(rec.Mode), rec.BudgetLimited, string(line))
	}
	return nil
}

// Tail returns the last n records from the given audit file.
func Tail(path string, n int) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit file: %w", err)
	}

	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decoding audit record: %w", err)
		}
		records = append(records, rec)
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

func createAuditTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		mode TEXT,
		budget_limited BOOLEAN,
		record TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating audit table: %w", err)
	}
	return nil
}
