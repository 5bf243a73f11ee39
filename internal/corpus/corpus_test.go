// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/guardrag/pkg/types"
)

func sampleDocs() []types.Document {
	now := time.Now().UTC()
	return []types.Document{
		{ID: "d1", Text: "ladder safety inspection checklist for home use", Source: "gov-safety", CreatedAt: now.AddDate(0, 0, -10)},
		{ID: "d2", Text: "medication storage guidance and childproofing", Source: "medline", CreatedAt: now.AddDate(0, 0, -400)},
		{ID: "d3", Text: "general first aid overview and emergency contacts", Source: "redcross", CreatedAt: now.AddDate(0, 0, -5)},
		{ID: "d4", Text: "ladder manufacturing tolerances and materials science", Source: "trade-blog", CreatedAt: now.AddDate(0, 0, -2)},
	}
}

func TestBM25Retrieve(t *testing.T) {
	b := NewBM25(sampleDocs())
	ctx := context.Background()

	docs, err := b.Retrieve(ctx, "ladder safety", 2, types.Constraints{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].ID != "d1" {
		t.Errorf("top result = %s, want d1", docs[0].ID)
	}
	if docs[0].Rank != 1 || docs[1].Rank != 2 {
		t.Errorf("ranks = %d,%d, want 1,2", docs[0].Rank, docs[1].Rank)
	}
	if docs[0].RetrievalScore <= docs[1].RetrievalScore {
		t.Errorf("scores not descending: %f <= %f", docs[0].RetrievalScore, docs[1].RetrievalScore)
	}
}

func TestBM25Allowlist(t *testing.T) {
	b := NewBM25(sampleDocs())
	c := types.Constraints{SourceAllowlist: []string{"gov-safety", "redcross"}}

	docs, err := b.Retrieve(context.Background(), "ladder", 10, c)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, d := range docs {
		if d.Source != "gov-safety" && d.Source != "redcross" {
			t.Errorf("document %s from disallowed source %s", d.ID, d.Source)
		}
	}
	if len(docs) != 1 {
		t.Errorf("got %d docs, want 1 (d1 only)", len(docs))
	}
}

func TestBM25TimeWindow(t *testing.T) {
	b := NewBM25(sampleDocs())
	c := types.Constraints{TimeWindowDays: 30}

	docs, err := b.Retrieve(context.Background(), "medication storage guidance", 10, c)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, d := range docs {
		if d.ID == "d2" {
			t.Error("d2 is 400 days old and should be outside the 30-day window")
		}
	}
}

func TestBM25EmptyQuery(t *testing.T) {
	b := NewBM25(sampleDocs())
	docs, err := b.Retrieve(context.Background(), "   ", 5, types.Constraints{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs != nil {
		t.Errorf("empty query returned %d docs, want none", len(docs))
	}
}

func TestStoreIngestAndRetrieve(t *testing.T) {
	store, err := OpenStore(types.CorpusConfig{IndexDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	summary, err := store.Ingest(ctx, sampleDocs())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Added != 4 {
		t.Errorf("added = %d, want 4", summary.Added)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}

	docs, err := store.Retrieve(ctx, "ladder safety", 3, types.Constraints{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no documents returned")
	}
	if docs[0].ID != "d1" {
		t.Errorf("top result = %s, want d1", docs[0].ID)
	}
}

func TestStoreAllowlist(t *testing.T) {
	store, err := OpenStore(types.CorpusConfig{IndexDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	c := types.Constraints{SourceAllowlist: []string{"medline"}}
	docs, err := store.Retrieve(ctx, "medication", 10, c)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, d := range docs {
		if d.Source != "medline" {
			t.Errorf("document %s from disallowed source %s", d.ID, d.Source)
		}
	}
}

func TestStoreUpsert(t *testing.T) {
	store, err := OpenStore(types.CorpusConfig{IndexDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	doc := types.Document{ID: "x1", Text: "original text", Source: "a"}
	if _, err := store.Ingest(ctx, []types.Document{doc}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	doc.Text = "revised text entirely"
	if _, err := store.Ingest(ctx, []types.Document{doc}); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d after upsert, want 1", n)
	}

	docs, err := store.Retrieve(ctx, "revised", 5, types.Constraints{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "revised text entirely" {
		t.Errorf("upserted text not retrievable: %+v", docs)
	}
}

func TestFTSQueryQuoting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ladder safety", `"ladder" "safety"`},
		{`say "this"`, `"say" "this"`},
		{"a-b c", `"a-b" "c"`},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemoteBackend(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("q"); got != "ladder safety" {
			t.Errorf("q = %q, want %q", got, "ladder safety")
		}
		resp := remoteResponse{Documents: []remoteDocument{
			{ID: "r1", Text: "ladder safety basics", Source: "gov-safety", Score: 2.5, CreatedAt: now.Format(time.RFC3339)},
			{ID: "r2", Text: "unrelated blog post", Source: "trade-blog", Score: 1.1, CreatedAt: now.Format(time.RFC3339)},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	b := NewRemoteBackend(types.CorpusConfig{RemoteURL: srv.URL, UserAgent: "guardrag-test"})
	c := types.Constraints{SourceAllowlist: []string{"gov-safety"}}
	docs, err := b.Retrieve(context.Background(), "ladder safety", 5, c)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "r1" {
		t.Fatalf("got %+v, want only r1", docs)
	}
}

func TestRemoteBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewRemoteBackend(types.CorpusConfig{RemoteURL: srv.URL})
	if _, err := b.Retrieve(context.Background(), "anything", 3, types.Constraints{}); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}
