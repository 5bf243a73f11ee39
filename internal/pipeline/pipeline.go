// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the full request flow: introspection, trace
// validation, retrieval gating, evidence filtering, trajectory search,
// and the audit record. A response is always produced; internal failure
// degrades to refusal or a high-level answer, never to silence.
// Implements: prd007-pipeline (R1-R5); docs/ARCHITECTURE § Pipeline.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/guardrag/internal/audit"
	"github.com/pdiddy/guardrag/internal/corpus"
	"github.com/pdiddy/guardrag/internal/evidence"
	"github.com/pdiddy/guardrag/internal/gate"
	"github.com/pdiddy/guardrag/internal/introspect"
	"github.com/pdiddy/guardrag/internal/oracle"
	"github.com/pdiddy/guardrag/internal/policy"
	"github.com/pdiddy/guardrag/internal/scorecache"
	"github.com/pdiddy/guardrag/internal/trajectory"
	"github.com/pdiddy/guardrag/pkg/types"
)

// Response is the user-facing result of one request.
type Response struct {
	RequestID string                `json:"request_id"`
	Answer    string                `json:"answer"`
	Mode      types.ResponseMode    `json:"mode"`
	Plan      types.RetrievalPlan   `json:"plan"`
	Evidence  types.EvidenceBundle  `json:"evidence"`
	Reward    types.CompositeResult `json:"reward"`

	BudgetLimited    bool `json:"budget_limited,omitempty"`
	ValidationFailed bool `json:"validation_failed,omitempty"`
}

// Pipeline holds the wired stages for a process lifetime. The score
// cache is shared across requests; the node arena never is.
type Pipeline struct {
	cfg      types.PipelineConfig
	producer introspect.Producer
	cache    *scorecache.Cache
	engine   *trajectory.Engine
	sink     *audit.Sink
	store    *corpus.Store
	logw     io.Writer
}

// New builds a pipeline from configuration. logw receives operational
// log lines; pass io.Discard to silence them.
func New(cfg types.PipelineConfig, logw io.Writer) (*Pipeline, error) {
	cfg = cfg.Defaults()

	judge, gen, err := oracle.New(cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("building oracle: %w", err)
	}

	retriever, err := corpus.New(cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("building retriever: %w", err)
	}
	store, _ := retriever.(*corpus.Store)

	cache := scorecache.New(cfg.Cache)
	filter := evidence.NewFilter(retriever, judge, cache, cfg.Filter, cfg.Gate)
	engine := trajectory.NewEngine(judge, gen, cache, filter, cfg.Search, cfg.Reward, cfg.Gate)

	var sink *audit.Sink
	if store != nil {
		sink, err = audit.NewSink(cfg.Audit, store.DB())
	} else {
		sink, err = audit.NewSink(cfg.Audit, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit sink: %w", err)
	}

	return &Pipeline{
		cfg:      cfg,
		producer: introspect.Planner{},
		cache:    cache,
		engine:   engine,
		sink:     sink,
		store:    store,
		logw:     logw,
	}, nil
}

// Close releases the audit sink and the corpus store.
func (p *Pipeline) Close() error {
	err := p.sink.Close()
	if p.store != nil {
		if cerr := p.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Store exposes the corpus store for ingest tooling; nil unless the
// FTS5 backend is configured.
func (p *Pipeline) Store() *corpus.Store {
	return p.store
}

// Cache exposes the shared score cache for stats reporting.
func (p *Pipeline) Cache() *scorecache.Cache {
	return p.cache
}

// Answer runs the full flow for one prompt.
func (p *Pipeline) Answer(ctx context.Context, promptText string) (Response, error) {
	start := time.Now()
	requestID := audit.NewRequestID()
	prompt := types.Prompt{Text: promptText}

	rec := audit.Record{
		RequestID: requestID,
		Timestamp: start.UTC(),
		Prompt:    promptText,
	}

	tr, err := p.introspect(ctx, prompt)
	if err != nil {
		// Validation failure fails closed: no retrieval, refusal-shaped
		// answer, and the failure is recorded rather than propagated.
		fmt.Fprintf(p.logw, "request %s: introspection rejected: %v\n", requestID, err)
		resp := p.refuseOnValidationFailure(requestID)
		rec.ValidationFailed = true
		rec.Mode = resp.Mode
		rec.Answer = resp.Answer
		rec.Plan = resp.Plan
		rec.Error = err.Error()
		p.writeAudit(ctx, requestID, rec)
		return resp, nil
	}
	rec.IR = tr.IR

	res := p.engine.Search(ctx, prompt, tr.IR)

	rec.Plan = res.Plan
	rec.Evidence = res.Evidence
	rec.Mode = res.Mode
	rec.Answer = res.Answer
	rec.Reward = res.Reward
	rec.SearchIterations = res.Iterations
	rec.BudgetLimited = res.BudgetLimited
	for _, step := range res.Path {
		rec.Path = append(rec.Path, step)
	}
	p.writeAudit(ctx, requestID, rec)

	fmt.Fprintf(p.logw, "request %s: mode=%s action=%s kept=%d iterations=%d elapsed=%s\n",
		requestID, res.Mode, res.Plan.Action, len(res.Evidence.Kept), res.Iterations, time.Since(start).Round(time.Millisecond))

	return Response{
		RequestID:     requestID,
		Answer:        res.Answer,
		Mode:          res.Mode,
		Plan:          res.Plan,
		Evidence:      res.Evidence,
		Reward:        res.Reward,
		BudgetLimited: res.BudgetLimited,
	}, nil
}

// Gate runs introspection and the gate decision only, without search or
// retrieval. Used by inspection tooling.
func (p *Pipeline) Gate(ctx context.Context, promptText string) (types.IR, types.RetrievalPlan, error) {
	prompt := types.Prompt{Text: promptText}
	tr, err := p.introspect(ctx, prompt)
	if err != nil {
		return types.IR{}, types.RetrievalPlan{}, err
	}
	return tr.IR, gate.Decide(prompt, tr.IR, p.cfg.Gate), nil
}

func (p *Pipeline) introspect(ctx context.Context, prompt types.Prompt) (types.Trace, error) {
	raw, err := p.producer.Produce(ctx, prompt)
	if err != nil {
		return types.Trace{}, fmt.Errorf("producing introspection: %w", err)
	}
	tr, err := introspect.ParseAndValidate(raw)
	if err != nil {
		return types.Trace{}, err
	}
	return tr, nil
}

func (p *Pipeline) refuseOnValidationFailure(requestID string) Response {
	pd := policy.Route(types.CategoryOther, types.SeverityHigh)
	answer := policy.RefusalText("the request could not be safely analyzed", pd.SafeAlternatives)
	return Response{
		RequestID: requestID,
		Answer:    answer,
		Mode:      types.ModeRefuse,
		Plan: types.RetrievalPlan{
			Action:               types.ActionNoRetrieve,
			ExpectedEvidenceType: "none",
			ResponseHint:         types.ModeRefuse,
			Rationale:            "introspection validation failed: fail closed",
		},
		ValidationFailed: true,
	}
}

func (p *Pipeline) writeAudit(ctx context.Context, requestID string, rec audit.Record) {
	if err := p.sink.Write(ctx, rec); err != nil {
		fmt.Fprintf(p.logw, "request %s: audit write failed: %v\n", requestID, err)
	}
}
