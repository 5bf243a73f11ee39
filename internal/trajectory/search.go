// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trajectory implements safety-informed tree search over
// (introspection step, retrieval action, response candidate)
// trajectories. Safety aggregates pessimistically: one unsafe node
// anywhere on a path taints the whole ancestor chain, so no amount of
// helpfulness elsewhere rescues an unsafe branch.
// Implements: prd005-trajectory-search (R1-R6);
//
//	docs/ARCHITECTURE § Trajectory Search.
package trajectory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/guardrag/internal/evidence"
	"github.com/pdiddy/guardrag/internal/gate"
	"github.com/pdiddy/guardrag/internal/introspect"
	"github.com/pdiddy/guardrag/internal/oracle"
	"github.com/pdiddy/guardrag/internal/policy"
	"github.com/pdiddy/guardrag/internal/reward"
	"github.com/pdiddy/guardrag/internal/scorecache"
	"github.com/pdiddy/guardrag/pkg/types"
)

// Engine runs one search per request over an exclusively owned node
// arena. The cache may be shared process-wide; everything else here is
// per-invocation.
type Engine struct {
	judge   oracle.Judge
	gen     oracle.Generator
	cache   *scorecache.Cache
	filter  *evidence.Filter
	cfg     types.SearchConfig
	reward  types.RewardConfig
	gateCfg types.GateConfig
}

// NewEngine wires the search to its collaborators. EvalWorkers is floored
// at 1 so a zero-value config cannot stall the evaluation group.
func NewEngine(j oracle.Judge, g oracle.Generator, c *scorecache.Cache, f *evidence.Filter,
	cfg types.SearchConfig, rewardCfg types.RewardConfig, gateCfg types.GateConfig) *Engine {
	if cfg.EvalWorkers < 1 {
		cfg.EvalWorkers = 1
	}
	return &Engine{judge: j, gen: g, cache: c, filter: f, cfg: cfg, reward: rewardCfg, gateCfg: gateCfg}
}

// Step is one hop of the winning path in the audit trail.
type Step struct {
	Kind   string  `json:"kind"`
	Detail string  `json:"detail"`
	S      float64 `json:"running_min_s"`
	R      float64 `json:"r"`
}

// Result is the search outcome. A result is always produced; budget
// exhaustion degrades quality, never availability.
type Result struct {
	Answer   string                `json:"answer"`
	Mode     types.ResponseMode    `json:"mode"`
	Plan     types.RetrievalPlan   `json:"plan"`
	Evidence types.EvidenceBundle  `json:"evidence"`
	Scores   types.Scores          `json:"scores"`
	Reward   types.CompositeResult `json:"reward"`

	Iterations int `json:"iterations"`

	// BudgetLimited marks a best-so-far result: the budget ran out
	// before a terminal node was confirmed safe and complete.
	BudgetLimited bool `json:"budget_limited"`

	Path []Step `json:"path"`
}

// search holds the per-invocation state.
type search struct {
	e      *Engine
	prompt types.Prompt
	arena  *arena
}

// Search explores trajectories for a validated introspection record and
// returns the best terminal path under safety-dominant ranking. On
// deadline or cancellation, in-flight evaluations complete (the cache
// must never receive a torn computation) but no new iterations start.
func (e *Engine) Search(ctx context.Context, prompt types.Prompt, ir types.IR) Result {
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	s := &search{e: e, prompt: prompt, arena: newArena(ir)}

	iters := 0
	budgetLimited := false
	for iters < e.cfg.Iterations {
		if ctx.Err() != nil {
			budgetLimited = true
			break
		}
		s.iterate(ctx)
		iters++
	}

	res := s.result()
	res.Iterations = iters
	if budgetLimited {
		res.BudgetLimited = true
	}
	return res
}

// iterate runs one selection/expansion/evaluation/backpropagation cycle.
func (s *search) iterate(ctx context.Context) {
	idx := s.selectLeaf()
	n := s.arena.at(idx)

	// A leaf whose evaluation previously failed retries before anything
	// else happens to it.
	if !n.evaluated {
		s.evaluateAndBackprop(ctx, []int{idx})
		return
	}

	if n.state == stateTerminal || n.depth >= s.e.cfg.MaxDepth {
		if n.state != stateTerminal {
			n.state = stateTerminal
		}
		// Terminal revisit: reinforce the path with the node's own
		// verdict so visit counts keep steering selection.
		s.backprop(idx, n.scores.Helpfulness.Score, n.scores.Introspection.Score)
		return
	}

	children := s.expand(ctx, idx)
	if len(children) == 0 {
		n.state = stateTerminal
		s.backprop(idx, n.scores.Helpfulness.Score, n.scores.Introspection.Score)
		return
	}
	s.evaluateAndBackprop(ctx, children)
}

// selectLeaf descends from the root by the safety-dominant
// upper-confidence rule until it reaches a node without children.
func (s *search) selectLeaf() int {
	cur := 0
	for {
		n := s.arena.at(cur)
		if len(n.children) == 0 || n.state == stateTerminal {
			return cur
		}
		next := s.bestChild(n, true)
		if next < 0 {
			return cur
		}
		cur = next
	}
}

// bestChild applies the safety-dominant rule: children are partitioned
// by whether their running-min safety clears the floor; safe-eligible
// children always outrank unsafe-dominated ones, which are considered
// only when no safe-eligible sibling exists and then with suppressed
// exploration weight. Ties break to the earliest-discovered child.
func (s *search) bestChild(n *node, explore bool) int {
	tau := s.e.reward.TauSafety

	var pool []int
	for _, c := range n.children {
		child := s.arena.at(c)
		if child.evaluated && child.runningMinS >= tau {
			pool = append(pool, c)
		}
	}
	penalty := 1.0
	if len(pool) == 0 {
		pool = n.children
		penalty = s.e.cfg.UnsafePenalty
	}

	best, bestScore := -1, math.Inf(-1)
	for _, c := range pool {
		child := s.arena.at(c)
		u := s.nodeR(child)
		if explore {
			u += penalty * s.e.cfg.CPuct *
				math.Sqrt(math.Log(float64(n.visits+1))/float64(child.visits+1))
		}
		if u > bestScore {
			bestScore = u
			best = c
		}
	}
	return best
}

// nodeR re-derives the composite reward from the node's aggregated
// statistics: pessimistic running-min safety, averaged H and I.
func (s *search) nodeR(n *node) float64 {
	minS := n.runningMinS
	if math.IsInf(minS, 1) {
		minS = -1
	}
	return reward.Composite(n.avgH(), minS, n.avgI(), s.e.reward).R
}

// expand generates candidate moves from a non-terminal leaf. Candidates
// that fail validation are discarded, never inserted.
func (s *search) expand(ctx context.Context, idx int) []int {
	n := s.arena.at(idx)
	switch n.kind {
	case kindRoot, kindIntrospect:
		var children []int
		children = append(children, s.expandIntrospection(idx)...)
		children = append(children, s.expandActions(ctx, idx)...)
		return children
	case kindAction:
		return s.expandResponses(ctx, idx)
	}
	return nil
}

// expandIntrospection adds one child per competing reading of an
// ambiguous request, resolving the ambiguity in the child's record.
func (s *search) expandIntrospection(idx int) []int {
	n := s.arena.at(idx)
	if !n.ir.Ambiguity.IsAmbiguous || len(n.ir.Ambiguity.Readings) == 0 {
		return nil
	}

	readings := n.ir.Ambiguity.Readings
	if len(readings) > 2 {
		readings = readings[:2]
	}

	var children []int
	for _, reading := range readings {
		resolved := n.ir
		resolved.IntentHypothesis = reading
		resolved.Ambiguity = types.Ambiguity{}

		tr := types.Trace{
			Steps:  []string{"Resolved ambiguity toward reading: " + reading},
			IR:     resolved,
			Output: "Interpretation fixed; gate decision pending.",
		}
		if err := introspect.Validate(tr); err != nil {
			continue
		}
		children = append(children, s.arena.add(idx, &node{
			kind: kindIntrospect,
			ir:   resolved,
		}))
	}
	return children
}

// expandActions branches on the retrieval action. The gate's verdict is
// the ceiling: the search explores the gate's action and strictly more
// conservative ones, never an escalation past what the gate allowed.
func (s *search) expandActions(ctx context.Context, idx int) []int {
	n := s.arena.at(idx)
	base := gate.Decide(s.prompt, n.ir, s.e.gateCfg)

	var actions []types.RetrievalAction
	switch base.Action {
	case types.ActionRetrieve:
		actions = []types.RetrievalAction{types.ActionRetrieve, types.ActionRestrict, types.ActionNoRetrieve}
	case types.ActionRestrict:
		actions = []types.RetrievalAction{types.ActionRestrict, types.ActionNoRetrieve}
	default:
		actions = []types.RetrievalAction{types.ActionNoRetrieve}
	}

	var children []int
	for _, action := range actions {
		plan := s.planFor(action, base)

		var bundle types.EvidenceBundle
		if plan.Action != types.ActionNoRetrieve {
			b, executed, err := s.e.filter.Gather(ctx, s.prompt, n.ir, plan)
			if err != nil {
				// Gather fails only on cancellation; the branch still
				// materializes with the empty no-evidence bundle so the
				// in-flight iteration can finish.
				bundle = types.EvidenceBundle{Fallback: types.FallbackNoEvidence}
			} else {
				bundle = b
				plan = executed
			}
		} else {
			bundle = types.EvidenceBundle{Fallback: types.FallbackNoEvidence}
		}

		children = append(children, s.arena.add(idx, &node{
			kind:   kindAction,
			ir:     n.ir,
			plan:   plan,
			bundle: bundle,
		}))
	}
	return children
}

func (s *search) planFor(action types.RetrievalAction, base types.RetrievalPlan) types.RetrievalPlan {
	if action == base.Action {
		return base
	}
	switch action {
	case types.ActionRestrict:
		return gate.RestrictPlan(s.prompt.Text, s.e.gateCfg)
	default:
		hint := base.ResponseHint
		if hint == "" || hint == types.ModeSafeGrounded {
			hint = types.ModeSafeHighLevel
		}
		return types.RetrievalPlan{
			Action:               types.ActionNoRetrieve,
			ExpectedEvidenceType: "none",
			ResponseHint:         hint,
			Rationale:            "conservative branch: answer without retrieval",
		}
	}
}

// expandResponses produces terminal response candidates for an action
// node: a refusal when eligible, a grounded draft when safe evidence
// exists, and a high-level answer always. Empty generator output is a
// malformed candidate and is discarded.
func (s *search) expandResponses(ctx context.Context, idx int) []int {
	n := s.arena.at(idx)
	pd := policy.Route(n.ir.RiskCategory, n.ir.Severity)

	var children []int
	addResponse := func(text string, mode types.ResponseMode) {
		if strings.TrimSpace(text) == "" {
			return
		}
		children = append(children, s.arena.add(idx, &node{
			kind:     kindResponse,
			ir:       n.ir,
			plan:     n.plan,
			bundle:   n.bundle,
			response: text,
			mode:     mode,
			state:    stateTerminal,
		}))
	}

	if !pd.Allow || n.plan.ResponseHint == types.ModeRefuse || n.ir.ResponseMode == types.ModeRefuse {
		addResponse(policy.RefusalText(pd.Reason, pd.SafeAlternatives), types.ModeRefuse)
	}

	if pd.Allow && len(n.bundle.Kept) > 0 && pd.Mode != types.ModeSafeHighLevel {
		draft, err := s.e.gen.Complete(ctx, groundedContext(s.prompt, n.ir, n.bundle))
		if err == nil {
			addResponse(draft, types.ModeSafeGrounded)
		}
		// A generator failure just means no grounded candidate this
		// iteration; the sibling candidates still compete.
		addResponse(groundedFallback(n.bundle), types.ModeSafeGrounded)
	}

	if pd.Allow {
		addResponse(highLevelAnswer(n.ir), types.ModeSafeHighLevel)
	}
	return children
}

// evaluateAndBackprop scores the given nodes, siblings in parallel
// bounded by EvalWorkers, and only after every evaluation has joined
// does backpropagation commit statistics, so no ancestor ever observes
// a half-evaluated expansion.
func (s *search) evaluateAndBackprop(ctx context.Context, nodes []int) {
	g := new(errgroup.Group)
	g.SetLimit(s.e.cfg.EvalWorkers)
	for _, idx := range nodes {
		idx := idx
		g.Go(func() error {
			s.evaluate(ctx, idx)
			return nil
		})
	}
	g.Wait()

	for _, idx := range nodes {
		n := s.arena.at(idx)
		if n.evaluated {
			s.backprop(idx, n.scores.Helpfulness.Score, n.scores.Introspection.Score)
		}
	}
}

// evaluate judges a node's candidate text through the cache. A judge
// failure leaves the node unevaluated and eligible for retry; past the
// retry cap the node is conservatively scored as maximally unsafe so it
// can never be selected preferentially.
func (s *search) evaluate(ctx context.Context, idx int) {
	n := s.arena.at(idx)
	text := n.response
	if n.kind != kindResponse {
		text = s.rolloutText(n)
		n.rollout = text
	}

	jc := oracle.Context{Prompt: s.prompt.Text, IR: n.ir, Candidate: text}
	sc, err := s.judgeAll(ctx, jc)
	if err != nil {
		n.mu.Lock()
		n.failedEvals++
		exhausted := n.failedEvals > s.e.cfg.OracleRetries
		if exhausted {
			n.scores = types.Scores{Safety: types.JudgeScore{Score: -1, Label: "unscoreable"}}
			n.ownS = -1
			n.evaluated = true
		}
		n.mu.Unlock()
		return
	}

	n.mu.Lock()
	n.scores = sc
	n.ownS = sc.Safety.Score
	n.evaluated = true
	n.mu.Unlock()
}

func (s *search) judgeAll(ctx context.Context, jc oracle.Context) (types.Scores, error) {
	var sc types.Scores
	for _, q := range []struct {
		kind types.ScoreKind
		dst  *types.JudgeScore
	}{
		{types.ScoreResponseSafety, &sc.Safety},
		{types.ScoreHelpfulness, &sc.Helpfulness},
		{types.ScoreIntrospection, &sc.Introspection},
	} {
		v, err := s.e.cache.GetOrCompute(ctx, jc.Fingerprint(q.kind), func(ctx context.Context) (types.JudgeScore, error) {
			return s.e.judge.Score(ctx, q.kind, jc)
		})
		if err != nil {
			return types.Scores{}, fmt.Errorf("judging %s: %w", q.kind, err)
		}
		*q.dst = v
	}
	return sc, nil
}

// rolloutText simulates a non-terminal node forward to a terminal answer
// with the cheap greedy policy, giving the node an initial estimate.
func (s *search) rolloutText(n *node) string {
	text, _ := greedyAnswer(n.ir, n.bundle, n.plan.ResponseHint)
	return text
}

// backprop commits one evaluation along the ancestor chain. Visit counts
// and the H/I sums are averaged updates; safety is re-derived at every
// hop as min(own S, min over children running-min S), never averaged.
// Each node's statistics mutate inside its own critical section.
func (s *search) backprop(idx int, h, i float64) {
	cur := idx
	for cur >= 0 {
		n := s.arena.at(cur)
		n.mu.Lock()
		n.visits++
		n.sumH += h
		n.sumI += i

		minS := n.ownS
		for _, c := range n.children {
			child := s.arena.at(c)
			child.mu.Lock()
			cs := child.runningMinS
			child.mu.Unlock()
			if cs < minS {
				minS = cs
			}
		}
		n.runningMinS = minS
		parent := n.parent
		n.mu.Unlock()
		cur = parent
	}
}

// result walks the root's best path greedily under the final
// safety-dominant ranking and renders the terminal node as the answer.
// A response is always produced, even from a bare root.
func (s *search) result() Result {
	path := []int{0}
	cur := 0
	for {
		n := s.arena.at(cur)
		if len(n.children) == 0 {
			break
		}
		next := s.bestChild(n, false)
		if next < 0 {
			break
		}
		path = append(path, next)
		cur = next
	}

	leaf := s.arena.at(cur)
	res := Result{
		Plan:     leaf.plan,
		Evidence: leaf.bundle,
		Scores:   leaf.scores,
	}

	if leaf.kind == kindResponse {
		res.Answer = leaf.response
		res.Mode = leaf.mode
	} else {
		res.Answer, res.Mode = greedyAnswer(leaf.ir, leaf.bundle, leaf.plan.ResponseHint)
		res.BudgetLimited = true
	}

	minS := leaf.runningMinS
	if math.IsInf(minS, 1) {
		minS = -1
	}
	res.Reward = reward.Composite(leaf.scores.Helpfulness.Score, minS, leaf.scores.Introspection.Score, s.e.reward)
	if minS < s.e.reward.TauSafety && res.Mode != types.ModeRefuse {
		res.BudgetLimited = true
	}

	for _, idx := range path {
		n := s.arena.at(idx)
		res.Path = append(res.Path, Step{
			Kind:   n.kind.String(),
			Detail: stepDetail(n),
			S:      n.runningMinS,
			R:      s.nodeR(n),
		})
	}
	return res
}

func stepDetail(n *node) string {
	switch n.kind {
	case kindAction:
		return string(n.plan.Action)
	case kindResponse:
		return string(n.mode)
	case kindIntrospect:
		return n.ir.IntentHypothesis
	}
	return ""
}
