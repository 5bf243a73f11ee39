// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trajectory

import (
	"math"
	"sync"

	"github.com/pdiddy/guardrag/pkg/types"
)

// nodeKind labels the move that created a node.
type nodeKind int

const (
	kindRoot nodeKind = iota
	kindIntrospect
	kindAction
	kindResponse
)

func (k nodeKind) String() string {
	switch k {
	case kindRoot:
		return "root"
	case kindIntrospect:
		return "introspect"
	case kindAction:
		return "action"
	case kindResponse:
		return "response"
	}
	return "unknown"
}

// nodeState is the per-node lifecycle: Unexpanded until expansion has
// run, Expanded once children exist, Terminal when the node carries a
// complete response or sits at the depth limit.
type nodeState int

const (
	stateUnexpanded nodeState = iota
	stateExpanded
	stateTerminal
)

// node is one arena entry. Parent and children are arena indices, never
// pointers, so ancestor chains can be read safely while siblings are
// being evaluated. All statistics mutations take mu so concurrent
// backpropagation cannot lose visit counts or min-safety updates.
type node struct {
	mu sync.Mutex

	parent   int // -1 for the root
	children []int
	depth    int
	kind     nodeKind
	state    nodeState

	// Move payload. Which fields are meaningful depends on kind.
	ir       types.IR
	plan     types.RetrievalPlan
	bundle   types.EvidenceBundle
	response string
	mode     types.ResponseMode

	// rollout is the greedy completion scored for non-terminal nodes.
	rollout string

	evaluated   bool
	failedEvals int
	scores      types.Scores

	// Statistics. ownS is this node's judged safety; runningMinS is
	// min(ownS, min over children's runningMinS), maintained by
	// backpropagation. H and I are averaged over visits; safety never is.
	visits      int
	sumH        float64
	sumI        float64
	ownS        float64
	runningMinS float64
}

// avgH returns the running helpfulness average.
func (n *node) avgH() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.sumH / float64(n.visits)
}

func (n *node) avgI() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.sumI / float64(n.visits)
}

// arena owns every node of one search invocation. Nodes are addressed
// by index; the slice only ever grows, so held indices stay valid for
// the lifetime of the search.
type arena struct {
	nodes []*node
}

func newArena(rootIR types.IR) *arena {
	root := &node{
		parent: -1,
		kind:   kindRoot,
		ir:     rootIR,
		// The root constrains nothing: its own safety is the neutral
		// maximum so runningMinS reflects descendants only.
		ownS:        1,
		runningMinS: 1,
		evaluated:   true,
	}
	return &arena{nodes: []*node{root}}
}

// add appends a child under parent and returns its index. Structural
// growth happens only on the expansion goroutine, so no lock is needed
// beyond the parent's stats mutex for the children slice.
func (a *arena) add(parent int, n *node) int {
	idx := len(a.nodes)
	n.parent = parent
	n.depth = a.nodes[parent].depth + 1
	n.runningMinS = math.Inf(1)
	a.nodes = append(a.nodes, n)

	p := a.nodes[parent]
	p.mu.Lock()
	p.children = append(p.children, idx)
	if p.state == stateUnexpanded {
		p.state = stateExpanded
	}
	p.mu.Unlock()
	return idx
}

func (a *arena) at(idx int) *node {
	return a.nodes[idx]
}
