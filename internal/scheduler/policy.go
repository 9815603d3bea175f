package scheduler

import (
	"sort"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// FIFOPolicy selects pending nodes in discovery order: the order screens
// were first seen, then the order nodes were detected within each screen.
type FIFOPolicy struct{}

var _ schemas.SelectionPolicy = FIFOPolicy{}

// Select returns the first pending reference.
func (FIFOPolicy) Select(pending []schemas.NodeRef) (schemas.NodeRef, bool) {
	if len(pending) == 0 {
		return schemas.NodeRef{}, false
	}
	return pending[0], true
}

// BreadthFirstPolicy prefers nodes on screens closest to the root, so the
// shallow surface of the application is covered before deep menus. Ties keep
// discovery order.
type BreadthFirstPolicy struct {
	Graph *graph.Graph
}

var _ schemas.SelectionPolicy = (*BreadthFirstPolicy)(nil)

// Select returns the pending reference with the smallest screen depth.
func (p *BreadthFirstPolicy) Select(pending []schemas.NodeRef) (schemas.NodeRef, bool) {
	if len(pending) == 0 {
		return schemas.NodeRef{}, false
	}
	ordered := make([]schemas.NodeRef, len(pending))
	copy(ordered, pending)
	sort.SliceStable(ordered, func(i, j int) bool {
		return p.Graph.Depth(ordered[i].ScreenID) < p.Graph.Depth(ordered[j].ScreenID)
	})
	return ordered[0], true
}
