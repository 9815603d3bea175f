// Package scheduler derives the exploration work sets from the graph and
// picks the next node to activate. The sets are a pure projection: they are
// rebuilt by scanning every screen's nodes and are never persisted or
// maintained as independent state.
package scheduler

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// Scheduler projects the graph into pending/explored/non-interactive/skip
// work sets and applies activation outcomes. Like the graph it wraps, it is
// owned by a single session and not safe for concurrent use.
type Scheduler struct {
	g              *graph.Graph
	pending        []schemas.NodeRef
	explored       []schemas.NodeRef
	nonInteractive []schemas.NodeRef
	manualSkip     []schemas.NodeRef
	log            *zap.Logger
}

// New builds a scheduler over the graph and immediately projects the work
// sets. After loading a persisted graph this is the projection rebuild the
// resume contract requires.
func New(g *graph.Graph, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{g: g, log: logger.Named("scheduler")}
	s.Rebuild()
	return s
}

// Rebuild recomputes every work set from scratch in discovery order:
// screens in first-seen order, nodes in per-screen insertion order.
func (s *Scheduler) Rebuild() {
	s.pending = s.pending[:0]
	s.explored = s.explored[:0]
	s.nonInteractive = s.nonInteractive[:0]
	s.manualSkip = s.manualSkip[:0]

	for _, screenID := range s.g.ScreenIDs() {
		screen, err := s.g.Screen(screenID)
		if err != nil {
			continue
		}
		for _, localID := range screen.NodeOrder {
			node, ok := screen.Nodes[localID]
			if !ok {
				continue
			}
			ref := schemas.NodeRef{ScreenID: screenID, LocalID: localID}
			switch node.Status {
			case schemas.StatusPending:
				s.pending = append(s.pending, ref)
			case schemas.StatusExplored:
				s.explored = append(s.explored, ref)
			case schemas.StatusNonInteractive:
				s.nonInteractive = append(s.nonInteractive, ref)
			case schemas.StatusManualSkip:
				s.manualSkip = append(s.manualSkip, ref)
			}
		}
	}

	s.log.Debug("Work sets rebuilt",
		zap.Int("pending", len(s.pending)),
		zap.Int("explored", len(s.explored)),
		zap.Int("non_interactive", len(s.nonInteractive)),
		zap.Int("manual_skip", len(s.manualSkip)))
}

// ListPending returns the pending references in discovery order.
func (s *Scheduler) ListPending() []schemas.NodeRef {
	out := make([]schemas.NodeRef, len(s.pending))
	copy(out, s.pending)
	return out
}

// Explored returns the explored references in discovery order.
func (s *Scheduler) Explored() []schemas.NodeRef {
	out := make([]schemas.NodeRef, len(s.explored))
	copy(out, s.explored)
	return out
}

// NonInteractive returns the non-interactive references in discovery order.
func (s *Scheduler) NonInteractive() []schemas.NodeRef {
	out := make([]schemas.NodeRef, len(s.nonInteractive))
	copy(out, s.nonInteractive)
	return out
}

// ManualSkip returns the operator-skipped references in discovery order.
func (s *Scheduler) ManualSkip() []schemas.NodeRef {
	out := make([]schemas.NodeRef, len(s.manualSkip))
	copy(out, s.manualSkip)
	return out
}

// SelectNext asks the policy for the next unit of work. ok=false means
// exploration is complete. A nil policy defaults to discovery order.
func (s *Scheduler) SelectNext(policy schemas.SelectionPolicy) (schemas.NodeRef, bool) {
	if len(s.pending) == 0 {
		return schemas.NodeRef{}, false
	}
	if policy == nil {
		policy = FIFOPolicy{}
	}
	return policy.Select(s.ListPending())
}

// RecordOutcome applies the status transition for an observed activation
// outcome and reprojects the work sets. Destination screens and edges are
// created by the graph as needed. Outcomes on non-pending nodes fail with
// graph.ErrInvalidTransition; deciding whether that is a bug or an
// idempotent repeat is up to the caller.
func (s *Scheduler) RecordOutcome(ref schemas.NodeRef, outcome graph.Outcome, destImage schemas.ImageRef) error {
	if err := s.g.ApplyOutcome(ref, outcome, destImage); err != nil {
		return err
	}
	s.Rebuild()
	return nil
}
