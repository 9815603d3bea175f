package graph

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// OutcomeKind enumerates the three ways a pending node leaves pending.
type OutcomeKind string

const (
	OutcomeChanged    OutcomeKind = "changed"
	OutcomeUnchanged  OutcomeKind = "unchanged"
	OutcomeManualSkip OutcomeKind = "manual_skip"
)

// Outcome is the observed result of one activation (or an operator
// override). Build one with ChangedTo, Unchanged or ManualSkip.
type Outcome struct {
	Kind                OutcomeKind
	DestinationScreenID string
	ManualDescription   string
}

// ChangedTo records that activation revealed the named screen.
func ChangedTo(screenID string) Outcome {
	return Outcome{Kind: OutcomeChanged, DestinationScreenID: screenID}
}

// Unchanged records that activation produced no observable change.
func Unchanged() Outcome {
	return Outcome{Kind: OutcomeUnchanged}
}

// ManualSkip records an operator skipping the node with a rationale.
func ManualSkip(description string) Outcome {
	return Outcome{Kind: OutcomeManualSkip, ManualDescription: description}
}

// ApplyOutcome performs the node's one status transition. For a changed
// outcome it also creates the destination screen when it does not exist yet
// and appends the transition edge. A node that has already left pending is
// immutable: the attempt fails with ErrInvalidTransition.
func (g *Graph) ApplyOutcome(ref schemas.NodeRef, outcome Outcome, destImage schemas.ImageRef) error {
	node, err := g.NodeByRef(ref)
	if err != nil {
		return err
	}
	if node.Status != schemas.StatusPending {
		return fmt.Errorf("node %s has status %q: %w", ref, node.Status, ErrInvalidTransition)
	}

	switch outcome.Kind {
	case OutcomeChanged:
		destID := outcome.DestinationScreenID
		if destID == "" {
			destID = DeriveScreenID(node.DisplayName)
		}
		if !g.HasScreen(destID) {
			if _, err := g.AddScreen(destID, ref, node.DisplayName, destImage); err != nil {
				return fmt.Errorf("creating destination screen: %w", err)
			}
		}
		g.doc.Edges = append(g.doc.Edges, schemas.Edge{
			FromScreen:  ref.ScreenID,
			FromLocalID: ref.LocalID,
			ToScreen:    destID,
		})
		node.Status = schemas.StatusExplored
		node.Interactivity = &schemas.Interactivity{
			ClickResult: &destID,
			Type:        inferInteractionType(node),
		}
		g.log.Info("Node explored",
			zap.String("node", ref.String()),
			zap.String("destination", destID))

	case OutcomeUnchanged:
		node.Status = schemas.StatusNonInteractive
		node.Interactivity = &schemas.Interactivity{Type: "none"}
		g.log.Debug("Node marked non-interactive", zap.String("node", ref.String()))

	case OutcomeManualSkip:
		desc := outcome.ManualDescription
		node.Status = schemas.StatusManualSkip
		node.Interactivity = &schemas.Interactivity{ManualDescription: &desc}
		g.log.Info("Node skipped by operator",
			zap.String("node", ref.String()),
			zap.String("reason", desc))

	default:
		return fmt.Errorf("unknown outcome kind %q", outcome.Kind)
	}

	g.doc.LastUpdated = time.Now().UTC()
	return nil
}

// inferInteractionType maps a node's element type to a coarse interaction
// category recorded alongside the click result.
func inferInteractionType(node *schemas.Node) string {
	switch node.ElementType {
	case "icon":
		return "icon_click"
	case "text":
		return "text_click"
	default:
		return "click"
	}
}
