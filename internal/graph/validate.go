package graph

import (
	"fmt"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// Validate checks the structural invariants of a deserialized document.
// A failure here means the document cannot be resumed from as-is.
func Validate(doc *schemas.ExplorationGraph) error {
	if doc.AppName == "" {
		return fmt.Errorf("document has no appName")
	}

	roots := 0
	for screenID, screen := range doc.Screens {
		if screen == nil {
			return fmt.Errorf("screen %q is null", screenID)
		}
		if screen.ID != screenID {
			return fmt.Errorf("screen %q carries mismatched id %q", screenID, screen.ID)
		}

		if screen.Parent == nil {
			roots++
			if screenID != schemas.RootScreenID {
				return fmt.Errorf("screen %q has no parent but is not %q", screenID, schemas.RootScreenID)
			}
			if screen.TriggerNode != nil {
				return fmt.Errorf("root screen must not have a trigger node")
			}
		} else {
			parent, ok := doc.Screens[*screen.Parent]
			if !ok {
				return fmt.Errorf("screen %q references missing parent %q", screenID, *screen.Parent)
			}
			if screen.TriggerNode == nil {
				return fmt.Errorf("screen %q has a parent but no trigger node", screenID)
			}
			trigger := *screen.TriggerNode
			if trigger.ScreenID != parent.ID {
				return fmt.Errorf("screen %q trigger node %s does not live on parent %q", screenID, trigger, parent.ID)
			}
			if _, ok := parent.Nodes[trigger.LocalID]; !ok {
				return fmt.Errorf("screen %q references missing trigger node %s", screenID, trigger)
			}
		}

		if len(screen.NodeOrder) != len(screen.Nodes) {
			return fmt.Errorf("screen %q node order lists %d ids for %d nodes", screenID, len(screen.NodeOrder), len(screen.Nodes))
		}
		for _, localID := range screen.NodeOrder {
			if _, ok := screen.Nodes[localID]; !ok {
				return fmt.Errorf("screen %q node order references missing node %q", screenID, localID)
			}
		}

		for localID, node := range screen.Nodes {
			if node == nil {
				return fmt.Errorf("node %q on screen %q is null", localID, screenID)
			}
			if !node.Status.Valid() {
				return fmt.Errorf("node %q on screen %q has unknown status %q", localID, screenID, node.Status)
			}
			if node.Status.IsTerminal() && node.Interactivity == nil {
				return fmt.Errorf("node %q on screen %q is terminal but has no interactivity record", localID, screenID)
			}
			if node.Status == schemas.StatusPending && node.Interactivity != nil {
				return fmt.Errorf("node %q on screen %q is pending but has an interactivity record", localID, screenID)
			}
		}
	}

	if len(doc.Screens) > 0 && roots != 1 {
		return fmt.Errorf("document has %d root screens, want exactly 1", roots)
	}

	for i, edge := range doc.Edges {
		from, ok := doc.Screens[edge.FromScreen]
		if !ok {
			return fmt.Errorf("edge %d references missing screen %q", i, edge.FromScreen)
		}
		if _, ok := from.Nodes[edge.FromLocalID]; !ok {
			return fmt.Errorf("edge %d references missing node %s::%s", i, edge.FromScreen, edge.FromLocalID)
		}
		if _, ok := doc.Screens[edge.ToScreen]; !ok {
			return fmt.Errorf("edge %d references missing destination %q", i, edge.ToScreen)
		}
	}

	return nil
}
