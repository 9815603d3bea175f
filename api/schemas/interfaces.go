package schemas

import "context"

// -- Collaborator Contracts --
// The engine drives exploration through these interfaces and never depends
// on how they are implemented. Capture, detection and input injection are
// external concerns; internal/collab ships reference implementations for
// web targets.

// Capturer produces an opaque handle to the current screen's bitmap.
type Capturer interface {
	Capture(ctx context.Context) (ImageRef, error)
}

// Detector turns a captured bitmap into a flat list of labeled detections.
type Detector interface {
	Detect(ctx context.Context, image ImageRef) ([]RawElement, error)
}

// ActivationResult is the observed outcome of activating a node.
type ActivationResult struct {
	// Changed reports whether the activation produced a new screen.
	Changed bool
	// DestinationScreenID names the resulting screen when Changed is true.
	DestinationScreenID string
}

// Activator performs the input injection for one node and observes whether
// the screen changed. Exactly one activation is in flight at a time; the
// engine will not schedule further work until the result is known.
type Activator interface {
	Activate(ctx context.Context, ref NodeRef, node *Node) (ActivationResult, error)
}

// SelectionPolicy picks the next node to explore from the pending set.
// Returning ok=false signals that exploration is complete. Implementations
// may be automatic orderings or interactive operator prompts.
type SelectionPolicy interface {
	Select(pending []NodeRef) (ref NodeRef, ok bool)
}
