package graph

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// ErrInvalidTransition is returned when a status change is attempted on a
// node that has already left pending. Terminal nodes are immutable; whether
// a repeat outcome is a bug or an idempotent no-op is the caller's call.
var ErrInvalidTransition = errors.New("invalid transition: node is not pending")

// ErrNotFound is returned when a screen or node reference does not resolve.
var ErrNotFound = errors.New("not found")

// Graph wraps one application's ExplorationGraph document with the indexes
// and mutation discipline the engine relies on. It is not safe for
// concurrent use: a session owns its graph exclusively.
type Graph struct {
	doc *schemas.ExplorationGraph
	// localIndex maps a bare local id to the set of screens containing it.
	// Diagnostics only: identity is always the (screen, local) pair.
	localIndex map[string]map[string]struct{}
	log        *zap.Logger
}

// New creates an empty graph for the named application.
func New(appName string, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	return &Graph{
		doc: &schemas.ExplorationGraph{
			AppName:     appName,
			CreatedAt:   now,
			LastUpdated: now,
			Screens:     make(map[string]*schemas.Screen),
			Edges:       []schemas.Edge{},
		},
		localIndex: make(map[string]map[string]struct{}),
		log:        logger.Named("graph"),
	}
}

// FromDocument wraps a deserialized document, validating its invariants and
// rebuilding everything derived: local ids inside nodes, discovery order
// where a hand-edited document dropped it, and the reverse index.
func FromDocument(doc *schemas.ExplorationGraph, logger *zap.Logger) (*Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	Rehydrate(doc)
	if err := Validate(doc); err != nil {
		return nil, err
	}

	g := &Graph{
		doc:        doc,
		localIndex: make(map[string]map[string]struct{}),
		log:        logger.Named("graph"),
	}
	for screenID, screen := range doc.Screens {
		for localID := range screen.Nodes {
			g.indexNode(screenID, localID)
		}
	}
	return g, nil
}

// Document returns the underlying document with its derived fields
// (stats, state count, timestamp) freshly recomputed. Callers persist the
// result; they must not hold onto it across further mutations.
func (g *Graph) Document() *schemas.ExplorationGraph {
	RecomputeStats(g.doc)
	g.doc.LastUpdated = time.Now().UTC()
	return g.doc
}

// AppName returns the application this graph belongs to.
func (g *Graph) AppName() string { return g.doc.AppName }

// Screen returns the screen with the given id.
func (g *Graph) Screen(id string) (*schemas.Screen, error) {
	screen, ok := g.doc.Screens[id]
	if !ok {
		return nil, fmt.Errorf("screen %q: %w", id, ErrNotFound)
	}
	return screen, nil
}

// HasScreen reports whether a screen with the given id exists.
func (g *Graph) HasScreen(id string) bool {
	_, ok := g.doc.Screens[id]
	return ok
}

// ScreenIDs returns every screen id in first-seen order.
func (g *Graph) ScreenIDs() []string {
	ids := make([]string, len(g.doc.ScreenOrder))
	copy(ids, g.doc.ScreenOrder)
	return ids
}

// AddRootScreen creates the root screen. A graph has exactly one.
func (g *Graph) AddRootScreen(imageRef schemas.ImageRef) (*schemas.Screen, error) {
	if g.HasScreen(schemas.RootScreenID) {
		return nil, fmt.Errorf("root screen already exists")
	}
	screen := &schemas.Screen{
		ID:         schemas.RootScreenID,
		Breadcrumb: schemas.RootScreenID,
		ImageRef:   imageRef,
		CreatedAt:  time.Now().UTC(),
		Nodes:      make(map[string]*schemas.Node),
	}
	g.doc.Screens[screen.ID] = screen
	g.doc.ScreenOrder = append(g.doc.ScreenOrder, screen.ID)
	g.log.Info("Root screen created", zap.String("app", g.doc.AppName))
	return screen, nil
}

// AddScreen creates a screen discovered by activating trigger. The parent is
// the screen the trigger lives on; the breadcrumb extends the parent's path.
func (g *Graph) AddScreen(id string, trigger schemas.NodeRef, triggerElement string, imageRef schemas.ImageRef) (*schemas.Screen, error) {
	if g.HasScreen(id) {
		return nil, fmt.Errorf("screen %q already exists", id)
	}
	parent, err := g.Screen(trigger.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("trigger screen: %w", err)
	}
	if _, ok := parent.Nodes[trigger.LocalID]; !ok {
		return nil, fmt.Errorf("trigger node %s: %w", trigger, ErrNotFound)
	}

	parentID := parent.ID
	screen := &schemas.Screen{
		ID:             id,
		Parent:         &parentID,
		TriggerNode:    &trigger,
		TriggerElement: triggerElement,
		Breadcrumb:     parent.Breadcrumb + " > " + triggerElement,
		ImageRef:       imageRef,
		CreatedAt:      time.Now().UTC(),
		Nodes:          make(map[string]*schemas.Node),
	}
	g.doc.Screens[id] = screen
	g.doc.ScreenOrder = append(g.doc.ScreenOrder, id)
	g.log.Info("Screen created",
		zap.String("screen", id),
		zap.String("parent", parentID),
		zap.String("trigger", trigger.String()))
	return screen, nil
}

// AddDetections commits one screen analysis: every merged element becomes a
// pending node with a local id unique within the screen. Returns the refs in
// discovery order.
func (g *Graph) AddDetections(screenID string, elems []schemas.RawElement, analysisTime time.Duration) ([]schemas.NodeRef, error) {
	screen, err := g.Screen(screenID)
	if err != nil {
		return nil, err
	}

	refs := make([]schemas.NodeRef, 0, len(elems))
	for _, el := range elems {
		localID := g.assignLocalID(screen, el.DisplayName)
		node := &schemas.Node{
			LocalID:          localID,
			BoundingBox:      el.BoundingBox,
			DisplayName:      el.DisplayName,
			BriefDescription: el.BriefDescription,
			ElementType:      el.ElementType,
			Enabled:          el.Enabled,
			Interactive:      el.Interactive,
			Provenance:       el.Provenance,
			Group:            el.Group,
			Status:           schemas.StatusPending,
		}
		screen.Nodes[localID] = node
		screen.NodeOrder = append(screen.NodeOrder, localID)
		g.indexNode(screenID, localID)
		refs = append(refs, schemas.NodeRef{ScreenID: screenID, LocalID: localID})
	}

	screen.TotalElements = len(screen.Nodes)
	screen.AnalysisTimeSeconds = analysisTime.Seconds()
	g.log.Debug("Detections committed",
		zap.String("screen", screenID),
		zap.Int("nodes", len(refs)))
	return refs, nil
}

// NodeByRef resolves a global reference.
func (g *Graph) NodeByRef(ref schemas.NodeRef) (*schemas.Node, error) {
	screen, err := g.Screen(ref.ScreenID)
	if err != nil {
		return nil, err
	}
	node, ok := screen.Nodes[ref.LocalID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", ref, ErrNotFound)
	}
	return node, nil
}

// ScreensContaining returns the ids of every screen holding a node with this
// local id, in no particular order. Local-id collisions across screens are
// normal; this exists for reporting, never for identity.
func (g *Graph) ScreensContaining(localID string) []string {
	set := g.localIndex[localID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Depth returns how many parent hops separate a screen from the root.
func (g *Graph) Depth(screenID string) int {
	depth := 0
	screen, ok := g.doc.Screens[screenID]
	for ok && screen.Parent != nil {
		depth++
		screen, ok = g.doc.Screens[*screen.Parent]
	}
	return depth
}

// Edges returns the recorded screen transitions in observation order.
func (g *Graph) Edges() []schemas.Edge {
	edges := make([]schemas.Edge, len(g.doc.Edges))
	copy(edges, g.doc.Edges)
	return edges
}

func (g *Graph) indexNode(screenID, localID string) {
	set, ok := g.localIndex[localID]
	if !ok {
		set = make(map[string]struct{})
		g.localIndex[localID] = set
	}
	set[screenID] = struct{}{}
}

// RecomputeStats rebuilds the derived counters from scratch by scanning
// every node. Stats are never incremented in place.
func RecomputeStats(doc *schemas.ExplorationGraph) {
	var stats schemas.ExplorationStats
	for _, screen := range doc.Screens {
		for _, node := range screen.Nodes {
			stats.Total++
			switch node.Status {
			case schemas.StatusPending:
				stats.Pending++
			case schemas.StatusExplored:
				stats.Explored++
			case schemas.StatusNonInteractive:
				stats.NonInteractive++
			}
		}
	}
	doc.Stats = stats
	doc.TotalStates = len(doc.Screens)
}

// Rehydrate restores the derived fields that are not serialized or that an
// out-of-band edit may have dropped: node local ids, node discovery order
// and screen discovery order.
func Rehydrate(doc *schemas.ExplorationGraph) {
	if doc.Screens == nil {
		doc.Screens = make(map[string]*schemas.Screen)
	}
	for screenID, screen := range doc.Screens {
		if screen == nil {
			continue
		}
		screen.ID = screenID
		for localID, node := range screen.Nodes {
			if node != nil {
				node.LocalID = localID
			}
		}
		screen.NodeOrder = reconcileOrder(screen.NodeOrder, screen.Nodes)
	}
	if len(doc.ScreenOrder) != len(doc.Screens) {
		doc.ScreenOrder = orderScreens(doc)
	}
}

// reconcileOrder repairs a discovery order against the node map by
// membership, not length: an out-of-band edit can rename a node and keep
// the count equal, and a stale id must never shadow a live node. Ids
// missing from the map are dropped; nodes missing from the order are
// appended in sorted-key order.
func reconcileOrder(order []string, nodes map[string]*schemas.Node) []string {
	seen := make(map[string]struct{}, len(order))
	repaired := make([]string, 0, len(nodes))
	for _, id := range order {
		if _, ok := nodes[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		repaired = append(repaired, id)
	}
	for _, id := range sortedKeys(nodes) {
		if _, ok := seen[id]; !ok {
			repaired = append(repaired, id)
		}
	}
	return repaired
}
