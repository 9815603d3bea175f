package schemas

import "time"

// -- Core Graph Models --
// These types represent the exploration state graph exactly as it is
// persisted: one document per target application.

// NodeStatus tracks where a node is in its exploration lifecycle.
type NodeStatus string

const (
	StatusPending        NodeStatus = "pending"
	StatusExplored       NodeStatus = "explored"
	StatusNonInteractive NodeStatus = "non_interactive"
	StatusManualSkip     NodeStatus = "manual_skip"
)

// IsTerminal reports whether the status can never change again. Every status
// except pending is terminal; a node is evaluated at most once.
func (s NodeStatus) IsTerminal() bool {
	return s == StatusExplored || s == StatusNonInteractive || s == StatusManualSkip
}

// Valid reports whether s is one of the four known statuses.
func (s NodeStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// NodeRef is the composite identity of a node anywhere in the graph.
// A bare local id is never a valid identity: local ids are only unique
// within their owning screen, and collisions across screens are expected.
type NodeRef struct {
	ScreenID string `json:"screenId"`
	LocalID  string `json:"localId"`
}

// String renders the reference for logs and breadcrumbs. The encoding is a
// display convenience, not an identity format.
func (r NodeRef) String() string {
	return r.ScreenID + "::" + r.LocalID
}

// ProvenanceIDs carries the detector-lineage identifiers for a node. The
// three sources are a closed set, so this is a fixed record rather than a
// map. These are retained for debugging only and never participate in
// identity or equality decisions.
type ProvenanceIDs struct {
	Primary *string `json:"primary"`
	Visual  *string `json:"visual"`
	Text    *string `json:"text"`
}

// Interactivity records the observed outcome of activating a node. It is
// populated exactly once, when the node leaves pending.
type Interactivity struct {
	// ClickResult is the destination screen id when activation changed the
	// screen, nil otherwise.
	ClickResult       *string `json:"clickResult"`
	Type              string  `json:"type,omitempty"`
	ManualDescription *string `json:"manualDescription,omitempty"`
}

// Node is one detected interactive or informational element on a screen.
type Node struct {
	// LocalID duplicates the node's key in Screen.Nodes. It is rehydrated
	// from the map key on load rather than serialized twice.
	LocalID          string         `json:"-"`
	BoundingBox      BoundingBox    `json:"boundingBox"`
	DisplayName      string         `json:"displayName"`
	BriefDescription string         `json:"briefDescription"`
	ElementType      string         `json:"elementType"`
	Enabled          bool           `json:"enabled"`
	Interactive      bool           `json:"interactive"`
	Provenance       ProvenanceIDs  `json:"provenanceIds"`
	Group            string         `json:"group"`
	Status           NodeStatus     `json:"status"`
	Interactivity    *Interactivity `json:"interactivity,omitempty"`
}

// Screen is one distinct observed configuration of the target UI.
type Screen struct {
	ID string `json:"id"`
	// Parent is nil only for the root screen.
	Parent *string `json:"parent"`
	// TriggerNode references the node whose activation first revealed this
	// screen; nil for the root screen.
	TriggerNode         *NodeRef         `json:"triggerNode"`
	TriggerElement      string           `json:"triggerElement,omitempty"`
	Breadcrumb          string           `json:"breadcrumb"`
	ImageRef            ImageRef         `json:"imageRef"`
	CreatedAt           time.Time        `json:"createdAt"`
	AnalysisTimeSeconds float64          `json:"analysisTimeSeconds"`
	TotalElements       int              `json:"totalElements"`
	Nodes               map[string]*Node `json:"nodes"`
	// NodeOrder preserves discovery order for scheduling; Go maps do not.
	NodeOrder []string `json:"nodeOrder,omitempty"`
}

// Edge records an observed screen transition: activating
// (FromScreen, FromLocalID) led to ToScreen.
type Edge struct {
	FromScreen  string `json:"fromScreen"`
	FromLocalID string `json:"fromLocalId"`
	ToScreen    string `json:"toScreen"`
}

// ExplorationStats are derived counts over every node in the graph. They are
// recomputed on every persist and never hand-maintained.
type ExplorationStats struct {
	Pending        int `json:"pending"`
	Explored       int `json:"explored"`
	NonInteractive int `json:"nonInteractive"`
	Total          int `json:"total"`
}

// ExplorationGraph is the root aggregate: everything known about one target
// application's screen space.
type ExplorationGraph struct {
	AppName     string             `json:"appName"`
	CreatedAt   time.Time          `json:"createdAt"`
	LastUpdated time.Time          `json:"lastUpdated"`
	TotalStates int                `json:"totalStates"`
	Stats       ExplorationStats   `json:"explorationStats"`
	Screens     map[string]*Screen `json:"screens"`
	Edges       []Edge             `json:"edges"`
	// ScreenOrder preserves first-seen order across persists.
	ScreenOrder []string `json:"screenOrder,omitempty"`
}

// RootScreenID is the conventional id of the screen with no parent.
const RootScreenID = "root"
