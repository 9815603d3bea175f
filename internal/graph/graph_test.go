package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// newTestGraph builds a graph with a root screen holding two pending nodes,
// the starting point most tests share.
func newTestGraph(t *testing.T) (*Graph, []schemas.NodeRef) {
	t.Helper()

	g := New("calculator", zaptest.NewLogger(t))
	_, err := g.AddRootScreen("img-root")
	require.NoError(t, err)

	refs, err := g.AddDetections(schemas.RootScreenID, []schemas.RawElement{
		{DisplayName: "View", BoundingBox: schemas.BoundingBox{10, 10, 60, 30}, ElementType: "text", Interactive: true, Enabled: true},
		{DisplayName: "Help", BoundingBox: schemas.BoundingBox{70, 10, 120, 30}, ElementType: "text", Interactive: true, Enabled: true},
	}, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	return g, refs
}

func TestAddRootScreen(t *testing.T) {
	t.Parallel()
	g := New("app", zaptest.NewLogger(t))

	screen, err := g.AddRootScreen("img-1")
	require.NoError(t, err)
	assert.Equal(t, schemas.RootScreenID, screen.ID)
	assert.Nil(t, screen.Parent)
	assert.Nil(t, screen.TriggerNode)

	_, err = g.AddRootScreen("img-2")
	assert.Error(t, err, "a graph has exactly one root screen")
}

func TestAddDetectionsAssignsUniqueLocalIDs(t *testing.T) {
	t.Parallel()
	g := New("app", zaptest.NewLogger(t))
	_, err := g.AddRootScreen("img")
	require.NoError(t, err)

	refs, err := g.AddDetections(schemas.RootScreenID, []schemas.RawElement{
		{DisplayName: "Save"},
		{DisplayName: "Save"},
		{DisplayName: "Save!"},
		{DisplayName: "???"},
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "save", refs[0].LocalID)
	assert.Equal(t, "save_2", refs[1].LocalID)
	assert.Equal(t, "save_3", refs[2].LocalID, "punctuation-only difference still collides after slugging")
	assert.Equal(t, "element", refs[3].LocalID, "unsluggable names fall back to a generic id")

	screen, err := g.Screen(schemas.RootScreenID)
	require.NoError(t, err)
	assert.Equal(t, 4, screen.TotalElements)
	assert.Equal(t, []string{"save", "save_2", "save_3", "element"}, screen.NodeOrder)
	assert.InDelta(t, 1.0, screen.AnalysisTimeSeconds, 1e-9)
}

func TestLocalIDCollisionsAcrossScreensAreDistinct(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	require.NoError(t, g.ApplyOutcome(refs[0], ChangedTo("view_menu"), "img-menu"))
	menuRefs, err := g.AddDetections("view_menu", []schemas.RawElement{
		{DisplayName: "Help"}, // collides with root's "help" local id
	}, time.Second)
	require.NoError(t, err)
	require.Equal(t, "help", menuRefs[0].LocalID)

	rootHelp, err := g.NodeByRef(schemas.NodeRef{ScreenID: "root", LocalID: "help"})
	require.NoError(t, err)
	menuHelp, err := g.NodeByRef(schemas.NodeRef{ScreenID: "view_menu", LocalID: "help"})
	require.NoError(t, err)
	assert.NotSame(t, rootHelp, menuHelp, "equal local ids on different screens are distinct nodes")

	assert.ElementsMatch(t, []string{"root", "view_menu"}, g.ScreensContaining("help"))
}

func TestApplyOutcomeChanged(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	err := g.ApplyOutcome(refs[0], ChangedTo("root_view_click"), "img-2")
	require.NoError(t, err)

	node, err := g.NodeByRef(refs[0])
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusExplored, node.Status)
	require.NotNil(t, node.Interactivity)
	require.NotNil(t, node.Interactivity.ClickResult)
	assert.Equal(t, "root_view_click", *node.Interactivity.ClickResult)
	assert.Equal(t, "text_click", node.Interactivity.Type)

	dest, err := g.Screen("root_view_click")
	require.NoError(t, err)
	require.NotNil(t, dest.Parent)
	assert.Equal(t, "root", *dest.Parent)
	require.NotNil(t, dest.TriggerNode)
	assert.Equal(t, refs[0], *dest.TriggerNode)
	assert.Equal(t, "root > View", dest.Breadcrumb)
	assert.Equal(t, 1, g.Depth("root_view_click"))

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, schemas.Edge{FromScreen: "root", FromLocalID: "view", ToScreen: "root_view_click"}, edges[0])
}

func TestApplyOutcomeDerivesDestinationID(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	// Empty destination id: the graph names the screen after the trigger.
	require.NoError(t, g.ApplyOutcome(refs[0], ChangedTo(""), "img-2"))
	assert.True(t, g.HasScreen("view_click"))
}

func TestApplyOutcomeUnchanged(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	require.NoError(t, g.ApplyOutcome(refs[1], Unchanged(), ""))

	node, err := g.NodeByRef(refs[1])
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusNonInteractive, node.Status)
	require.NotNil(t, node.Interactivity)
	assert.Nil(t, node.Interactivity.ClickResult)
	assert.Empty(t, g.Edges(), "no edge for an activation that changed nothing")
}

func TestApplyOutcomeManualSkip(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	require.NoError(t, g.ApplyOutcome(refs[0], ManualSkip("destructive: would delete data"), ""))

	node, err := g.NodeByRef(refs[0])
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusManualSkip, node.Status)
	require.NotNil(t, node.Interactivity)
	require.NotNil(t, node.Interactivity.ManualDescription)
	assert.Equal(t, "destructive: would delete data", *node.Interactivity.ManualDescription)
}

func TestApplyOutcomeOnTerminalNodeFails(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)

	require.NoError(t, g.ApplyOutcome(refs[0], Unchanged(), ""))

	for _, outcome := range []Outcome{Unchanged(), ChangedTo("x"), ManualSkip("late")} {
		err := g.ApplyOutcome(refs[0], outcome, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}

	// The node is untouched by the failed attempts.
	node, err := g.NodeByRef(refs[0])
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusNonInteractive, node.Status)
}

func TestApplyOutcomeUnknownRef(t *testing.T) {
	t.Parallel()
	g, _ := newTestGraph(t)

	err := g.ApplyOutcome(schemas.NodeRef{ScreenID: "root", LocalID: "ghost"}, Unchanged(), "")
	assert.ErrorIs(t, err, ErrNotFound)

	err = g.ApplyOutcome(schemas.NodeRef{ScreenID: "ghost", LocalID: "view"}, Unchanged(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecomputeStats(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)
	require.NoError(t, g.ApplyOutcome(refs[0], ChangedTo("root_view_click"), "img-2"))
	require.NoError(t, g.ApplyOutcome(refs[1], Unchanged(), ""))

	doc := g.Document()
	assert.Equal(t, schemas.ExplorationStats{
		Pending:        0,
		Explored:       1,
		NonInteractive: 1,
		Total:          2,
	}, doc.Stats)
	assert.Equal(t, 2, doc.TotalStates)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func(t *testing.T) *schemas.ExplorationGraph {
		g, refs := newTestGraph(t)
		require.NoError(t, g.ApplyOutcome(refs[0], ChangedTo("root_view_click"), "img-2"))
		return g.Document()
	}

	t.Run("accepts a well-formed document", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, Validate(valid(t)))
	})

	t.Run("rejects a second root", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Screens["root_view_click"].Parent = nil
		err := Validate(doc)
		require.Error(t, err)
	})

	t.Run("rejects a dangling parent", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		missing := "nowhere"
		doc.Screens["root_view_click"].Parent = &missing
		assert.Error(t, Validate(doc))
	})

	t.Run("rejects a dangling edge", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Edges = append(doc.Edges, schemas.Edge{FromScreen: "root", FromLocalID: "ghost", ToScreen: "root"})
		assert.Error(t, Validate(doc))
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Screens["root"].Nodes["help"].Status = "done"
		assert.Error(t, Validate(doc))
	})

	t.Run("rejects a terminal node without interactivity", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Screens["root"].Nodes["view"].Interactivity = nil
		assert.Error(t, Validate(doc))
	})

	t.Run("rejects a node order naming a missing node", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Screens["root"].NodeOrder = []string{"view", "ghost"}
		assert.Error(t, Validate(doc))
	})

	t.Run("rejects a node order shorter than the node set", func(t *testing.T) {
		t.Parallel()
		doc := valid(t)
		doc.Screens["root"].NodeOrder = []string{"view"}
		assert.Error(t, Validate(doc))
	})
}

func TestRehydrateReconcilesRenamedNode(t *testing.T) {
	t.Parallel()
	g, _ := newTestGraph(t)
	doc := g.Document()

	// An out-of-band edit renames a node key but leaves the recorded order
	// untouched; the counts still match, so only membership can catch it.
	root := doc.Screens[schemas.RootScreenID]
	root.Nodes["view_menu"] = root.Nodes["view"]
	delete(root.Nodes, "view")
	require.Equal(t, []string{"view", "help"}, root.NodeOrder)

	reloaded, err := FromDocument(doc, zaptest.NewLogger(t))
	require.NoError(t, err)

	screen, err := reloaded.Screen(schemas.RootScreenID)
	require.NoError(t, err)
	assert.Equal(t, []string{"help", "view_menu"}, screen.NodeOrder,
		"the stale id is dropped and the renamed node appended")

	node, err := reloaded.NodeByRef(schemas.NodeRef{ScreenID: schemas.RootScreenID, LocalID: "view_menu"})
	require.NoError(t, err)
	assert.Equal(t, "view_menu", node.LocalID)
}

func TestRehydrateDropsDuplicateOrderEntries(t *testing.T) {
	t.Parallel()
	g, _ := newTestGraph(t)
	doc := g.Document()
	doc.Screens[schemas.RootScreenID].NodeOrder = []string{"view", "view", "help"}

	Rehydrate(doc)
	assert.Equal(t, []string{"view", "help"}, doc.Screens[schemas.RootScreenID].NodeOrder)
}

func TestFromDocumentRehydrates(t *testing.T) {
	t.Parallel()
	g, refs := newTestGraph(t)
	require.NoError(t, g.ApplyOutcome(refs[0], ChangedTo("root_view_click"), "img-2"))
	doc := g.Document()

	// Simulate a load: local ids and derived orders are gone.
	for _, screen := range doc.Screens {
		for _, node := range screen.Nodes {
			node.LocalID = ""
		}
	}
	doc.ScreenOrder = nil

	loaded, err := FromDocument(doc, zaptest.NewLogger(t))
	require.NoError(t, err)

	node, err := loaded.NodeByRef(refs[0])
	require.NoError(t, err)
	assert.Equal(t, "view", node.LocalID)
	assert.Equal(t, "root", loaded.ScreenIDs()[0], "root is first in reconstructed order")
	assert.ElementsMatch(t, []string{"root"}, loaded.ScreensContaining("view"))
}

func TestSlugify(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		in, want string
	}{
		{"View", "view"},
		{"Scientific Mode", "scientific_mode"},
		{"  A -- B  ", "a_b"},
		{"1st Item!", "1st_item"},
		{"???", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Slugify(tc.in), "Slugify(%q)", tc.in)
	}
}

func TestDeriveScreenID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "view_click", DeriveScreenID("View"))
	assert.Equal(t, "screen_click", DeriveScreenID("!!!"))
}
