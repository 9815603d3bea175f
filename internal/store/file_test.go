package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// buildTestDocument assembles a small but fully featured graph: a root with
// one explored and one pending node, a destination screen, and an edge.
func buildTestDocument(t *testing.T) *schemas.ExplorationGraph {
	t.Helper()

	g := graph.New("calculator", zaptest.NewLogger(t))
	_, err := g.AddRootScreen("img-root")
	require.NoError(t, err)
	refs, err := g.AddDetections(schemas.RootScreenID, []schemas.RawElement{
		{DisplayName: "View", ElementType: "text", Interactive: true, Enabled: true},
		{DisplayName: "Help", ElementType: "text", Interactive: true, Enabled: true},
	}, 1500*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, g.ApplyOutcome(refs[0], graph.ChangedTo("root_view_click"), "img-menu"))
	return g.Document()
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestFileStore(t)
	doc := buildTestDocument(t)

	require.NoError(t, s.Save(ctx, doc))

	loaded, err := s.Load(ctx, "calculator")
	require.NoError(t, err)

	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Errorf("document changed across save/load (-saved +loaded):\n%s", diff)
	}

	// Local ids live only in map keys on disk but must be rehydrated.
	assert.Equal(t, "view", loaded.Screens["root"].Nodes["view"].LocalID)
}

func TestFileStoreSaveRecomputesStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestFileStore(t)
	doc := buildTestDocument(t)

	// Hand-maintained stats are ignored: persist rebuilds them by scanning.
	doc.Stats = schemas.ExplorationStats{Pending: 99, Total: 99}
	require.NoError(t, s.Save(ctx, doc))

	loaded, err := s.Load(ctx, "calculator")
	require.NoError(t, err)
	assert.Equal(t, schemas.ExplorationStats{
		Pending:  1,
		Explored: 1,
		Total:    2,
	}, loaded.Stats)
	assert.Equal(t, 2, loaded.TotalStates)
}

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()
	s := newTestFileStore(t)

	_, err := s.Load(context.Background(), "never-explored")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestFileStore(t)

	ok, err := s.Exists(ctx, "calculator")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, buildTestDocument(t)))
	ok, err = s.Exists(ctx, "calculator")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestFileStore(t)

	t.Run("unparseable json", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, os.WriteFile(s.Path("broken"), []byte("{not json"), 0o644))

		_, err := s.Load(ctx, "broken")
		var malformed *MalformedDocumentError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "broken", malformed.App)
	})

	t.Run("structurally invalid document", func(t *testing.T) {
		t.Parallel()
		// Parses fine but has two roots, which validation rejects.
		doc := buildTestDocument(t)
		doc.AppName = "tworoots"
		doc.Screens["root_view_click"].Parent = nil
		doc.Screens["root_view_click"].TriggerNode = nil

		raw, err := json.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.Path("tworoots"), raw, 0o644))

		_, err = s.Load(ctx, "tworoots")
		var malformed *MalformedDocumentError
		require.ErrorAs(t, err, &malformed)
	})
}

// TestFileStoreFailedWriteKeepsPrevious verifies the atomic-replace
// discipline: when a write cannot complete, the previous document survives.
func TestFileStoreFailedWriteKeepsPrevious(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	doc := buildTestDocument(t)
	require.NoError(t, s.Save(ctx, doc))

	// Make the directory unwritable so the temp file cannot be created.
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	doc.Screens["root"].Nodes["help"].Status = schemas.StatusNonInteractive
	doc.Screens["root"].Nodes["help"].Interactivity = &schemas.Interactivity{Type: "none"}
	err = s.Save(ctx, doc)
	require.Error(t, err)

	require.NoError(t, os.Chmod(dir, 0o755))
	loaded, loadErr := s.Load(ctx, "calculator")
	require.NoError(t, loadErr, "previous document must still parse after a failed write")
	assert.Equal(t, schemas.StatusPending, loaded.Screens["root"].Nodes["help"].Status)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, buildTestDocument(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file %s left behind", e.Name())
	}
	assert.FileExists(t, filepath.Join(dir, "calculator.json"))
}
