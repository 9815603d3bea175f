package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

func newTestMerger(t *testing.T) *Merger {
	t.Helper()
	return New(DefaultVerticalTolerancePx, zaptest.NewLogger(t))
}

func element(name string, box schemas.BoundingBox) schemas.RawElement {
	return schemas.RawElement{
		DisplayName:      name,
		BriefDescription: name + " element",
		BoundingBox:      box,
		ElementType:      "text",
		Enabled:          true,
		Interactive:      true,
	}
}

func glyph(name string, box schemas.BoundingBox) schemas.RawElement {
	return schemas.RawElement{
		DisplayName: name,
		BoundingBox: box,
		ElementType: "icon",
	}
}

func TestMergeNoGlyphsIsIdentity(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	in := []schemas.RawElement{
		element("File", schemas.BoundingBox{0, 0, 40, 20}),
		element("Edit", schemas.BoundingBox{50, 0, 90, 20}),
	}
	out := m.Merge(in)
	assert.Equal(t, in, out, "a glyph-free list passes through unchanged")
}

func TestMergeEmptyInput(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)
	assert.Empty(t, m.Merge(nil))
	assert.Empty(t, m.Merge([]schemas.RawElement{}))
}

// The canonical deterministic case: element A=[0,0,50,20], glyph ">" at
// [52,2,62,18] fold into one element [0,0,62,20] named "A >".
func TestMergeDeterministicExample(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	out := m.Merge([]schemas.RawElement{
		element("A", schemas.BoundingBox{0, 0, 50, 20}),
		glyph(">", schemas.BoundingBox{52, 2, 62, 18}),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "A >", out[0].DisplayName)
	assert.Equal(t, schemas.BoundingBox{0, 0, 62, 20}, out[0].BoundingBox)
	assert.Contains(t, out[0].BriefDescription, ExpandableSuffix)
}

func TestMergeUnmatchedGlyphStaysStandalone(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	// Only element is to the glyph's right: no candidate fully to the left.
	out := m.Merge([]schemas.RawElement{
		glyph(">", schemas.BoundingBox{0, 0, 10, 16}),
		element("Menu", schemas.BoundingBox{20, 0, 80, 16}),
	})

	require.Len(t, out, 2, "an unowned indicator is a fallback, not an error")
	assert.Equal(t, ">", out[0].DisplayName)
	assert.Equal(t, "Menu", out[1].DisplayName)
}

func TestMergeVerticalTolerance(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	t.Run("center offset at the tolerance merges", func(t *testing.T) {
		t.Parallel()
		// Element center y=10, glyph center y=40: exactly 30px apart.
		out := m.Merge([]schemas.RawElement{
			element("Row", schemas.BoundingBox{0, 0, 50, 20}),
			glyph(">", schemas.BoundingBox{60, 32, 70, 48}),
		})
		require.Len(t, out, 1)
		assert.Equal(t, "Row >", out[0].DisplayName)
	})

	t.Run("center offset past the tolerance does not merge", func(t *testing.T) {
		t.Parallel()
		// Centers 31px apart.
		out := m.Merge([]schemas.RawElement{
			element("Row", schemas.BoundingBox{0, 0, 50, 20}),
			glyph(">", schemas.BoundingBox{60, 33, 70, 49}),
		})
		assert.Len(t, out, 2)
	})
}

func TestMergeNoHorizontalCap(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	// A huge horizontal gap is still a merge as long as centers line up.
	out := m.Merge([]schemas.RawElement{
		element("Far", schemas.BoundingBox{0, 0, 50, 20}),
		glyph(">", schemas.BoundingBox{5000, 2, 5012, 18}),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Far >", out[0].DisplayName)
}

func TestMergePicksNearestCandidate(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	out := m.Merge([]schemas.RawElement{
		element("Far", schemas.BoundingBox{0, 0, 30, 20}),
		element("Near", schemas.BoundingBox{40, 0, 90, 20}),
		glyph(">", schemas.BoundingBox{95, 2, 105, 18}),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "Far", out[0].DisplayName)
	assert.Equal(t, "Near >", out[1].DisplayName)
}

func TestMergeTouchingEdgesCount(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	// Right edge exactly at the glyph's left edge: "at or left of" merges.
	out := m.Merge([]schemas.RawElement{
		element("Snug", schemas.BoundingBox{0, 0, 50, 20}),
		glyph(">", schemas.BoundingBox{50, 0, 60, 20}),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Snug >", out[0].DisplayName)
}

func TestMergeMultipleGlyphsOneOwner(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	// Both glyphs see the same pre-merge list, so both pick "Label" even
	// though the first merge has already widened it in the output.
	out := m.Merge([]schemas.RawElement{
		element("Label", schemas.BoundingBox{0, 0, 50, 20}),
		glyph(">", schemas.BoundingBox{55, 2, 65, 18}),
		glyph("»", schemas.BoundingBox{70, 2, 80, 18}),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "Label > »", out[0].DisplayName)
	assert.Equal(t, schemas.BoundingBox{0, 0, 80, 20}, out[0].BoundingBox)
	// The suffix is appended once, not per glyph.
	assert.Equal(t, "Label element (expandable)", out[0].BriefDescription)
}

func TestMergeGlyphNeverOwnsGlyph(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	// Two glyphs side by side and no regular element: both stay.
	out := m.Merge([]schemas.RawElement{
		glyph(">", schemas.BoundingBox{0, 0, 10, 16}),
		glyph(">", schemas.BoundingBox{20, 0, 30, 16}),
	})
	assert.Len(t, out, 2)
}

func TestMergePreservesOrder(t *testing.T) {
	t.Parallel()
	m := newTestMerger(t)

	out := m.Merge([]schemas.RawElement{
		element("One", schemas.BoundingBox{0, 0, 30, 20}),
		glyph(">", schemas.BoundingBox{32, 2, 40, 18}),
		element("Two", schemas.BoundingBox{0, 40, 30, 60}),
		element("Three", schemas.BoundingBox{0, 80, 30, 100}),
	})

	require.Len(t, out, 3)
	assert.Equal(t, "One >", out[0].DisplayName)
	assert.Equal(t, "Two", out[1].DisplayName)
	assert.Equal(t, "Three", out[2].DisplayName)
}

func TestIsIndicatorGlyph(t *testing.T) {
	t.Parallel()
	assert.True(t, IsIndicatorGlyph(">"))
	assert.True(t, IsIndicatorGlyph(" ▶ "), "surrounding whitespace is ignored")
	assert.False(t, IsIndicatorGlyph(">>"))
	assert.False(t, IsIndicatorGlyph("Next >"))
	assert.False(t, IsIndicatorGlyph(""))
}
