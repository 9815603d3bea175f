// Package merge post-processes one screen's raw detections, folding stray
// directional-indicator glyphs (chevrons, carets, arrows) into the element
// they decorate. Detectors routinely report an "expand" glyph as its own
// element sitting just right of the label it belongs to.
package merge

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// DefaultVerticalTolerancePx bounds how far apart the vertical centers of a
// glyph and its owner may be.
const DefaultVerticalTolerancePx = 30

// ExpandableSuffix tags a merged element's description so the merge is
// visible downstream.
const ExpandableSuffix = "(expandable)"

// indicatorGlyphs is the fixed alphabet of directional indicators. Matching
// is by exact display name; anything else is a regular element.
var indicatorGlyphs = map[string]struct{}{
	">": {}, "<": {}, "^": {}, "v": {},
	"›": {}, "‹": {}, "ˆ": {}, "˅": {},
	"→": {}, "←": {}, "↑": {}, "↓": {},
	"▶": {}, "◀": {}, "▲": {}, "▼": {},
	"»": {}, "«": {},
}

// IsIndicatorGlyph reports whether a display name is exactly one of the
// known directional indicators.
func IsIndicatorGlyph(displayName string) bool {
	_, ok := indicatorGlyphs[strings.TrimSpace(displayName)]
	return ok
}

// Merger folds indicator glyphs into their owning elements.
type Merger struct {
	tolerancePx int
	log         *zap.Logger
}

// New creates a Merger. A non-positive tolerance falls back to the default.
func New(tolerancePx int, logger *zap.Logger) *Merger {
	if tolerancePx <= 0 {
		tolerancePx = DefaultVerticalTolerancePx
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{tolerancePx: tolerancePx, log: logger.Named("merge")}
}

// Merge runs a single pass over the detections. For every indicator glyph it
// finds the nearest element fully to its left whose vertical center is
// within tolerance, unions the bounding boxes, concatenates the glyph onto
// the owner's name and tags the description. Owner geometry is always
// evaluated against the pre-merge list, so earlier merges in the same pass
// do not shift later candidate decisions. Indicators with no candidate stay
// in the output as standalone elements.
func (m *Merger) Merge(elems []schemas.RawElement) []schemas.RawElement {
	if len(elems) == 0 {
		return elems
	}

	// Work on a copy; candidate geometry comes from the original slice.
	out := make([]schemas.RawElement, len(elems))
	copy(out, elems)
	removed := make([]bool, len(elems))

	for i, el := range elems {
		if !IsIndicatorGlyph(el.DisplayName) {
			continue
		}

		owner := m.findOwner(elems, i)
		if owner < 0 {
			m.log.Debug("Indicator glyph has no owner, keeping standalone",
				zap.String("glyph", el.DisplayName),
				zap.Ints("box", el.BoundingBox[:]))
			continue
		}

		out[owner].BoundingBox = out[owner].BoundingBox.Union(el.BoundingBox)
		out[owner].DisplayName = out[owner].DisplayName + " " + strings.TrimSpace(el.DisplayName)
		if !strings.HasSuffix(out[owner].BriefDescription, ExpandableSuffix) {
			out[owner].BriefDescription = strings.TrimSpace(out[owner].BriefDescription + " " + ExpandableSuffix)
		}
		removed[i] = true

		m.log.Debug("Merged indicator glyph into element",
			zap.String("glyph", el.DisplayName),
			zap.String("owner", elems[owner].DisplayName))
	}

	merged := out[:0]
	for i := range out {
		if !removed[i] {
			merged = append(merged, out[i])
		}
	}
	return merged
}

// findOwner returns the index of the nearest element whose right edge lies
// at or left of the indicator's left edge and whose vertical center is
// within tolerance, or -1. Distance is the horizontal gap only; there is no
// horizontal cap.
func (m *Merger) findOwner(elems []schemas.RawElement, indicator int) int {
	ind := elems[indicator].BoundingBox
	best := -1
	bestGap := 0

	for j, candidate := range elems {
		if j == indicator || IsIndicatorGlyph(candidate.DisplayName) {
			continue
		}
		box := candidate.BoundingBox
		gap := ind.Left() - box.Right()
		if gap < 0 {
			continue // not fully to the left
		}
		dy := box.CenterY() - ind.CenterY()
		if dy < 0 {
			dy = -dy
		}
		if dy > m.tolerancePx {
			continue
		}
		if best < 0 || gap < bestGap {
			best = j
			bestGap = gap
		}
	}
	return best
}
