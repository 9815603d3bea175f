package schemas

// -- Detection Models --
// These types sit on the boundary between the external vision/text detector
// and the graph: raw detections in, merged nodes out.

// BoundingBox is a pixel-space rectangle in the owning screen's image,
// serialized as [x1, y1, x2, y2].
type BoundingBox [4]int

func (b BoundingBox) Left() int   { return b[0] }
func (b BoundingBox) Top() int    { return b[1] }
func (b BoundingBox) Right() int  { return b[2] }
func (b BoundingBox) Bottom() int { return b[3] }

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() int { return (b[0] + b[2]) / 2 }

// CenterY returns the vertical center of the box.
func (b BoundingBox) CenterY() int { return (b[1] + b[3]) / 2 }

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{
		min(b[0], other[0]),
		min(b[1], other[1]),
		max(b[2], other[2]),
		max(b[3], other[3]),
	}
}

// ImageRef is an opaque handle to a captured bitmap. The capture collaborator
// owns the bytes; the graph only stores the reference.
type ImageRef string

// RawElement is one labeled detection as emitted by the external detector,
// before indicator-glyph merging and before it is assigned a local id.
type RawElement struct {
	BoundingBox      BoundingBox   `json:"boundingBox"`
	DisplayName      string        `json:"displayName"`
	BriefDescription string        `json:"briefDescription"`
	ElementType      string        `json:"elementType"`
	Enabled          bool          `json:"enabled"`
	Interactive      bool          `json:"interactive"`
	Group            string        `json:"group"`
	Provenance       ProvenanceIDs `json:"provenanceIds"`
}
