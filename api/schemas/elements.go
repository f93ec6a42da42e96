package schemas

// ElementRecord is one row of the structured DOM extraction output.
//
// ID is a content hash of the element's serialized markup; two DOM references
// whose outerHTML hashes identically are treated as the same node. ParentID,
// when set, always refers to a record emitted earlier in the same traversal
// pass. BBox is [x1, y1, x2, y2] in pixels, already scaled by the device
// pixel ratio; absolute document coordinates for full-page captures,
// viewport-relative otherwise.
type ElementRecord struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`

	BBox        [4]int `json:"bbox"`
	TagName     string `json:"tag_name"`
	Label       string `json:"label"`
	Position    string `json:"position"`
	IsVisible   bool   `json:"is_visible"`
	CSSSelector string `json:"css_selector"`
}
