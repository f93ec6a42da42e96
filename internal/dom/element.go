// Package dom implements the recursive traversal of a rendered element tree
// into a flat collection of element records with stable content-hash
// identities and synthesized CSS selectors.
//
// The package is deliberately backend-agnostic: it walks anything that
// implements Element, so the engine is exercised against synthetic trees in
// tests and against live CDP element handles in production.
package dom

import (
	"context"
	"errors"
)

// ErrStale marks an element reference that no longer resolves to a node in
// the live document. Implementations wrap it so callers can test with
// errors.Is.
var ErrStale = errors.New("stale element reference")

// Rect is a bounding box in CSS pixels, before pixel-ratio scaling.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a handle onto one node of a rendered document. Every method may
// fail with an error wrapping ErrStale once the underlying node has been
// removed from the document.
type Element interface {
	// OuterHTML returns the serialized markup of the node, the input to its
	// content-hash identity.
	OuterHTML(ctx context.Context) (string, error)
	// TagName returns the lower-case tag name.
	TagName(ctx context.Context) (string, error)
	// Attribute returns the value of the named attribute, or "" if unset.
	Attribute(ctx context.Context, name string) (string, error)
	// Visible reports whether the node is currently displayed.
	Visible(ctx context.Context) (bool, error)
	// Position returns the computed CSS "position" property.
	Position(ctx context.Context) (string, error)
	// Rect returns the bounding box; absolute selects document coordinates
	// over viewport-relative ones.
	Rect(ctx context.Context, absolute bool) (Rect, error)
	// Children returns handles for the node's element children, in order.
	Children(ctx context.Context) ([]Element, error)
}
