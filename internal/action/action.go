// Package action models the declarative pre-capture instructions (scrolls and
// clicks) that a capture request can carry. Each action is an immutable value
// that compiles to a single page-side JavaScript statement.
package action

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind discriminates the closed set of action variants.
type Kind string

const (
	KindScrollDown   Kind = "scroll_down"
	KindScrollUp     Kind = "scroll_up"
	KindScrollToTop  Kind = "scroll_to_top"
	KindClickAt      Kind = "click_at"
	KindClickElement Kind = "click_element"
)

// Action is a tagged variant; which fields are meaningful depends on Kind.
//
//   - scroll_down / scroll_up: HowMuch pixels, optionally scoped to
//     ElementQuerySelector (window otherwise).
//   - scroll_to_top: no fields.
//   - click_at: absolute ClickX/ClickY page coordinates.
//   - click_element: at least one of ElementID, ElementClass,
//     ElementQuerySelector; precedence is id > class > selector.
type Action struct {
	Kind Kind `json:"kind"`

	HowMuch              int    `json:"how_much,omitempty"`
	ElementQuerySelector string `json:"element_query_selector,omitempty"`

	ClickX int `json:"click_x,omitempty"`
	ClickY int `json:"click_y,omitempty"`

	ElementID    string `json:"element_id,omitempty"`
	ElementClass string `json:"element_class,omitempty"`
}

// ScrollToTop returns the implicit action appended before full-page captures.
func ScrollToTop() Action {
	return Action{Kind: KindScrollToTop}
}

// FromMap constructs a validated Action from a plain key/value record, the
// form in which actions arrive inside capture requests.
func FromMap(m map[string]any) (Action, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Action{}, fmt.Errorf("encoding action record: %w", err)
	}
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("decoding action record: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Validate checks the per-variant invariants.
func (a Action) Validate() error {
	switch a.Kind {
	case KindScrollDown, KindScrollUp:
		if a.HowMuch <= 0 {
			return fmt.Errorf("%s action requires a positive how_much, got %d", a.Kind, a.HowMuch)
		}
	case KindScrollToTop, KindClickAt:
		// No constrained fields.
	case KindClickElement:
		if a.ElementID == "" && a.ElementClass == "" && a.ElementQuerySelector == "" {
			return fmt.Errorf("click_element action must define at least one predicate")
		}
	default:
		return fmt.Errorf("unsupported action kind: %q", a.Kind)
	}
	return nil
}

// JavaScript compiles the action into an executable page-side statement.
// The variant set is closed, so dispatch is an exhaustive switch.
func (a Action) JavaScript() (string, error) {
	switch a.Kind {
	case KindScrollDown:
		if a.ElementQuerySelector == "" {
			return fmt.Sprintf("window.scrollBy(0, %d);", a.HowMuch), nil
		}
		return fmt.Sprintf("document.querySelector(%q).scrollBy(0, %d);", a.ElementQuerySelector, a.HowMuch), nil
	case KindScrollUp:
		if a.ElementQuerySelector == "" {
			return fmt.Sprintf("window.scrollBy(0, -%d);", a.HowMuch), nil
		}
		return fmt.Sprintf("document.querySelector(%q).scrollBy(0, -%d);", a.ElementQuerySelector, a.HowMuch), nil
	case KindScrollToTop:
		return "window.scrollTo(0, 0);", nil
	case KindClickAt:
		return fmt.Sprintf("document.elementFromPoint(%d, %d).click();", a.ClickX, a.ClickY), nil
	case KindClickElement:
		if a.ElementID != "" {
			return fmt.Sprintf("document.getElementById(%q).click();", a.ElementID), nil
		}
		if a.ElementClass != "" {
			return fmt.Sprintf("document.getElementsByClassName(%q)[0].click();", a.ElementClass), nil
		}
		return fmt.Sprintf("document.querySelector(%q).click();", a.ElementQuerySelector), nil
	}
	return "", fmt.Errorf("unsupported action kind: %q", a.Kind)
}

// String renders a short human-readable form for logs.
func (a Action) String() string {
	return string(a.Kind)
}
