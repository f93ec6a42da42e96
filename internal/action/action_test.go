package action_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueewinq/shooter/internal/action"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		a       action.Action
		wantErr bool
	}{
		{"scroll down ok", action.Action{Kind: action.KindScrollDown, HowMuch: 100}, false},
		{"scroll down zero", action.Action{Kind: action.KindScrollDown}, true},
		{"scroll up negative", action.Action{Kind: action.KindScrollUp, HowMuch: -5}, true},
		{"scroll to top", action.ScrollToTop(), false},
		{"click at", action.Action{Kind: action.KindClickAt, ClickX: 10, ClickY: 20}, false},
		{"click element by id", action.Action{Kind: action.KindClickElement, ElementID: "submit"}, false},
		{"click element no predicate", action.Action{Kind: action.KindClickElement}, true},
		{"unknown kind", action.Action{Kind: "dance"}, true},
		{"empty kind", action.Action{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJavaScript(t *testing.T) {
	tests := []struct {
		name string
		a    action.Action
		want string
	}{
		{
			"window scroll down",
			action.Action{Kind: action.KindScrollDown, HowMuch: 250},
			"window.scrollBy(0, 250);",
		},
		{
			"scoped scroll down",
			action.Action{Kind: action.KindScrollDown, HowMuch: 250, ElementQuerySelector: "#feed"},
			`document.querySelector("#feed").scrollBy(0, 250);`,
		},
		{
			"window scroll up",
			action.Action{Kind: action.KindScrollUp, HowMuch: 100},
			"window.scrollBy(0, -100);",
		},
		{
			"scroll to top",
			action.ScrollToTop(),
			"window.scrollTo(0, 0);",
		},
		{
			"click at",
			action.Action{Kind: action.KindClickAt, ClickX: 15, ClickY: 30},
			"document.elementFromPoint(15, 30).click();",
		},
		{
			"click element id wins",
			action.Action{Kind: action.KindClickElement, ElementID: "go", ElementClass: "btn", ElementQuerySelector: ".x"},
			`document.getElementById("go").click();`,
		},
		{
			"click element class next",
			action.Action{Kind: action.KindClickElement, ElementClass: "btn", ElementQuerySelector: ".x"},
			`document.getElementsByClassName("btn")[0].click();`,
		},
		{
			"click element selector last",
			action.Action{Kind: action.KindClickElement, ElementQuerySelector: "nav a.first"},
			`document.querySelector("nav a.first").click();`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.JavaScript()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJavaScript_EscapesSelectors(t *testing.T) {
	a := action.Action{Kind: action.KindClickElement, ElementQuerySelector: `a[title="x"]`}
	got, err := a.JavaScript()
	require.NoError(t, err)
	assert.Equal(t, `document.querySelector("a[title=\"x\"]").click();`, got)
}

func TestFromMap(t *testing.T) {
	a, err := action.FromMap(map[string]any{"kind": "scroll_down", "how_much": 300})
	require.NoError(t, err)
	assert.Equal(t, action.KindScrollDown, a.Kind)
	assert.Equal(t, 300, a.HowMuch)

	_, err = action.FromMap(map[string]any{"kind": "scroll_down"})
	assert.Error(t, err)

	_, err = action.FromMap(map[string]any{"kind": "teleport"})
	assert.Error(t, err)
}
