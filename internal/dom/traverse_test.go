package dom_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/marqueewinq/shooter/api/schemas"
	"github.com/marqueewinq/shooter/internal/dom"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeElement is a synthetic tree node implementing dom.Element.
type fakeElement struct {
	html     string
	tag      string
	attrs    map[string]string
	visible  bool
	position string
	rect     dom.Rect
	children []*fakeElement

	// stale makes every accessor fail like a detached node.
	stale bool
	// staleChildren fails only the children query.
	staleChildren bool
}

func (f *fakeElement) err() error {
	return fmt.Errorf("%w: node detached", dom.ErrStale)
}

func (f *fakeElement) OuterHTML(ctx context.Context) (string, error) {
	if f.stale {
		return "", f.err()
	}
	return f.html, nil
}

func (f *fakeElement) TagName(ctx context.Context) (string, error) {
	if f.stale {
		return "", f.err()
	}
	return f.tag, nil
}

func (f *fakeElement) Attribute(ctx context.Context, name string) (string, error) {
	if f.stale {
		return "", f.err()
	}
	return f.attrs[name], nil
}

func (f *fakeElement) Visible(ctx context.Context) (bool, error) {
	if f.stale {
		return false, f.err()
	}
	return f.visible, nil
}

func (f *fakeElement) Position(ctx context.Context) (string, error) {
	if f.stale {
		return "", f.err()
	}
	return f.position, nil
}

func (f *fakeElement) Rect(ctx context.Context, absolute bool) (dom.Rect, error) {
	if f.stale {
		return dom.Rect{}, f.err()
	}
	return f.rect, nil
}

func (f *fakeElement) Children(ctx context.Context) ([]dom.Element, error) {
	if f.stale || f.staleChildren {
		return nil, f.err()
	}
	out := make([]dom.Element, len(f.children))
	for i, c := range f.children {
		out[i] = c
	}
	return out, nil
}

func el(tag, html string, visible bool, children ...*fakeElement) *fakeElement {
	return &fakeElement{
		html:     html,
		tag:      tag,
		visible:  visible,
		position: "static",
		rect:     dom.Rect{Left: 10, Top: 20, Width: 100, Height: 50},
		children: children,
	}
}

func walk(t *testing.T, root dom.Element, includeInvisible bool) []schemas.ElementRecord {
	t.Helper()
	tr := dom.NewTraverser(zaptest.NewLogger(t), 1.0, true, includeInvisible)
	records, err := tr.Walk(context.Background(), root)
	require.NoError(t, err)
	return records
}

func TestWalk_ParentsEmittedBeforeChildren(t *testing.T) {
	root := el("html", "<html>A</html>", true,
		el("body", "<body>B</body>", true,
			el("div", "<div>C</div>", true),
			el("p", "<p>D</p>", true),
		),
	)

	records := walk(t, root, false)
	require.Len(t, records, 4)

	seen := map[string]bool{}
	for _, rec := range records {
		if rec.ParentID != nil {
			assert.True(t, seen[*rec.ParentID], "parent of %s must be emitted earlier", rec.CSSSelector)
		}
		seen[rec.ID] = true
	}
	assert.Nil(t, records[0].ParentID)
}

func TestWalk_DeduplicatesByMarkupHash(t *testing.T) {
	// Two byte-identical children collapse into one record.
	root := el("div", "<div>root</div>", true,
		el("span", "<span>dup</span>", true),
		el("span", "<span>dup</span>", true),
		el("span", "<span>other</span>", true),
	)

	records := walk(t, root, false)
	require.Len(t, records, 3)

	ids := map[string]int{}
	for _, rec := range records {
		ids[rec.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "record %s emitted more than once", id)
	}
}

func TestWalk_InvisibleSkippedAndNotExpanded(t *testing.T) {
	hiddenChild := el("b", "<b>inside hidden</b>", false)
	hidden := el("aside", "<aside>hidden</aside>", false, hiddenChild)
	root := el("div", "<div>root</div>", true,
		hidden,
		el("p", "<p>shown</p>", true),
	)

	records := walk(t, root, false)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.IsVisible)
		assert.NotEqual(t, "aside", rec.TagName)
		assert.NotEqual(t, "b", rec.TagName)
	}
}

func TestWalk_InvisibleToggleKeepsVisibleSubsetIdentical(t *testing.T) {
	root := el("div", "<div>root</div>", true,
		el("aside", "<aside>hidden</aside>", false),
		el("p", "<p>shown</p>", true),
		el("span", "<span>hidden too</span>", false),
	)

	withInvisible := walk(t, root, true)
	withoutInvisible := walk(t, root, false)

	require.Len(t, withInvisible, 4)
	require.Len(t, withoutInvisible, 2)

	var visibleSubset []schemas.ElementRecord
	for _, rec := range withInvisible {
		if rec.IsVisible {
			visibleSubset = append(visibleSubset, rec)
		}
	}
	if diff := cmp.Diff(withoutInvisible, visibleSubset); diff != "" {
		t.Errorf("visible subset changed with invisible capture enabled (-want +got):\n%s", diff)
	}
}

func TestWalk_StaleChildIsolated(t *testing.T) {
	root := el("div", "<div>root</div>", true,
		el("p", "<p>first</p>", true),
		&fakeElement{stale: true},
		el("p", "<p>third</p>", true),
	)

	records := walk(t, root, false)
	require.Len(t, records, 3)
}

func TestWalk_StaleRootReturnsEmpty(t *testing.T) {
	records := walk(t, &fakeElement{stale: true}, false)
	assert.Empty(t, records)
}

func TestWalk_StaleChildrenQueryKeepsRecord(t *testing.T) {
	node := el("section", "<section>vanishing</section>", true,
		el("p", "<p>lost</p>", true),
	)
	node.staleChildren = true
	root := el("div", "<div>root</div>", true, node)

	records := walk(t, root, false)
	require.Len(t, records, 2)
	assert.Equal(t, "section", records[1].TagName)
}

func TestWalk_BBoxScaledByPixelRatio(t *testing.T) {
	root := el("div", "<div>root</div>", true)
	root.rect = dom.Rect{Left: 10, Top: 20, Width: 100, Height: 50}

	tr := dom.NewTraverser(zaptest.NewLogger(t), 2.0, true, false)
	records, err := tr.Walk(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, [4]int{20, 40, 220, 140}, records[0].BBox)
}

func TestWalk_SelectorsIncludeIDAndClasses(t *testing.T) {
	title := el("span", `<span class="title main">t</span>`, true)
	title.attrs = map[string]string{"class": "title main"}
	header := el("div", `<div id="header">h</div>`, true, title)
	header.attrs = map[string]string{"id": "header"}

	records := walk(t, header, false)
	require.Len(t, records, 2)
	assert.Equal(t, "div#header", records[0].CSSSelector)
	assert.Equal(t, "div#header span.title.main", records[1].CSSSelector)
}

func TestWalk_NthOfTypeDisambiguatesSameTagSiblings(t *testing.T) {
	root := el("ul", "<ul>list</ul>", true,
		el("li", "<li>one</li>", true),
		el("li", "<li>two</li>", true),
		el("span", "<span>tail</span>", true),
	)

	records := walk(t, root, false)
	require.Len(t, records, 4)
	assert.Equal(t, "ul li", records[1].CSSSelector)
	assert.Equal(t, "ul li:nth-of-type(2)", records[2].CSSSelector)
	assert.Equal(t, "ul span", records[3].CSSSelector)
}

func TestSynthesizeSelector(t *testing.T) {
	tests := []struct {
		name           string
		tag, id, class string
		parent         string
		siblings       []string
		index          int
		want           string
	}{
		{"root combined", "div", "main", "wrap outer", "", nil, -1, "div#main.wrap.outer"},
		{"no preceding same tag", "p", "", "", "body", []string{"p", "p"}, 0, "body p"},
		{"one preceding same tag", "p", "", "", "body", []string{"p", "p"}, 1, "body p:nth-of-type(2)"},
		{"mixed siblings", "a", "", "", "nav", []string{"span", "a", "span", "a"}, 3, "nav a:nth-of-type(2)"},
		{"no parent non-root", "p", "", "", "", []string{"p"}, 0, "p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dom.SynthesizeSelector(tt.tag, tt.id, tt.class, tt.parent, tt.siblings, tt.index)
			assert.Equal(t, tt.want, got)
		})
	}
}
