package dom

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/api/schemas"
)

// Traverser walks a rendered element tree depth-first, once per capture,
// producing element records with parent linkage and synthesized selectors.
//
// Identity is a hash of the element's serialized markup, which doubles as
// the revisit key: two references hashing identically are treated as the
// same node. This conflates byte-identical elements (two empty <div></div>
// siblings collapse into one record); that is a known accuracy limitation
// inherited from the identity scheme, not an engine bug.
type Traverser struct {
	logger *zap.Logger

	// PixelRatio scales all emitted bounding boxes.
	PixelRatio float64
	// Absolute selects document coordinates over viewport-relative ones.
	Absolute bool
	// IncludeInvisible emits records for invisible nodes as well. An
	// invisible node that is not requested is never expanded either.
	IncludeInvisible bool
}

// NewTraverser returns a traverser with the given geometry settings.
func NewTraverser(logger *zap.Logger, pixelRatio float64, absolute, includeInvisible bool) *Traverser {
	if pixelRatio <= 0 {
		pixelRatio = 1.0
	}
	return &Traverser{
		logger:           logger.Named("traverser"),
		PixelRatio:       pixelRatio,
		Absolute:         absolute,
		IncludeInvisible: includeInvisible,
	}
}

// pass holds the bounded-lifetime state of a single traversal.
type pass struct {
	visited map[string]*schemas.ElementRecord
	records []*schemas.ElementRecord
}

// Walk traverses the tree rooted at root and returns the flat record
// collection in emission order (parents strictly before their children).
// A stale root yields an empty collection and no error.
func (t *Traverser) Walk(ctx context.Context, root Element) ([]schemas.ElementRecord, error) {
	p := &pass{visited: make(map[string]*schemas.ElementRecord)}

	if _, err := t.walk(ctx, p, root, "", nil, -1); err != nil {
		if errors.Is(err, ErrStale) {
			t.logger.Warn("root element went stale, returning empty result")
			return []schemas.ElementRecord{}, nil
		}
		return nil, err
	}

	out := make([]schemas.ElementRecord, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, *rec)
	}
	return out, nil
}

// walk processes one node. siblingTags are the tag names of the node's
// sibling group (including itself); index is the node's position in that
// group, or negative for the root. It returns nil for nodes that were
// skipped as invisible.
func (t *Traverser) walk(ctx context.Context, p *pass, el Element, parentSelector string, siblingTags []string, index int) (*schemas.ElementRecord, error) {
	markup, err := el.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	id := hashMarkup(markup)
	if rec, ok := p.visited[id]; ok {
		return rec, nil
	}

	visible, err := el.Visible(ctx)
	if err != nil {
		return nil, err
	}
	if !visible && !t.IncludeInvisible {
		return nil, nil
	}

	tag, err := el.TagName(ctx)
	if err != nil {
		return nil, err
	}
	position, err := el.Position(ctx)
	if err != nil {
		return nil, err
	}
	rect, err := el.Rect(ctx, t.Absolute)
	if err != nil {
		return nil, err
	}
	idAttr, err := el.Attribute(ctx, "id")
	if err != nil {
		return nil, err
	}
	classAttr, err := el.Attribute(ctx, "class")
	if err != nil {
		return nil, err
	}

	rec := &schemas.ElementRecord{
		ID:          id,
		BBox:        t.scaleBBox(rect),
		TagName:     tag,
		Label:       tag,
		Position:    position,
		IsVisible:   visible,
		CSSSelector: SynthesizeSelector(tag, idAttr, classAttr, parentSelector, siblingTags, index),
	}
	p.visited[id] = rec
	p.records = append(p.records, rec)

	children, err := el.Children(ctx)
	if err != nil {
		// The node vanished mid-visit; its record stands, the subtree is lost.
		if errors.Is(err, ErrStale) {
			t.logger.Debug("children query hit a stale node, subtree omitted", zap.String("selector", rec.CSSSelector))
			return rec, nil
		}
		return nil, err
	}

	childTags := make([]string, len(children))
	for i, child := range children {
		name, err := child.TagName(ctx)
		if err != nil {
			// Leave the slot empty; the child itself is skipped below too.
			continue
		}
		childTags[i] = name
	}

	for i, child := range children {
		childRec, err := t.walk(ctx, p, child, rec.CSSSelector, childTags, i)
		if err != nil {
			if errors.Is(err, ErrStale) {
				// Dynamically removed from the page; omit it, keep going.
				t.logger.Debug("child went stale during traversal", zap.Int("index", i), zap.String("parent", rec.CSSSelector))
				continue
			}
			return nil, err
		}
		if childRec != nil {
			parentID := id
			childRec.ParentID = &parentID
		}
	}

	return rec, nil
}

func (t *Traverser) scaleBBox(r Rect) [4]int {
	return [4]int{
		int(r.Left * t.PixelRatio),
		int(r.Top * t.PixelRatio),
		int((r.Left + r.Width) * t.PixelRatio),
		int((r.Top + r.Height) * t.PixelRatio),
	}
}

func hashMarkup(markup string) string {
	sum := sha1.Sum([]byte(markup))
	return hex.EncodeToString(sum[:])
}

// SynthesizeSelector builds the deterministic CSS selector for an element:
// tag, optional #id, class list with spaces replaced by dots, and, for
// non-root nodes that share their tag with a preceding sibling, a 1-based
// :nth-of-type tie-breaker, all prefixed by the parent's selector with a
// descendant combinator. index < 0 denotes the root.
func SynthesizeSelector(tag, idAttr, classAttr, parentSelector string, siblingTags []string, index int) string {
	var sb strings.Builder
	sb.WriteString(tag)
	if idAttr != "" {
		sb.WriteString("#")
		sb.WriteString(idAttr)
	}
	if classAttr != "" {
		sb.WriteString(".")
		sb.WriteString(strings.ReplaceAll(classAttr, " ", "."))
	}
	combined := sb.String()

	if index < 0 {
		return combined
	}

	sameTagBefore := 0
	for _, sibling := range siblingTags[:index] {
		if sibling == tag {
			sameTagBefore++
		}
	}

	current := parentSelector + " " + combined
	if sameTagBefore > 0 {
		current += fmt.Sprintf(":nth-of-type(%d)", sameTagBefore+1)
	}
	return strings.TrimSpace(current)
}
