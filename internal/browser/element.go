package browser

import (
	"context"
	"fmt"
	"strings"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/marqueewinq/shooter/internal/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cdpElement is a dom.Element backed by a CDP remote object handle. The
// handle stays valid only while the underlying node is attached; once the
// page mutates it away, every method fails with a dom.ErrStale wrap.
type cdpElement struct {
	conn *Connection
	id   cdpruntime.RemoteObjectID
}

var _ dom.Element = (*cdpElement)(nil)

func (e *cdpElement) OuterHTML(ctx context.Context) (string, error) {
	var markup string
	err := e.callValue(ctx, "function() { return this.outerHTML; }", nil, &markup)
	return markup, err
}

func (e *cdpElement) TagName(ctx context.Context) (string, error) {
	var tag string
	err := e.callValue(ctx, "function() { return this.tagName.toLowerCase(); }", nil, &tag)
	return tag, err
}

func (e *cdpElement) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	err := e.callValue(ctx, "function(name) { return this.getAttribute(name) || ''; }", []any{name}, &value)
	return value, err
}

func (e *cdpElement) Visible(ctx context.Context) (bool, error) {
	const script = `function() {
		var style = window.getComputedStyle(this);
		if (style.display === 'none' || style.visibility === 'hidden') {
			return false;
		}
		var rect = this.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	}`
	var visible bool
	err := e.callValue(ctx, script, nil, &visible)
	return visible, err
}

func (e *cdpElement) Position(ctx context.Context) (string, error) {
	var position string
	err := e.callValue(ctx, "function() { return window.getComputedStyle(this).position; }", nil, &position)
	return position, err
}

func (e *cdpElement) Rect(ctx context.Context, absolute bool) (dom.Rect, error) {
	const script = `function(absolute) {
		var rect = this.getBoundingClientRect();
		var dx = absolute ? window.scrollX : 0;
		var dy = absolute ? window.scrollY : 0;
		return {left: rect.left + dx, top: rect.top + dy, width: rect.width, height: rect.height};
	}`
	var rect dom.Rect
	err := e.callValue(ctx, script, []any{absolute}, &rect)
	return rect, err
}

func (e *cdpElement) Children(ctx context.Context) ([]dom.Element, error) {
	var count int
	if err := e.callValue(ctx, "function() { return this.children.length; }", nil, &count); err != nil {
		return nil, err
	}

	children := make([]dom.Element, 0, count)
	for i := 0; i < count; i++ {
		id, err := e.callHandle(ctx, "function(i) { return this.children[i]; }", []any{i})
		if err != nil {
			return nil, err
		}
		children = append(children, &cdpElement{conn: e.conn, id: id})
	}
	return children, nil
}

// callValue invokes a function on the remote node and decodes its returned
// value into out.
func (e *cdpElement) callValue(ctx context.Context, decl string, args []any, out any) error {
	obj, err := e.call(ctx, decl, args, true)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if obj == nil || len(obj.Value) == 0 {
		return fmt.Errorf("remote call returned no value")
	}
	if err := json.Unmarshal(obj.Value, out); err != nil {
		return fmt.Errorf("decoding remote call result: %w", err)
	}
	return nil
}

// callHandle invokes a function on the remote node and returns the resulting
// object's handle without serializing it.
func (e *cdpElement) callHandle(ctx context.Context, decl string, args []any) (cdpruntime.RemoteObjectID, error) {
	obj, err := e.call(ctx, decl, args, false)
	if err != nil {
		return "", err
	}
	if obj == nil || obj.ObjectID == "" {
		return "", fmt.Errorf("remote call did not return an object handle")
	}
	return obj.ObjectID, nil
}

func (e *cdpElement) call(ctx context.Context, decl string, args []any, byValue bool) (*cdpruntime.RemoteObject, error) {
	callArgs := make([]*cdpruntime.CallArgument, 0, len(args))
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encoding remote call argument: %w", err)
		}
		callArgs = append(callArgs, &cdpruntime.CallArgument{Value: raw})
	}

	var result *cdpruntime.RemoteObject
	err := e.conn.run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		obj, exp, err := cdpruntime.CallFunctionOn(decl).
			WithObjectID(e.id).
			WithArguments(callArgs).
			WithReturnByValue(byValue).
			Do(actx)
		if err != nil {
			return wrapStale(err)
		}
		if exp != nil {
			return wrapStale(fmt.Errorf("remote call raised: %s", exp.Text))
		}
		result = obj
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// wrapStale maps the CDP failure modes of a detached node onto dom.ErrStale
// so the traversal engine can isolate them.
func wrapStale(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Could not find object"),
		strings.Contains(msg, "Cannot find context"),
		strings.Contains(msg, "Object couldn't be returned"),
		strings.Contains(msg, "detached"):
		return fmt.Errorf("%w: %s", dom.ErrStale, msg)
	}
	return err
}
