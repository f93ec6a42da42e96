package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marqueewinq/shooter/internal/action"
	"github.com/marqueewinq/shooter/internal/dom"
)

// scriptConn records evaluated scripts and can fail selected ones.
type scriptConn struct {
	scripts []string
	failOn  map[string]error
}

func (c *scriptConn) Navigate(ctx context.Context, url string) error    { return nil }
func (c *scriptConn) Location(ctx context.Context) (string, error)      { return "", nil }
func (c *scriptConn) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (c *scriptConn) Eval(ctx context.Context, script string, out any) error {
	c.scripts = append(c.scripts, script)
	if err, ok := c.failOn[script]; ok {
		return err
	}
	return nil
}

func (c *scriptConn) FullScreenshot(ctx context.Context) ([]byte, error)     { return nil, nil }
func (c *scriptConn) ViewportScreenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (c *scriptConn) Root(ctx context.Context) (dom.Element, error)          { return nil, nil }
func (c *scriptConn) Close() error { return nil }

func TestReplay_ExecutesActionsInOrderWithReflow(t *testing.T) {
	conn := &scriptConn{}
	actions := []action.Action{
		{Kind: action.KindScrollDown, HowMuch: 100},
		action.ScrollToTop(),
	}

	err := Replay(context.Background(), conn, actions, 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"window.scrollBy(0, 100);",
		reflowScript,
		"window.scrollTo(0, 0);",
		reflowScript,
	}, conn.scripts)
}

func TestReplay_PageSideFailureIsSkipped(t *testing.T) {
	failing := `document.getElementById("missing").click();`
	conn := &scriptConn{failOn: map[string]error{failing: errors.New("null is not an object")}}
	actions := []action.Action{
		{Kind: action.KindClickElement, ElementID: "missing"},
		{Kind: action.KindScrollDown, HowMuch: 50},
	}

	err := Replay(context.Background(), conn, actions, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, conn.scripts, "window.scrollBy(0, 50);")
}

func TestReplay_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &scriptConn{}
	actions := []action.Action{{Kind: action.KindScrollDown, HowMuch: 10}}

	err := Replay(ctx, conn, actions, time.Hour, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplay_InvalidActionSkipped(t *testing.T) {
	conn := &scriptConn{}
	actions := []action.Action{
		{Kind: "levitate"},
		{Kind: action.KindScrollUp, HowMuch: 25},
	}

	err := Replay(context.Background(), conn, actions, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"window.scrollBy(0, -25);", reflowScript}, conn.scripts)
}
