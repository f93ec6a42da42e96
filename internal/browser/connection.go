package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/emulation"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/internal/dom"
)

// Connection is a live CDP-driven browser with a single tab. It implements
// Conn and produces the element handles the traversal engine walks.
type Connection struct {
	logger *zap.Logger
	opts   Options

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

var _ Conn = (*Connection)(nil)

// Dial launches a browser process against the given endpoint and opens one
// tab with the session's device emulation applied. It is the production
// DialFunc.
func Dial(ctx context.Context, opts Options, endpoint string, logger *zap.Logger) (Conn, error) {
	allocOpts := buildAllocatorOptions(opts, endpoint)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	c := &Connection{
		logger:      logger.Named("connection"),
		opts:        opts,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	profile := opts.Profile
	setup := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(profile.Width), int64(profile.Height), profile.PixelRatio, profile.IsMobileView),
	}
	if profile.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(profile.UserAgent))
	}
	if opts.DisableJavascript {
		setup = append(setup, emulation.SetScriptExecutionDisabled(true))
	}

	if err := chromedp.Run(tabCtx, setup); err != nil {
		c.Close()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	return c, nil
}

// buildAllocatorOptions assembles the launch flags, starting from the
// chromedp defaults with the automation banner flag filtered out.
func buildAllocatorOptions(opts Options, endpoint string) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	// Allocator options are opaque funcs, so the default enable-automation
	// flag cannot be filtered out of the slice; overriding it with a false
	// bool value makes chromedp omit it from the command line entirely.
	out = append(out, chromedp.Flag("enable-automation", false))

	out = append(out,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(opts.Profile.Width, opts.Profile.Height),
	)
	if opts.Profile.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.Profile.UserAgent))
	}
	if endpoint != "" {
		out = append(out, chromedp.ProxyServer(endpoint))
	}
	if path := findExecutable(opts.Backend); path != "" {
		out = append(out, chromedp.ExecPath(path))
	}

	// Required when running inside containers.
	if runtime.GOOS == "linux" {
		out = append(out,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return out
}

// findExecutable resolves the requested binary flavor on PATH. An empty
// result leaves the choice to the chromedp default lookup.
func findExecutable(backend string) string {
	var candidates []string
	switch backend {
	case "chromium":
		candidates = []string{"chromium", "chromium-browser"}
	default:
		candidates = []string{"google-chrome", "google-chrome-stable", "chrome"}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (c *Connection) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Connection) Location(ctx context.Context) (string, error) {
	var location string
	if err := c.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (c *Connection) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (c *Connection) Eval(ctx context.Context, script string, out any) error {
	return c.run(ctx, chromedp.Evaluate(script, out))
}

func (c *Connection) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Connection) ViewportScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Root resolves a handle onto the document root element.
func (c *Connection) Root(ctx context.Context) (dom.Element, error) {
	var id cdpruntime.RemoteObjectID
	err := c.run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		obj, exp, err := cdpruntime.Evaluate("document.documentElement").Do(actx)
		if err != nil {
			return err
		}
		if exp != nil {
			return fmt.Errorf("resolving document root: %s", exp.Text)
		}
		if obj == nil || obj.ObjectID == "" {
			return fmt.Errorf("document root did not resolve to an object")
		}
		id = obj.ObjectID
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return &cdpElement{conn: c, id: id}, nil
}

// run executes tasks on the connection's tab while honoring the caller's
// context for cancellation.
func (c *Connection) run(ctx context.Context, tasks ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.tabCtx, tasks...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (c *Connection) Close() error {
	c.tabCancel()
	c.allocCancel()
	return nil
}
