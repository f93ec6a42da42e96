// Package capture orchestrates one capture unit end to end: output
// preparation, browser session and readiness gate, action replay, screenshot,
// DOM extraction, and artifact rendering.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/api/schemas"
	"github.com/marqueewinq/shooter/internal/action"
	"github.com/marqueewinq/shooter/internal/browser"
	"github.com/marqueewinq/shooter/internal/device"
	"github.com/marqueewinq/shooter/internal/dom"
	"github.com/marqueewinq/shooter/internal/draw"
	"github.com/marqueewinq/shooter/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result summarizes one finished capture unit.
type Result struct {
	URL          string `json:"url"`
	OutputPath   string `json:"output_path"`
	Screenshot   string `json:"screenshot"`
	ElementsFile string `json:"elements_file,omitempty"`
	ElementCount int    `json:"element_count"`
}

// Run executes a single capture unit against the given output root. The unit
// is independent of any other unit; all shared state lives in the artifacts
// it writes.
func Run(ctx context.Context, logger *zap.Logger, cfg *schemas.CaptureConfig, outputRoot string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := VerifyWritable(outputRoot); err != nil {
		return nil, err
	}
	outDir, err := BuildOutputDir(outputRoot, cfg)
	if err != nil {
		return nil, err
	}
	logger, flush, err := observability.NewTaskLogger(logger, outDir)
	if err != nil {
		return nil, err
	}
	defer flush()
	logger = logger.With(zap.String("url", cfg.URL), zap.String("output_dir", outDir))

	profile, err := device.Lookup(cfg.Device)
	if err != nil {
		return nil, err
	}
	if cfg.WindowSize != "" {
		w, h, err := device.ParseWindowSize(cfg.WindowSize)
		if err != nil {
			return nil, err
		}
		profile.Width, profile.Height = w, h
	}
	if cfg.UserAgent != "" {
		profile.UserAgent = cfg.UserAgent
	}

	session := browser.NewSession(logger, browser.Options{
		Backend:           string(cfg.Browser),
		Profile:           profile,
		Headless:          cfg.Headless,
		DisableJavascript: cfg.DisableJavascript,
	}, cfg.Proxy.ConnectionStrings(false))
	defer session.Close()

	gate := browser.NewGate(logger, cfg.WaitBefore(), cfg.WaitAfter(), cfg.WaitForSelector, cfg.SelectorTimeout())
	conn, err := gate.Load(ctx, session, cfg.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("page loaded and verified")

	if !cfg.Headless {
		if err := waitForEnter(ctx); err != nil {
			return nil, err
		}
	}

	actions := cfg.Actions
	if len(actions) > 0 && cfg.FullPageScreenshot {
		// Restore the origin so the full-page capture is not offset by the
		// replayed scrolling.
		actions = append(append([]action.Action{}, actions...), action.ScrollToTop())
	}
	if len(actions) > 0 {
		if err := Replay(ctx, conn, actions, cfg.ScrollPause(), logger); err != nil {
			return nil, err
		}
	}

	var shot []byte
	if cfg.FullPageScreenshot {
		shot, err = conn.FullScreenshot(ctx)
	} else {
		shot, err = conn.ViewportScreenshot(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	shotPath := filepath.Join(outDir, ScreenshotFile)
	if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
		return nil, fmt.Errorf("writing screenshot: %w", err)
	}

	result := &Result{
		URL:        cfg.URL,
		OutputPath: outDir,
		Screenshot: shotPath,
	}

	if cfg.CaptureVisibleElements || cfg.CaptureInvisibleElements {
		records, err := extractElements(ctx, logger, conn, profile.PixelRatio, cfg)
		if err != nil {
			return nil, err
		}
		elementsPath := filepath.Join(outDir, ElementsFile)
		raw, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding elements: %w", err)
		}
		if err := os.WriteFile(elementsPath, raw, 0o644); err != nil {
			return nil, fmt.Errorf("writing elements: %w", err)
		}
		if err := draw.AnnotateFile(shotPath, filepath.Join(outDir, LabelledScreenshotFile), records); err != nil {
			return nil, err
		}
		result.ElementsFile = elementsPath
		result.ElementCount = len(records)
	}

	logger.Info("capture complete", zap.Int("elements", result.ElementCount))
	return result, nil
}

func extractElements(ctx context.Context, logger *zap.Logger, conn browser.Conn, pixelRatio float64, cfg *schemas.CaptureConfig) ([]schemas.ElementRecord, error) {
	root, err := conn.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving document root: %w", err)
	}
	traverser := dom.NewTraverser(logger, pixelRatio, cfg.FullPageScreenshot, cfg.CaptureInvisibleElements)
	records, err := traverser.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("traversing element tree: %w", err)
	}
	return records, nil
}

// waitForEnter pauses a headful capture until the operator confirms, so the
// page can be inspected or adjusted by hand first.
func waitForEnter(ctx context.Context) error {
	fmt.Fprintln(os.Stderr, "Browser is visible. Press Enter to continue with the capture...")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
