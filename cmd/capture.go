package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/api/schemas"
	"github.com/marqueewinq/shooter/internal/capture"
	"github.com/marqueewinq/shooter/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCaptureCmd creates the `capture` command: run capture units for one or
// more URLs directly, without the HTTP service.
func newCaptureCmd() *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture [urls...]",
		Short: "Capture screenshots and DOM extractions for the given URLs",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("output.dir", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("engine.worker_concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			base, err := captureConfigFromFlags(cmd)
			if err != nil {
				return err
			}

			jobs := make([]capture.Job, 0, len(args))
			for _, target := range args {
				unit := *base
				unit.URL = target
				if err := unit.Validate(); err != nil {
					return fmt.Errorf("target %q: %w", target, err)
				}
				jobs = append(jobs, capture.Job{TaskID: uuid.New().String(), Config: unit})
			}

			pool := capture.NewPool(logger, cfg.Output.Dir,
				cfg.Engine.WorkerConcurrency, cfg.Engine.RatePerSecond, cfg.Engine.TaskTimeout, nil)
			outcomes := pool.Run(ctx, jobs)

			var failed int
			for _, out := range outcomes {
				if out.Err != nil {
					failed++
					logger.Error("capture failed", zap.String("url", out.Job.Config.URL), zap.Error(out.Err))
					continue
				}
				fmt.Printf("%s -> %s (%d elements)\n", out.Job.Config.URL, out.Result.OutputPath, out.Result.ElementCount)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d captures failed", failed, len(outcomes))
			}
			return nil
		},
	}

	flags := captureCmd.Flags()
	flags.StringP("output", "o", "./output", "Root directory for capture artifacts.")
	flags.IntP("concurrency", "j", 0, "Number of concurrent capture workers. (Overrides config/env)")
	flags.Bool("full-page", true, "Capture the full page instead of the viewport.")
	flags.String("browser", "chrome", "Browser backend: chrome or chromium.")
	flags.String("device", "DESKTOP", "Device preset: DESKTOP, IPHONE_X, IPHONE_15, SAMSUNG_GALAXY_S20.")
	flags.String("window-size", "", "Viewport override as widthxheight, e.g. 1280x800.")
	flags.String("user-agent", "", "User agent override.")
	flags.String("proxy-json", "", "Proxy endpoint(s) as a JSON object or array.")
	flags.Bool("visible-elements", true, "Extract visible elements.")
	flags.Bool("invisible-elements", false, "Extract invisible elements as well.")
	flags.Float64("wait-after", 5, "Seconds to wait after navigation.")
	flags.Float64("wait-before", -1, "Seconds to wait before navigation; negative selects a random jitter.")
	flags.String("wait-for-selector", "", "CSS selector that must appear before the page counts as loaded.")
	flags.Float64("selector-timeout", 10, "Seconds to wait for the readiness selector.")
	flags.Float64("scroll-pause", 0.1, "Seconds to pause between replayed actions.")
	flags.String("actions-json", "", "Pre-capture actions as a JSON array.")
	flags.Bool("disable-javascript", false, "Disable JavaScript execution on the page.")
	flags.Bool("headless", true, "Run the browser headless; headful pauses for Enter before capturing.")
	return captureCmd
}

// captureConfigFromFlags builds the shared per-unit config from the command
// line, URL left empty.
func captureConfigFromFlags(cmd *cobra.Command) (*schemas.CaptureConfig, error) {
	flags := cmd.Flags()
	cfg := schemas.DefaultCaptureConfig()

	var err error
	if cfg.FullPageScreenshot, err = flags.GetBool("full-page"); err != nil {
		return nil, err
	}
	browser, err := flags.GetString("browser")
	if err != nil {
		return nil, err
	}
	cfg.Browser = schemas.Backend(browser)
	if cfg.Device, err = flags.GetString("device"); err != nil {
		return nil, err
	}
	if cfg.WindowSize, err = flags.GetString("window-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.CaptureVisibleElements, err = flags.GetBool("visible-elements"); err != nil {
		return nil, err
	}
	if cfg.CaptureInvisibleElements, err = flags.GetBool("invisible-elements"); err != nil {
		return nil, err
	}
	if cfg.WaitAfterLoad, err = flags.GetFloat64("wait-after"); err != nil {
		return nil, err
	}
	waitBefore, err := flags.GetFloat64("wait-before")
	if err != nil {
		return nil, err
	}
	if waitBefore >= 0 {
		cfg.WaitBeforeLoad = &waitBefore
	}
	if cfg.WaitForSelector, err = flags.GetString("wait-for-selector"); err != nil {
		return nil, err
	}
	if cfg.WaitForSelectorTimeout, err = flags.GetFloat64("selector-timeout"); err != nil {
		return nil, err
	}
	if cfg.ScrollPauseTime, err = flags.GetFloat64("scroll-pause"); err != nil {
		return nil, err
	}
	if cfg.DisableJavascript, err = flags.GetBool("disable-javascript"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return nil, err
	}

	proxyJSON, err := flags.GetString("proxy-json")
	if err != nil {
		return nil, err
	}
	if proxyJSON != "" {
		if err := json.UnmarshalFromString(proxyJSON, &cfg.Proxy); err != nil {
			return nil, fmt.Errorf("invalid --proxy-json: %w", err)
		}
	}
	actionsJSON, err := flags.GetString("actions-json")
	if err != nil {
		return nil, err
	}
	if actionsJSON != "" {
		if err := json.UnmarshalFromString(actionsJSON, &cfg.Actions); err != nil {
			return nil, fmt.Errorf("invalid --actions-json: %w", err)
		}
	}
	return &cfg, nil
}
