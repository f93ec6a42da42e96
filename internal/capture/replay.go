package capture

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/internal/action"
	"github.com/marqueewinq/shooter/internal/browser"
)

// reflowScript forces a synchronous layout pass so the next action observes
// the effects of the previous one.
const reflowScript = "document.body.offsetHeight;"

// Replay executes the action sequence against a loaded page. Each action is
// compiled to a page-side statement, executed, followed by a forced reflow
// and the configured pause. Page-side failures (a missing click target, a
// selector that matches nothing) are logged and skipped; replay never aborts
// the capture.
func Replay(ctx context.Context, conn browser.Conn, actions []action.Action, pause time.Duration, logger *zap.Logger) error {
	for i, a := range actions {
		script, err := a.JavaScript()
		if err != nil {
			logger.Warn("skipping uncompilable action", zap.Int("index", i), zap.String("kind", a.String()), zap.Error(err))
			continue
		}
		if err := conn.Eval(ctx, script, nil); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("action failed on page, continuing", zap.Int("index", i), zap.String("kind", a.String()), zap.Error(err))
			continue
		}
		if err := conn.Eval(ctx, reflowScript, nil); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
