package capture

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/marqueewinq/shooter/api/schemas"
)

// Job is one unit of work for the pool.
type Job struct {
	TaskID string
	Config schemas.CaptureConfig
}

// Outcome pairs a finished job with its result or failure.
type Outcome struct {
	Job      Job
	Result   *Result
	Err      error
	Duration time.Duration
}

// Pool runs capture units concurrently with a bounded worker count and a
// global launch rate limit, so bursts of requests do not stampede the target
// hosts or the local browser processes.
type Pool struct {
	logger      *zap.Logger
	outputRoot  string
	concurrency int
	taskTimeout time.Duration
	limiter     *rate.Limiter

	// onDone, when set, observes every finished unit; used by the service to
	// record task state.
	onDone func(Outcome)

	runUnit func(ctx context.Context, logger *zap.Logger, cfg *schemas.CaptureConfig, outputRoot string) (*Result, error)
}

// NewPool builds a pool writing under outputRoot.
func NewPool(logger *zap.Logger, outputRoot string, concurrency int, ratePerSecond float64, taskTimeout time.Duration, onDone func(Outcome)) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		logger:      logger.Named("pool"),
		outputRoot:  outputRoot,
		concurrency: concurrency,
		taskTimeout: taskTimeout,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		onDone:      onDone,
		runUnit:     Run,
	}
}

// Run executes all jobs and returns their outcomes in job order. A failing
// unit never cancels its siblings; the only way to stop the pool early is
// cancelling ctx.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = p.runOne(ctx, job)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (p *Pool) runOne(ctx context.Context, job Job) (out Outcome) {
	out.Job = job
	started := time.Now()
	defer func() {
		out.Duration = time.Since(started)
		if p.onDone != nil {
			p.onDone(out)
		}
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		out.Err = err
		return out
	}

	unitCtx := ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	logger := p.logger.With(zap.String("task_id", job.TaskID))
	result, err := p.runUnit(unitCtx, logger, &job.Config, p.outputRoot)
	if err != nil {
		logger.Error("capture unit failed", zap.String("url", job.Config.URL), zap.Error(err))
		out.Err = err
		return out
	}
	out.Result = result
	return out
}
