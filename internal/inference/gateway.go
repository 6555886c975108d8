// Package inference serves predictions from a single model artifact that is
// loaded lazily, at most once, and shared by every request.
//
// A prediction runs three stages, each failing independently:
//
//	preprocess → forward (behind a circuit breaker) → postprocess
//
// Failures carry the stage name so the HTTP layer can map them: preprocess
// errors are the caller's fault, the other two are server errors.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/metrics"
)

// Predictor is what the HTTP handler depends on.
type Predictor interface {
	Predict(ctx context.Context, input string) (Prediction, error)
}

// Options configures a Gateway. Zero values select the defaults.
type Options struct {
	ModelPath     string
	Loader        Loader        // default LoadLinearText
	Preprocessor  Preprocessor  // default PassThroughPreprocessor
	Postprocessor Postprocessor // default PassThroughPostprocessor

	// Timeout bounds a single forward pass. Zero means no deadline.
	Timeout time.Duration

	// BreakerFailures consecutive forward failures open the breaker for
	// BreakerTimeout. Defaults: 5 and 30s.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// errCallerGone marks a forward pass cut short by the caller's own context,
// as opposed to the per-pass Timeout.
var errCallerGone = errors.New("caller gone")

// Gateway owns the model handle. Its states are unloaded and loaded; a
// failed load leaves it unloaded so a later request retries. There is no
// reload.
type Gateway struct {
	opts    Options
	logger  *slog.Logger
	mu      sync.Mutex // serializes loads
	model   atomic.Pointer[loadedModel]
	breaker *gobreaker.CircuitBreaker[[]float64]
}

// loadedModel boxes the interface so it fits in an atomic.Pointer.
type loadedModel struct {
	Model
}

var _ Predictor = (*Gateway)(nil)

func NewGateway(opts Options, logger *slog.Logger) *Gateway {
	if opts.Loader == nil {
		opts.Loader = LoadLinearText
	}
	if opts.Preprocessor == nil {
		opts.Preprocessor = PassThroughPreprocessor{}
	}
	if opts.Postprocessor == nil {
		opts.Postprocessor = PassThroughPostprocessor{}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	g := &Gateway{opts: opts, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        "inference-forward",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		// A caller hanging up says nothing about the model.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("inference circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	metrics.SetModelLoaded(false)
	return g
}

// Load reads the artifact unless it is already loaded. Concurrent callers
// block on the first load and observe its result; only one read of the
// artifact happens per successful load.
func (g *Gateway) Load(ctx context.Context) error {
	if g.model.Load() != nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model.Load() != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	m, err := g.opts.Loader(g.opts.ModelPath)
	if err != nil {
		g.logger.Error("model load failed",
			slog.String("path", g.opts.ModelPath),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, ErrModelMissing) {
			return apperror.Unavailable(fmt.Sprintf("model not available: artifact not found at %s", g.opts.ModelPath))
		}
		return apperror.Unavailable("model not available: " + err.Error())
	}

	g.model.Store(&loadedModel{Model: m})
	metrics.SetModelLoaded(true)

	info := m.Info()
	g.logger.Info("model loaded",
		slog.String("name", info.Name),
		slog.String("version", info.Version),
		slog.String("path", g.opts.ModelPath),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Loaded reports whether a model is ready to serve.
func (g *Gateway) Loaded() bool {
	return g.model.Load() != nil
}

// Info describes the loaded model; ok is false while unloaded.
func (g *Gateway) Info() (info ModelInfo, ok bool) {
	m := g.model.Load()
	if m == nil {
		return ModelInfo{}, false
	}
	return m.Info(), true
}

// Predict loads the model if needed and runs the pipeline. Errors are
// *apperror.AppError values: ErrUnavailable when no model can be served,
// ErrPipeline with Stage set otherwise.
func (g *Gateway) Predict(ctx context.Context, input string) (Prediction, error) {
	start := time.Now()

	if err := g.Load(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RecordPrediction(metrics.OutcomeCanceled, 0)
			return nil, apperror.Canceled(ctxErr)
		}
		metrics.RecordPrediction(metrics.OutcomeUnavailable, 0)
		return nil, err
	}
	m := g.model.Load()

	features, err := g.opts.Preprocessor.Preprocess(input)
	if err != nil {
		metrics.RecordPrediction(metrics.OutcomeRejected, 0)
		return nil, apperror.Pipeline(StagePreprocess, err, nil)
	}

	raw, err := g.breaker.Execute(func() ([]float64, error) {
		fctx := ctx
		if g.opts.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
			defer cancel()
		}
		out, err := m.Forward(fctx, features)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
		}
		return out, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordPrediction(metrics.OutcomeUnavailable, 0)
			return nil, apperror.Unavailable("inference is temporarily disabled after repeated failures")
		}
		if errors.Is(err, errCallerGone) {
			g.logger.Debug("prediction abandoned by caller", slog.String("error", err.Error()))
			metrics.RecordPrediction(metrics.OutcomeCanceled, 0)
			return nil, apperror.Canceled(ctx.Err())
		}
		g.logger.Error("model forward pass failed", slog.String("error", err.Error()))
		metrics.RecordPrediction(metrics.OutcomeError, 0)
		return nil, apperror.Pipeline(StageInference, err, nil)
	}

	prediction, err := g.opts.Postprocessor.Postprocess(raw)
	if err != nil {
		g.logger.Error("postprocessing failed",
			slog.String("error", err.Error()),
			slog.Any("raw", fmt.Sprint(raw)),
		)
		metrics.RecordPrediction(metrics.OutcomeError, 0)
		// fmt keeps NaN and Inf readable; they have no JSON encoding.
		return nil, apperror.Pipeline(StagePostprocess, err, fmt.Sprint(raw))
	}

	metrics.RecordPrediction(metrics.OutcomeOK, time.Since(start))
	return prediction, nil
}
