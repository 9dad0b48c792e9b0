// Generation-tagged recomputation scheduler
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/metrics"
	"image-filter-pipeline/internal/pixel"
)

// RenderFunc computes one output image. Pipeline.Render satisfies it.
type RenderFunc func(ctx context.Context, original *pixel.Buffer, params algorithms.Parameters) (*pixel.Buffer, error)

// Result is a completed render delivered to the presentation layer.
type Result struct {
	Generation uint64
	Image      *pixel.Buffer
	Parameters algorithms.Parameters
	Duration   time.Duration
	Metrics    map[string]float64
}

// Scheduler runs renders off the caller's goroutine. Every Submit starts a
// new generation and cancels the previous one. A result reaches the
// callback only if its generation is still the latest when it completes,
// so a slow stale render can never overwrite a newer one.
type Scheduler struct {
	logger logrus.FieldLogger
	render RenderFunc

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool
	debounce   time.Duration
	evaluator  *metrics.Evaluator
	onResult   func(Result)
	onError    func(error)

	stats statsRecorder

	// deliverMu serializes deliveries so callbacks never overlap and a
	// newer result is never presented before an older one finishes.
	// Submit and Invalidate never take it.
	deliverMu sync.Mutex

	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

func NewScheduler(render RenderFunc, logger logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:     logger,
		render:     render,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// SetCallbacks sets the result and error callbacks. Callbacks run on the
// render goroutine, one at a time and in generation order; wrap them (for
// example with fyne.Do) to hop threads. They may call Submit or
// Invalidate but must not call Close.
func (s *Scheduler) SetCallbacks(onResult func(Result), onError func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = onResult
	s.onError = onError
}

// SetEvaluator attaches quality metrics to every delivered result.
func (s *Scheduler) SetEvaluator(e *metrics.Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluator = e
}

// SetDebounce delays the start of each render by d. A request superseded
// within d never starts computing.
func (s *Scheduler) SetDebounce(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = d
}

// Generation returns the latest generation number.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stats returns a snapshot of render outcomes so far.
func (s *Scheduler) Stats() Stats {
	return s.stats.snapshot()
}

// Closed reports whether Close was called.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Submit cancels any in-flight render and starts a new one for the given
// snapshot. It returns the generation assigned to the request.
func (s *Scheduler) Submit(original *pixel.Buffer, params algorithms.Parameters) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}

	gen := s.advanceLocked()
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	debounce, evaluator := s.debounce, s.evaluator
	s.wg.Add(1)
	s.mu.Unlock()
	s.stats.submitted()

	s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"params":     fmt.Sprintf("%+v", params),
	}).Debug("SCHEDULER: Render requested")

	go s.run(ctx, cancel, gen, original, params, debounce, evaluator)
	return gen, nil
}

// Invalidate starts a new generation without scheduling work, so nothing
// in flight can be delivered anymore. A callback that already started
// runs to completion; consumers that keep state compare generations.
func (s *Scheduler) Invalidate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.advanceLocked()
	s.cancel = nil
	return gen
}

func (s *Scheduler) advanceLocked() uint64 {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	return s.generation
}

// Close cancels in-flight work and waits for every render goroutine to
// exit. Further Submits fail with ErrSessionClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.baseCancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("SCHEDULER: Closed")
}

func (s *Scheduler) run(
	ctx context.Context,
	cancel context.CancelFunc,
	gen uint64,
	original *pixel.Buffer,
	params algorithms.Parameters,
	debounce time.Duration,
	evaluator *metrics.Evaluator,
) {
	defer s.wg.Done()
	defer cancel()

	log := s.logger.WithField("generation", gen)

	if debounce > 0 {
		timer := time.NewTimer(debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.stats.cancelled()
			log.Debug("SCHEDULER: Superseded before start")
			return
		case <-timer.C:
		}
	}

	start := time.Now()
	out, err := s.safeRender(ctx, original, params)
	duration := time.Since(start)

	if err != nil {
		if IsCancelled(err) {
			s.stats.cancelled()
			log.WithField("duration", duration).Debug("SCHEDULER: Render cancelled")
			return
		}
		s.deliverError(gen, fmt.Errorf("render generation %d: %w", gen, err))
		return
	}
	s.stats.rendered(duration)

	result := Result{
		Generation: gen,
		Image:      out,
		Parameters: params,
		Duration:   duration,
	}
	if evaluator != nil && !out.Empty() {
		result.Metrics = evaluator.CalculateAll(original, out)
	}
	s.deliverResult(result)
}

func (s *Scheduler) safeRender(ctx context.Context, original *pixel.Buffer, params algorithms.Parameters) (out *pixel.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during render: %v", r)
		}
	}()
	return s.render(ctx, original, params)
}

// current reports whether gen is still the latest generation and returns
// the callbacks to use for it.
func (s *Scheduler) current(gen uint64) (bool, func(Result), func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.generation == gen, s.onResult, s.onError
}

func (s *Scheduler) deliverResult(result Result) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	log := s.logger.WithField("generation", result.Generation)
	ok, onResult, _ := s.current(result.Generation)
	if !ok {
		s.stats.stale()
		log.Debug("SCHEDULER: Dropping stale result")
		return
	}
	s.stats.delivered()

	log.WithFields(logrus.Fields{
		"size":     result.Image.String(),
		"duration": result.Duration,
	}).Info("SCHEDULER: Delivering result")
	if onResult != nil {
		onResult(result)
	}
}

func (s *Scheduler) deliverError(gen uint64, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	log := s.logger.WithField("generation", gen)
	ok, _, onError := s.current(gen)
	if !ok {
		s.stats.stale()
		log.WithError(err).Debug("SCHEDULER: Dropping stale error")
		return
	}
	s.stats.failed()

	log.WithError(err).Error("SCHEDULER: Render failed")
	if onError != nil {
		onError(err)
	}
}
