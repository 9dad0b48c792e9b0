// Editing session: original image, parameters and last delivered render
package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/metrics"
	"image-filter-pipeline/internal/pixel"
)

// SessionConfig tunes the render side of a session.
type SessionConfig struct {
	Workers  int
	Debounce time.Duration
	Metrics  bool
}

// Session owns the original image and the parameter set. Every parameter
// change renders from the original, never from a previous result.
type Session struct {
	logger    logrus.FieldLogger
	pipeline  *Pipeline
	scheduler *Scheduler

	// opMu serializes requests so a load and a parameter change can never
	// interleave between invalidation and submission.
	opMu sync.Mutex

	mu             sync.RWMutex
	original       *pixel.Buffer
	params         algorithms.Parameters
	last           *pixel.Buffer
	lastGeneration uint64
	onRender       func(Result)
	onError        func(error)
}

func NewSession(logger logrus.FieldLogger, cfg SessionConfig) *Session {
	s := &Session{
		logger:   logger,
		pipeline: NewPipeline(logger, cfg.Workers),
		params:   algorithms.Identity(),
	}

	s.scheduler = NewScheduler(s.pipeline.Render, logger)
	s.scheduler.SetDebounce(cfg.Debounce)
	if cfg.Metrics {
		s.scheduler.SetEvaluator(metrics.NewEvaluator())
	}
	s.scheduler.SetCallbacks(s.handleResult, s.handleError)
	return s
}

// SetCallbacks sets the presentation callbacks. onRender receives every
// delivered render; onError receives non-cancellation failures.
func (s *Session) SetCallbacks(onRender func(Result), onError func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRender = onRender
	s.onError = onError
}

// LoadImage replaces the original image, resets every parameter to its
// identity value and returns the image for immediate display. Renders of
// the previous image that have not reached the callback yet never will.
func (s *Session) LoadImage(img *pixel.Buffer) (*pixel.Buffer, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("cannot load image: %w", err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.scheduler.Closed() {
		return nil, ErrSessionClosed
	}
	gen := s.scheduler.Invalidate()

	s.mu.Lock()
	s.original = img
	s.params = algorithms.Identity()
	s.last = img
	s.lastGeneration = gen
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"size":       img.String(),
		"generation": gen,
	}).Info("SESSION: Original image loaded")
	return img, nil
}

// SetParameter updates one parameter, clamped into its domain, and
// schedules a render of the new snapshot. It returns the generation of
// the request.
func (s *Session) SetParameter(kind algorithms.Kind, value float64) (uint64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.original == nil {
		s.mu.Unlock()
		return 0, ErrNoImage
	}
	params, err := s.params.With(kind, value)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.params = params
	original := s.original
	s.mu.Unlock()

	return s.scheduler.Submit(original, params)
}

// Parameters returns a copy of the current parameter set.
func (s *Session) Parameters() algorithms.Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Original returns the current original image, or nil.
func (s *Session) Original() *pixel.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.original
}

// Last returns the most recently delivered image and its generation. Right
// after a load this is the original itself.
func (s *Session) Last() (*pixel.Buffer, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastGeneration
}

// Stats reports render outcomes for this session.
func (s *Session) Stats() Stats {
	return s.scheduler.Stats()
}

// Close cancels in-flight renders and waits for them to finish. It skips
// opMu so a callback inside LoadImage or SetParameter can still return.
func (s *Session) Close() {
	s.scheduler.Close()
	s.logger.Info("SESSION: Closed")
}

func (s *Session) handleResult(result Result) {
	s.mu.Lock()
	if result.Generation < s.lastGeneration {
		s.mu.Unlock()
		s.logger.WithField("generation", result.Generation).
			Debug("SESSION: Ignoring render superseded by a load")
		return
	}
	s.last = result.Image
	s.lastGeneration = result.Generation
	onRender := s.onRender
	s.mu.Unlock()

	if onRender != nil {
		onRender(result)
	}
}

func (s *Session) handleError(err error) {
	s.mu.RLock()
	onError := s.onError
	s.mu.RUnlock()

	if onError != nil {
		onError(err)
	}
}
