package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/metrics"
	"image-filter-pipeline/internal/pixel"
)

const waitFor = 2 * time.Second

// gatedRender blocks each render until its tag (the brightness value) is
// released, ignoring cancellation, so tests control completion order.
type gatedRender struct {
	mu    sync.Mutex
	gates map[int]chan struct{}
	calls atomic.Int32
}

func newGatedRender(tags ...int) *gatedRender {
	g := &gatedRender{gates: make(map[int]chan struct{})}
	for _, tag := range tags {
		g.gates[tag] = make(chan struct{})
	}
	return g
}

func (g *gatedRender) release(tag int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[tag])
}

func (g *gatedRender) render(_ context.Context, _ *pixel.Buffer, params algorithms.Parameters) (*pixel.Buffer, error) {
	g.calls.Add(1)
	g.mu.Lock()
	gate := g.gates[params.Brightness]
	g.mu.Unlock()

	<-gate
	return pixel.Filled(1, 1, pixel.Opaque(uint8(params.Brightness), 0, 0))
}

func tagged(tag int) algorithms.Parameters {
	p := algorithms.Identity()
	p.Brightness = tag
	return p
}

func countMessages(hook *test.Hook, msg string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			n++
		}
	}
	return n
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func TestSchedulerDeliversOnlyLatestGeneration(t *testing.T) {
	logger, hook := newTestLogger()
	gated := newGatedRender(1, 2, 3)
	s := NewScheduler(gated.render, logger)
	defer s.Close()

	delivered := make(chan Result, 3)
	s.SetCallbacks(
		func(r Result) { delivered <- r },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)

	original := pixel.SamplePattern(4, 4)
	for i, tag := range []int{1, 2, 3} {
		gen, err := s.Submit(original, tagged(tag))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), gen)
	}

	gated.release(3)
	select {
	case r := <-delivered:
		assert.Equal(t, uint64(3), r.Generation)
		assert.Equal(t, 3, r.Parameters.Brightness)
		assert.Equal(t, uint8(3), r.Image.At(0, 0).R)
	case <-time.After(waitFor):
		t.Fatal("generation 3 was not delivered")
	}

	gated.release(1)
	gated.release(2)
	require.Eventually(t, func() bool {
		return countMessages(hook, "SCHEDULER: Dropping stale result") == 2
	}, waitFor, 5*time.Millisecond)

	assert.Empty(t, delivered)
	assert.Equal(t, uint64(3), s.Generation())

	stats := s.Stats()
	assert.Equal(t, 3, stats.Submitted)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 2, stats.Stale)
	assert.Zero(t, stats.Failed)
}

func TestSchedulerCancelsSupersededWork(t *testing.T) {
	logger, _ := newTestLogger()
	started := make(chan struct{})
	var observed atomic.Bool

	render := func(ctx context.Context, original *pixel.Buffer, params algorithms.Parameters) (*pixel.Buffer, error) {
		if params.Brightness == 1 {
			close(started)
			<-ctx.Done()
			observed.Store(true)
			return nil, cancelled(ctx)
		}
		return original, nil
	}

	s := NewScheduler(render, logger)
	defer s.Close()

	delivered := make(chan Result, 2)
	s.SetCallbacks(
		func(r Result) { delivered <- r },
		func(err error) { t.Errorf("cancellation surfaced as error: %v", err) },
	)

	original := pixel.SamplePattern(2, 2)
	_, err := s.Submit(original, tagged(1))
	require.NoError(t, err)
	<-started
	_, err = s.Submit(original, tagged(2))
	require.NoError(t, err)

	select {
	case r := <-delivered:
		assert.Equal(t, uint64(2), r.Generation)
	case <-time.After(waitFor):
		t.Fatal("generation 2 was not delivered")
	}
	require.Eventually(t, observed.Load, waitFor, 5*time.Millisecond)
	assert.Empty(t, delivered)
}

func TestSchedulerReportsFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		render RenderFunc
		check  func(t *testing.T, err error)
	}{
		{
			name: "error",
			render: func(context.Context, *pixel.Buffer, algorithms.Parameters) (*pixel.Buffer, error) {
				return nil, boom
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, boom) },
		},
		{
			name: "panic",
			render: func(context.Context, *pixel.Buffer, algorithms.Parameters) (*pixel.Buffer, error) {
				panic("malformed buffer")
			},
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "malformed buffer") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			s := NewScheduler(tt.render, logger)
			defer s.Close()

			failures := make(chan error, 1)
			s.SetCallbacks(
				func(Result) { t.Error("unexpected result") },
				func(err error) { failures <- err },
			)

			_, err := s.Submit(pixel.SamplePattern(2, 2), algorithms.Identity())
			require.NoError(t, err)

			select {
			case err := <-failures:
				tt.check(t, err)
			case <-time.After(waitFor):
				t.Fatal("failure was not reported")
			}

			// the scheduler stays usable after a failure
			assert.False(t, s.Closed())
		})
	}
}

func TestSchedulerSilentlyDropsCancellation(t *testing.T) {
	logger, hook := newTestLogger()
	done := make(chan struct{})
	render := func(ctx context.Context, _ *pixel.Buffer, _ algorithms.Parameters) (*pixel.Buffer, error) {
		defer close(done)
		return nil, ErrCancelled
	}

	s := NewScheduler(render, logger)
	s.SetCallbacks(
		func(Result) { t.Error("unexpected result") },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)

	_, err := s.Submit(pixel.SamplePattern(2, 2), algorithms.Identity())
	require.NoError(t, err)
	<-done
	s.Close()

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level, e.Message)
	}
}

func TestSchedulerDebounceSkipsSupersededRequests(t *testing.T) {
	logger, _ := newTestLogger()
	var rendered []int
	var mu sync.Mutex
	render := func(_ context.Context, original *pixel.Buffer, params algorithms.Parameters) (*pixel.Buffer, error) {
		mu.Lock()
		rendered = append(rendered, params.Brightness)
		mu.Unlock()
		return original, nil
	}

	s := NewScheduler(render, logger)
	defer s.Close()
	s.SetDebounce(100 * time.Millisecond)

	delivered := make(chan Result, 3)
	s.SetCallbacks(func(r Result) { delivered <- r }, nil)

	original := pixel.SamplePattern(2, 2)
	for _, tag := range []int{1, 2, 3} {
		_, err := s.Submit(original, tagged(tag))
		require.NoError(t, err)
	}

	select {
	case r := <-delivered:
		assert.Equal(t, 3, r.Parameters.Brightness)
	case <-time.After(waitFor):
		t.Fatal("debounced request was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, rendered)
	require.Eventually(t, func() bool { return s.Stats().Cancelled == 2 }, waitFor, 5*time.Millisecond)
}

func TestSchedulerAttachesMetrics(t *testing.T) {
	logger, _ := newTestLogger()
	p := NewPipeline(logger, 0)
	s := NewScheduler(p.Render, logger)
	defer s.Close()
	s.SetEvaluator(metrics.NewEvaluator())

	delivered := make(chan Result, 1)
	s.SetCallbacks(func(r Result) { delivered <- r }, nil)

	_, err := s.Submit(pixel.SamplePattern(8, 8), tagged(5))
	require.NoError(t, err)

	select {
	case r := <-delivered:
		assert.InDelta(t, 25.0, r.Metrics["mse"], 1e-9)
		assert.InDelta(t, 5.0, r.Metrics["luminance_shift"], 1e-9)
		assert.Contains(t, r.Metrics, "psnr")
	case <-time.After(waitFor):
		t.Fatal("result was not delivered")
	}
}

func TestSchedulerCloseWaitsAndRejects(t *testing.T) {
	logger, _ := newTestLogger()
	var finished atomic.Bool
	started := make(chan struct{})
	render := func(ctx context.Context, _ *pixel.Buffer, _ algorithms.Parameters) (*pixel.Buffer, error) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return nil, cancelled(ctx)
	}

	s := NewScheduler(render, logger)
	_, err := s.Submit(pixel.SamplePattern(2, 2), algorithms.Identity())
	require.NoError(t, err)
	<-started

	s.Close()
	assert.True(t, finished.Load())
	assert.True(t, s.Closed())

	_, err = s.Submit(pixel.SamplePattern(2, 2), algorithms.Identity())
	assert.ErrorIs(t, err, ErrSessionClosed)

	s.Close()
}

func TestSchedulerInvalidateDropsInFlight(t *testing.T) {
	logger, hook := newTestLogger()
	gated := newGatedRender(7)
	s := NewScheduler(gated.render, logger)
	defer s.Close()
	s.SetCallbacks(func(Result) { t.Error("invalidated result delivered") }, nil)

	gen, err := s.Submit(pixel.SamplePattern(2, 2), tagged(7))
	require.NoError(t, err)
	assert.Equal(t, gen+1, s.Invalidate())

	gated.release(7)
	require.Eventually(t, func() bool {
		return countMessages(hook, "SCHEDULER: Dropping stale result") == 1
	}, waitFor, 5*time.Millisecond)
}

func TestSchedulerInvalidateFromCallback(t *testing.T) {
	logger, _ := newTestLogger()
	s := NewScheduler(func(_ context.Context, original *pixel.Buffer, _ algorithms.Parameters) (*pixel.Buffer, error) {
		return original, nil
	}, logger)
	defer s.Close()

	invalidated := make(chan uint64, 1)
	s.SetCallbacks(func(Result) { invalidated <- s.Invalidate() }, nil)

	gen, err := s.Submit(pixel.SamplePattern(2, 2), algorithms.Identity())
	require.NoError(t, err)

	select {
	case next := <-invalidated:
		assert.Equal(t, gen+1, next)
	case <-time.After(waitFor):
		t.Fatal("Invalidate from the result callback did not return")
	}
}
