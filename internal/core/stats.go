// Render outcome tracking for the scheduler
package core

import (
	"sync"
	"time"
)

// Stats summarizes what happened to submitted renders.
type Stats struct {
	Submitted int
	Delivered int
	// Stale renders completed after a newer generation was requested.
	Stale     int
	Cancelled int
	Failed    int

	AverageRenderTime time.Duration
	LastRenderTime    time.Duration
}

type statsRecorder struct {
	mu          sync.Mutex
	stats       Stats
	renderTotal time.Duration
	renderCount int
}

func (r *statsRecorder) submitted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Submitted++
}

// rendered records the duration of a render that ran to completion,
// whether or not its result is delivered.
func (r *statsRecorder) rendered(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderTotal += d
	r.renderCount++
	r.stats.LastRenderTime = d
}

func (r *statsRecorder) delivered() { r.count(&r.stats.Delivered) }
func (r *statsRecorder) stale()     { r.count(&r.stats.Stale) }
func (r *statsRecorder) cancelled() { r.count(&r.stats.Cancelled) }
func (r *statsRecorder) failed()    { r.count(&r.stats.Failed) }

func (r *statsRecorder) count(field *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*field++
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	if r.renderCount > 0 {
		s.AverageRenderTime = r.renderTotal / time.Duration(r.renderCount)
	}
	return s
}
