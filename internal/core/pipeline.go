// internal/core/pipeline.go
// Fixed-order filter pipeline over the original image
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/pixel"
)

// Pipeline renders a parameter snapshot over an original image. It holds
// no per-render state, so one Pipeline serves any number of concurrent
// renders.
type Pipeline struct {
	logger  logrus.FieldLogger
	workers int
	stages  []algorithms.Stage
}

// NewPipeline creates a pipeline that splits each stage across workers
// goroutines (GOMAXPROCS when workers <= 0).
func NewPipeline(logger logrus.FieldLogger, workers int) *Pipeline {
	return &Pipeline{
		logger:  logger,
		workers: workers,
		stages:  algorithms.Stages(),
	}
}

// Render applies brightness, contrast, saturation and gamma to original in
// that order, skipping stages whose parameter is the identity. The context
// is checked between stages and between row bands inside each stage; a
// cancelled render returns an error wrapping ErrCancelled and no buffer.
func (p *Pipeline) Render(ctx context.Context, original *pixel.Buffer, params algorithms.Parameters) (*pixel.Buffer, error) {
	if original == nil {
		return nil, ErrNoImage
	}
	if err := original.Validate(); err != nil {
		return nil, fmt.Errorf("malformed original image: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if original.Empty() {
		p.logger.WithField("size", original.String()).Debug("PIPELINE: Degenerate image, nothing to filter")
		return pixel.New(original.Width(), original.Height(), nil)
	}

	current := original
	for _, stage := range p.stages {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		if params.IsIdentity(stage.Kind) {
			continue
		}

		start := time.Now()
		result, err := stage.Apply(ctx, current, params, p.workers)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.WithField("stage", stage.Kind.String()).Debug("PIPELINE: Stage cancelled")
				return nil, cancelled(ctx)
			}
			return nil, fmt.Errorf("%s stage failed: %w", stage.Kind, err)
		}

		p.logger.WithFields(logrus.Fields{
			"stage":    stage.Kind.String(),
			"value":    params.Get(stage.Kind),
			"duration": time.Since(start),
		}).Debug("PIPELINE: Stage completed")
		current = result
	}

	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	return current, nil
}
