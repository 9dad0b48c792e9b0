package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/core"
	"image-filter-pipeline/internal/io"
	"image-filter-pipeline/internal/pixel"
)

type renderOptions struct {
	in, out    string
	brightness int
	contrast   int
	saturation int
	gamma      float64
	quality    int
	timeout    time.Duration
}

func newRenderCommand(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Apply adjustments to an image without opening a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("quality") {
				opts.quality = cfg.Export.Quality
			}

			session := core.NewSession(logger, core.SessionConfig{
				Workers: cfg.Render.Workers,
				Metrics: cfg.Render.Metrics,
			})
			defer session.Close()

			return runRender(cmd.Context(), logger, session, opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "Source image (defaults to the sample pattern)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Destination file (.jpg, .jpeg or .png)")
	cmd.Flags().IntVar(&opts.brightness, "brightness", 0, "Brightness offset [-255,255]")
	cmd.Flags().IntVar(&opts.contrast, "contrast", 0, "Contrast (-255,255)")
	cmd.Flags().IntVar(&opts.saturation, "saturation", 0, "Saturation (-255,255)")
	cmd.Flags().Float64Var(&opts.gamma, "gamma", 1.0, "Gamma [0.2,5.0]")
	cmd.Flags().IntVar(&opts.quality, "quality", 100, "JPEG quality [0,100]")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "Maximum time to wait for the render")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runRender(ctx context.Context, logger logrus.FieldLogger, session *core.Session, opts *renderOptions) error {
	original := pixel.SamplePattern(200, 100)
	if opts.in != "" {
		var err error
		if original, err = io.NewImageLoader(logger).LoadImage(opts.in); err != nil {
			return err
		}
	}

	results := make(chan core.Result, 1)
	failures := make(chan error, 1)
	session.SetCallbacks(
		func(r core.Result) { replaceLatest(results, r) },
		func(err error) { replaceLatest(failures, err) },
	)

	if _, err := session.LoadImage(original); err != nil {
		return err
	}

	values := map[algorithms.Kind]float64{
		algorithms.Brightness: float64(opts.brightness),
		algorithms.Contrast:   float64(opts.contrast),
		algorithms.Saturation: float64(opts.saturation),
		algorithms.Gamma:      opts.gamma,
	}

	var want uint64
	for _, kind := range algorithms.Kinds() {
		if algorithms.Identity().Get(kind) == values[kind] {
			continue
		}
		gen, err := session.SetParameter(kind, values[kind])
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		want = gen
	}

	rendered := original
	if want != 0 {
		r, err := awaitGeneration(ctx, results, failures, want, opts.timeout)
		if err != nil {
			return err
		}
		rendered = r.Image
		logger.WithFields(logrus.Fields{
			"generation": r.Generation,
			"duration":   r.Duration,
			"metrics":    r.Metrics,
		}).Info("Render completed")
	}

	if err := io.SaveImage(rendered, opts.out, opts.quality); err != nil {
		return err
	}
	stats := session.Stats()
	logger.WithFields(logrus.Fields{
		"out":       opts.out,
		"submitted": stats.Submitted,
		"delivered": stats.Delivered,
		"dropped":   stats.Stale + stats.Cancelled,
	}).Info("Image written")
	return nil
}

// awaitGeneration waits for the result of generation want. Earlier
// generations may still arrive first when they complete before being
// superseded.
func awaitGeneration(ctx context.Context, results <-chan core.Result, failures <-chan error, want uint64, timeout time.Duration) (core.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case r := <-results:
			if r.Generation == want {
				return r, nil
			}
		case err := <-failures:
			return core.Result{}, err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return core.Result{}, fmt.Errorf("render did not finish within %v", timeout)
			}
			return core.Result{}, ctx.Err()
		}
	}
}

// replaceLatest stores v in a one-slot channel, discarding an unread
// older value.
func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
