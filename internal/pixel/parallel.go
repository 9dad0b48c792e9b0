package pixel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// rowsPerBand bounds the work done between two cancellation checks.
const rowsPerBand = 16

// Map applies fn to every pixel of src and returns the result as a new
// buffer. Rows are split into bands processed by up to workers goroutines
// (GOMAXPROCS when workers <= 0). Cancellation is checked before each band;
// a cancelled context yields ctx.Err() and no buffer.
func Map(ctx context.Context, src *Buffer, workers int, fn func(Pixel) Pixel) (*Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	out := alloc(src.width, src.height)
	err := forEachBand(ctx, src, workers, func(_, start, end int) {
		in, dst := src.pix[start:end], out.pix[start:end]
		for i := range in {
			dst[i] = fn(in[i])
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sum adds fn over every pixel of src. Partial sums are kept per band so
// the total is exact regardless of scheduling.
func Sum(ctx context.Context, src *Buffer, workers int, fn func(Pixel) int64) (int64, error) {
	if err := src.Validate(); err != nil {
		return 0, err
	}

	partial := make([]int64, bandCount(src.height))
	err := forEachBand(ctx, src, workers, func(band, start, end int) {
		var s int64
		for _, p := range src.pix[start:end] {
			s += fn(p)
		}
		partial[band] = s
	})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, s := range partial {
		total += s
	}
	return total, nil
}

func bandCount(height int) int {
	return (height + rowsPerBand - 1) / rowsPerBand
}

// forEachBand calls fn(band, start, end) with pixel index ranges covering
// whole row bands of b.
func forEachBand(ctx context.Context, b *Buffer, workers int, fn func(band, start, end int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for band, n := 0, bandCount(b.height); band < n; band++ {
		band := band
		if gctx.Err() != nil {
			break
		}
		start := band * rowsPerBand * b.width
		end := min((band+1)*rowsPerBand, b.height) * b.width
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(band, start, end)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
