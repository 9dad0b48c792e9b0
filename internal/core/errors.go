package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoImage is returned when a render is requested before any
	// original image was loaded.
	ErrNoImage = errors.New("no original image loaded")

	// ErrSessionClosed is returned for requests issued after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrCancelled marks a computation abandoned because a newer request
	// superseded it. It is an expected outcome, never shown to the user.
	ErrCancelled = errors.New("computation cancelled")
)

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

// IsCancelled reports whether err stems from cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
