// Package ports defines the abstract external capabilities the pipeline core
// calls through fixed contracts: classification, file scanning and text
// vectorization. Production and deterministic test implementations both
// satisfy the same interfaces.
package ports

import (
	"context"
	"time"

	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// Classifier returns a label with confidence for a text, e.g. its language or
// the caller's intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
}

// Scanner returns an infection verdict for a file.
type Scanner interface {
	Scan(ctx context.Context, file model.FileRef) (model.ScanVerdict, error)
}

// Vectorizer converts text into a fixed-dimension vector.
type Vectorizer interface {
	Dimension() int
	Vectorize(ctx context.Context, text string) ([]float32, error)
}

// guard runs fn bounded by timeout. Port implementations are not required to
// honor context cancellation themselves, so the call runs in its own goroutine
// and a timeout is surfaced as a transient KindPortTimeout error.
func guard[T any](ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return zero, helper.NewError(op, out.err)
		}
		return out.value, nil
	case <-ctx.Done():
		return zero, helper.NewKindError(op, helper.KindPortTimeout, ctx.Err())
	}
}

// ClassifyWithTimeout calls the classifier port bounded by timeout.
func ClassifyWithTimeout(ctx context.Context, c Classifier, text string, timeout time.Duration) (model.Classification, error) {
	return guard(ctx, "classify", timeout, func(ctx context.Context) (model.Classification, error) {
		return c.Classify(ctx, text)
	})
}

// ScanWithTimeout calls the scanner port bounded by timeout.
func ScanWithTimeout(ctx context.Context, s Scanner, file model.FileRef, timeout time.Duration) (model.ScanVerdict, error) {
	return guard(ctx, "scan", timeout, func(ctx context.Context) (model.ScanVerdict, error) {
		return s.Scan(ctx, file)
	})
}

// VectorizeWithTimeout calls the vectorizer port bounded by timeout.
func VectorizeWithTimeout(ctx context.Context, v Vectorizer, text string, timeout time.Duration) ([]float32, error) {
	return guard(ctx, "vectorize", timeout, func(ctx context.Context) ([]float32, error) {
		return v.Vectorize(ctx, text)
	})
}
