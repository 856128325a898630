// Package batch submits long input sequences to the CRM in bounded chunks.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// MaxChunkSize is the largest batch the CRM batch-create endpoints accept
const MaxChunkSize = 100

// SubmitFunc sends one chunk to the remote store
type SubmitFunc[T any] func(ctx context.Context, chunk []T) error

// Options controls chunk submission
type Options struct {
	// Stream names the upload in logs, e.g. "companies"
	Stream string
	// Attempts per chunk; values below 1 mean a single attempt
	Attempts int
	// Sleep waits between attempts; nil uses time.Sleep guarded by ctx
	Sleep func(ctx context.Context, d time.Duration) error
	// Retryable decides whether a failed attempt is worth repeating; nil retries everything
	Retryable func(err error) bool
	// Detail extracts the remote response from an error for the log; may be nil
	Detail func(err error) string

	Logger zerolog.Logger
}

// ChunkFailure records one chunk that could not be submitted
type ChunkFailure struct {
	Chunk int   `json:"chunk"` // 1-based
	Start int   `json:"start"` // offset of the first item in the input
	Size  int   `json:"size"`
	Err   error `json:"-"`
}

// PartialError is returned by a SubmitFunc when the remote store created only
// some of the chunk's items. A partial chunk is never retried.
type PartialError struct {
	Accepted int
	Err      error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d items accepted: %v", e.Accepted, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Report summarises a Submit call
type Report struct {
	Stream    string         `json:"stream"`
	Items     int            `json:"items"`
	Chunks    int            `json:"chunks"`
	Submitted int            `json:"submitted"` // items the remote store accepted
	Failures  []ChunkFailure `json:"failures,omitempty"`
}

// Succeeded returns the number of chunks that were accepted
func (r Report) Succeeded() int {
	return r.Chunks - len(r.Failures)
}

// Failed reports whether any chunk failed
func (r Report) Failed() bool {
	return len(r.Failures) > 0
}

// Split cuts items into consecutive chunks of at most size items. The chunks
// share backing storage with items.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxChunkSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// Submit sends items in chunks of chunkSize, one chunk at a time and in input
// order. A failed chunk is logged and recorded; the remaining chunks are still
// submitted. Submit stops early only when ctx is done.
func Submit[T any](ctx context.Context, items []T, chunkSize int, submit SubmitFunc[T], opts Options) Report {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}

	chunks := Split(items, chunkSize)
	report := Report{Stream: opts.Stream, Items: len(items), Chunks: len(chunks)}
	log := opts.Logger.With().Str("stream", opts.Stream).Logger()

	if len(chunks) == 0 {
		return report
	}

	log.Info().Int("items", len(items)).Int("chunks", len(chunks)).Int("chunk_size", chunkSize).
		Msg("Submitting in chunks")

	for i, chunk := range chunks {
		chunkNum := i + 1
		start := i * chunkSize

		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, ChunkFailure{Chunk: chunkNum, Start: start, Size: len(chunk), Err: err})
			continue
		}

		err := retryWithBackoff(ctx, func() error { return submit(ctx, chunk) }, opts, chunkNum, len(chunks))
		if err != nil {
			event := log.Error().Err(err).Int("chunk", chunkNum).Int("chunks", len(chunks)).Int("size", len(chunk))
			if opts.Detail != nil {
				if detail := opts.Detail(err); detail != "" {
					event = event.Str("response", detail)
				}
			}
			var partial *PartialError
			if errors.As(err, &partial) {
				report.Submitted += partial.Accepted
				event = event.Int("accepted", partial.Accepted)
			}
			event.Msg("Chunk failed; continuing with remaining chunks")
			report.Failures = append(report.Failures, ChunkFailure{Chunk: chunkNum, Start: start, Size: len(chunk), Err: err})
			continue
		}

		report.Submitted += len(chunk)
		log.Info().Int("chunk", chunkNum).Int("chunks", len(chunks)).Int("size", len(chunk)).
			Msg("✓ Chunk submitted")
	}

	log.Info().Int("submitted", report.Submitted).Int("failed_chunks", len(report.Failures)).
		Msg("All chunks processed")

	return report
}

// retryWithBackoff runs operation up to opts.Attempts times with quadratic
// backoff: 500ms, 2s, 4.5s.
func retryWithBackoff(ctx context.Context, operation func() error, opts Options, chunkNum, totalChunks int) error {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				opts.Logger.Info().Int("chunk", chunkNum).Int("attempt", attempt).
					Msgf("✓ Chunk %d/%d succeeded on retry %d/%d", chunkNum, totalChunks, attempt, attempts)
			}
			return nil
		}
		lastErr = err

		var partial *PartialError
		if errors.As(err, &partial) || (opts.Retryable != nil && !opts.Retryable(err)) {
			if attempt == 1 {
				return err
			}
			return fmt.Errorf("failed after %d attempts: %w", attempt, err)
		}

		if attempt < attempts {
			backoff := time.Duration(500*attempt*attempt) * time.Millisecond
			opts.Logger.Warn().Err(err).Int("chunk", chunkNum).
				Msgf("Attempt %d/%d failed (retrying in %v)", attempt, attempts, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, lastErr)
			}
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
