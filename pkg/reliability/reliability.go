package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ClassifiedError is implemented by errors that carry a stable failure code
// and a retry hint. Provider errors implement it; anything else is treated
// as an unclassified, non-retryable failure.
type ClassifiedError interface {
	error
	ErrorCode() string
	IsRetryable() bool
}

// Detailer optionally exposes a diagnostic payload copied into ErrorInfo.
type Detailer interface {
	ErrorDetails() any
}

// ErrorInfo is the flattened failure half of a Result.
type ErrorInfo struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// Result is a discriminated call outcome. Expected failures travel here,
// never as panics.
type Result[T any] struct {
	OK    bool
	Data  T
	Error *ErrorInfo
}

// Op is the unit of work the wrapper supervises.
type Op[T any] func(ctx context.Context) (T, error)

// Options bounds one supervised call.
type Options struct {
	// TimeoutMs bounds each attempt. Zero means no per-attempt timeout.
	TimeoutMs int
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryDelayMs seeds the exponential backoff between attempts.
	RetryDelayMs int
	// RetryOnCodes whitelists the error codes eligible for retry. An error
	// must both be retryable and carry a whitelisted code to be retried.
	RetryOnCodes []string
	// TimeoutErr builds the error returned when an attempt exceeds
	// TimeoutMs, so callers control the concrete type. Optional.
	TimeoutErr func(timeoutMs int) error
}

const defaultRetryDelayMs = 250

// Call runs op under the configured timeout and bounded retries, returning
// a discriminated result instead of an error.
func Call[T any](ctx context.Context, op Op[T], opts Options) Result[T] {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	delayMs := opts.RetryDelayMs
	if delayMs <= 0 {
		delayMs = defaultRetryDelayMs
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoffDelay(delayMs, attempt-1)); err != nil {
				return failure[T](err)
			}
		}

		data, err := runAttempt(ctx, op, opts)
		if err == nil {
			return Result[T]{OK: true, Data: data}
		}
		lastErr = err

		if !retryEligible(err, opts.RetryOnCodes) {
			break
		}
	}
	return failure[T](lastErr)
}

// Write runs op exactly once. Retries are forced off here, not just
// defaulted, so non-idempotent operations can never duplicate side effects
// through a misconfigured call site.
func Write[T any](ctx context.Context, op Op[T], opts Options) Result[T] {
	opts.MaxRetries = 0
	return Call(ctx, op, opts)
}

// WithTimeout races op against a timer. On expiry the attempt fails and the
// op's eventual result is discarded; the result channel is buffered so the
// goroutine never blocks.
func WithTimeout[T any](ctx context.Context, op Op[T], timeoutMs int, timeoutErr func(timeoutMs int) error) (T, error) {
	var zero T
	if timeoutMs <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	type outcome struct {
		data T
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := op(attemptCtx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			if timeoutErr != nil {
				return zero, timeoutErr(timeoutMs)
			}
			return zero, genericTimeoutError{timeoutMs: timeoutMs}
		}
		return zero, attemptCtx.Err()
	}
}

func runAttempt[T any](ctx context.Context, op Op[T], opts Options) (T, error) {
	return WithTimeout(ctx, op, opts.TimeoutMs, opts.TimeoutErr)
}

func retryEligible(err error, whitelist []string) bool {
	var classified ClassifiedError
	if !errors.As(err, &classified) {
		return false
	}
	if !classified.IsRetryable() {
		return false
	}
	for _, code := range whitelist {
		if code == classified.ErrorCode() {
			return true
		}
	}
	return false
}

func failure[T any](err error) Result[T] {
	return Result[T]{OK: false, Error: classify(err)}
}

func classify(err error) *ErrorInfo {
	if err == nil {
		return &ErrorInfo{Message: "unknown failure", Code: "UNKNOWN"}
	}

	var classified ClassifiedError
	if errors.As(err, &classified) {
		info := &ErrorInfo{
			Message:   classified.Error(),
			Code:      classified.ErrorCode(),
			Retryable: classified.IsRetryable(),
		}
		var detailer Detailer
		if errors.As(err, &detailer) {
			info.Details = detailer.ErrorDetails()
		}
		return info
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ErrorInfo{Message: err.Error(), Code: "TIMEOUT", Retryable: true}
	case errors.Is(err, context.Canceled):
		return &ErrorInfo{Message: err.Error(), Code: "CANCELED"}
	default:
		return &ErrorInfo{Message: err.Error(), Code: "UNKNOWN"}
	}
}

func backoffDelay(baseMs, attempt int) time.Duration {
	delay := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type genericTimeoutError struct {
	timeoutMs int
}

func (e genericTimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %dms", e.timeoutMs)
}

func (e genericTimeoutError) ErrorCode() string { return "TIMEOUT" }

func (e genericTimeoutError) IsRetryable() bool { return true }
