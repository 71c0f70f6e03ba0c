package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// inFlightRequest tracks a single forecast computation that multiple callers may wait for.
type inFlightRequest struct {
	done   chan struct{} // closed when result and err are set
	result models.Forecast
	err    error
}

// requestCoalescer prevents cache stampede by coalescing concurrent computations for the same key.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

// newRequestCoalescer creates a new requestCoalescer with the specified wait timeout.
func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight computation for key or starts fn. shared reports
// whether the caller joined an existing computation. fn runs detached from the
// caller's cancellation so one abandoned request does not fail the others;
// each caller still stops waiting when its own context or the timeout ends.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(ctx context.Context) (models.Forecast, error)) (result models.Forecast, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
	}
	rc.mu.Unlock()

	if !exists {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		go func() {
			defer cancel()
			req.result, req.err = fn(runCtx)
			rc.cleanup(key)
			close(req.done)
		}()
	}

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-req.done:
		if req.err != nil {
			return models.Forecast{}, exists, req.err
		}
		return req.result, exists, nil
	case <-waitCtx.Done():
		return models.Forecast{}, exists, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key. Must be called after request completes.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
