package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func TestRequestCoalescer_GetOrDo_ConcurrentRequests(t *testing.T) {
	coalescer := newRequestCoalescer(5 * time.Second)
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (models.Forecast, error) {
		calls.Add(1)
		<-release
		return models.Forecast{RegionID: "turkana", HorizonDays: 30}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]models.Forecast, n)
	shared := make([]bool, n)
	errs := make([]error, n)
	var started sync.WaitGroup
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			started.Done()
			results[idx], shared[idx], errs[idx] = coalescer.GetOrDo(context.Background(), "turkana:30", fn)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	sharedCount := 0
	for i := range results {
		if errs[i] != nil {
			t.Errorf("request %d error = %v, want nil", i, errs[i])
		}
		if results[i].RegionID != "turkana" {
			t.Errorf("request %d region = %q, want turkana", i, results[i].RegionID)
		}
		if shared[i] {
			sharedCount++
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn call count = %d, want 1 (coalescing failed)", got)
	}
	if sharedCount != n-1 {
		t.Errorf("shared = %d, want %d", sharedCount, n-1)
	}
}

func TestRequestCoalescer_GetOrDo_ErrorPropagation(t *testing.T) {
	coalescer := newRequestCoalescer(5 * time.Second)
	wantErr := errors.New("store unavailable")

	_, shared, err := coalescer.GetOrDo(context.Background(), "turkana:30", func(ctx context.Context) (models.Forecast, error) {
		return models.Forecast{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("GetOrDo() error = %v, want %v", err, wantErr)
	}
	if shared {
		t.Error("GetOrDo() shared = true for the initiating caller")
	}
}

func TestRequestCoalescer_GetOrDo_SequentialCallsRecompute(t *testing.T) {
	coalescer := newRequestCoalescer(time.Second)
	var calls atomic.Int32
	fn := func(ctx context.Context) (models.Forecast, error) {
		calls.Add(1)
		return models.Forecast{RegionID: "garissa"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, _, err := coalescer.GetOrDo(context.Background(), "garissa:7", fn); err != nil {
			t.Fatalf("GetOrDo() error = %v", err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("fn call count = %d, want 3 (completed requests are not cached)", got)
	}
}

func TestRequestCoalescer_GetOrDo_WaiterTimeout(t *testing.T) {
	coalescer := newRequestCoalescer(30 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	_, _, err := coalescer.GetOrDo(context.Background(), "slow:30", func(ctx context.Context) (models.Forecast, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return models.Forecast{}, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrDo() error = %v, want deadline exceeded", err)
	}
}

func TestRequestCoalescer_GetOrDo_CallerCancelDoesNotAbortComputation(t *testing.T) {
	coalescer := newRequestCoalescer(time.Second)
	computed := make(chan error, 1)
	release := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
		close(release)
	}()

	_, _, err := coalescer.GetOrDo(ctx, "turkana:30", func(runCtx context.Context) (models.Forecast, error) {
		<-release
		computed <- runCtx.Err()
		return models.Forecast{RegionID: "turkana"}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrDo() error = %v, want context.Canceled", err)
	}
	select {
	case runErr := <-computed:
		if runErr != nil {
			t.Errorf("computation context error = %v, want nil", runErr)
		}
	case <-time.After(time.Second):
		t.Fatal("computation did not finish")
	}
}
