package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewKeyedPool_Defaults(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 0, -1)
	defer pool.Close()

	if pool.Workers() != 1 {
		t.Errorf("Expected 1 worker (default), got %d", pool.Workers())
	}
}

func TestKeyedPool_Do(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 4, 8)
	defer pool.Close()

	v, err := pool.Do(context.Background(), "pool-a", func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("Do() = %v, want 42", v)
	}

	boom := errors.New("boom")
	_, err = pool.Do(context.Background(), "pool-a", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() error = %v, want boom", err)
	}
}

func TestRun_Typed(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 2, 4)
	defer pool.Close()

	got, err := Run(context.Background(), pool, "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("Run() = %q, %v", got, err)
	}
}

func TestKeyedPool_SameKeyRunsInOrder(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 8, 100)
	defer pool.Close()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		err := pool.Submit(context.Background(), Job{Key: "same", Execute: func(ctx context.Context) (any, error) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestKeyedPool_SameKeyNeverOverlaps(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 4, 16)
	defer pool.Close()

	var inFlight, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Do(context.Background(), "hot", func(ctx context.Context) (any, error) {
				n := inFlight.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent jobs for one key = %d, want 1", maxSeen.Load())
	}
}

func TestKeyedPool_DifferentKeysRunInParallel(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 4, 4)
	defer pool.Close()

	// Find two keys owned by different workers.
	a, b := "k0", ""
	for i := 1; i < 100; i++ {
		k := fmt.Sprintf("k%d", i)
		if pool.WorkerFor(k) != pool.WorkerFor(a) {
			b = k
			break
		}
	}
	if b == "" {
		t.Fatal("no key maps to a second worker")
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go pool.Do(context.Background(), a, func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := pool.Do(ctx, b, func(ctx context.Context) (any, error) { return nil, nil }); err != nil {
		t.Errorf("job on another worker blocked: %v", err)
	}
	close(release)
}

func TestKeyedPool_SubmitAfterClose(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 2, 2)
	pool.Close()
	pool.Close()

	err := pool.Submit(context.Background(), Job{Key: "x", Execute: func(ctx context.Context) (any, error) { return nil, nil }})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
	if _, err := pool.Do(context.Background(), "x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Do() after Close error = %v, want ErrClosed", err)
	}
}

func TestKeyedPool_CloseDrainsQueue(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 1, 10)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		pool.Submit(context.Background(), Job{Key: "k", Execute: func(ctx context.Context) (any, error) {
			ran.Add(1)
			return nil, nil
		}})
	}
	pool.Close()

	if ran.Load() != 5 {
		t.Errorf("ran %d queued jobs before close, want 5", ran.Load())
	}
	if pool.QueueLen() != 0 {
		t.Errorf("QueueLen() = %d after close", pool.QueueLen())
	}
}

func TestKeyedPool_DoContextCancelled(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 1, 1)
	defer pool.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	go pool.Do(context.Background(), "k", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Do(ctx, "k", func(ctx context.Context) (any, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want deadline exceeded", err)
	}
	close(release)
}

type ctxKey struct{}

func TestKeyedPool_JobSeesCallerContext(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 2, 2)
	defer pool.Close()

	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")
	v, err := pool.Do(ctx, "k", func(ctx context.Context) (any, error) {
		return ctx.Value(ctxKey{}), nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if v != "caller" {
		t.Errorf("job context value = %v, want caller", v)
	}
}

func TestKeyedPool_SkipsJobWhoseCallerLeft(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 1, 4)

	started := make(chan struct{})
	release := make(chan struct{})
	go pool.Do(context.Background(), "k", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := pool.Do(ctx, "k", func(ctx context.Context) (any, error) {
			ran.Store(true)
			return nil, nil
		})
		errc <- err
	}()
	for pool.QueueLen() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want canceled", err)
	}

	close(release)
	pool.Close()
	if ran.Load() {
		t.Error("job ran after its caller was cancelled")
	}
}

func TestRun_KeepsValueOnError(t *testing.T) {
	pool := NewKeyedPool(context.Background(), 1, 1)
	defer pool.Close()

	boom := errors.New("boom")
	v, err := Run(context.Background(), pool, "k", func(ctx context.Context) (string, error) {
		return "partial", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want boom", err)
	}
	if v != "partial" {
		t.Errorf("Run() value = %q, want partial", v)
	}
}
