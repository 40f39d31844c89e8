package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRestartableRunnerCleanExit(t *testing.T) {
	var runs int32
	r := NewRestartableRunner(RunnerConfig{Name: "test"}, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	waitForRunner(t, func() bool { return atomic.LoadInt32(&runs) == 1 })

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("clean exit ran %d times, want 1", got)
	}
	if r.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", r.LastError())
	}
}

func TestRestartableRunnerRestartsOnError(t *testing.T) {
	var runs int32
	r := NewRestartableRunner(RunnerConfig{
		Name:           "test",
		MaxRestarts:    2,
		RestartBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return fmt.Errorf("boom")
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer r.Stop()

	// Initial run plus two restarts before giving up.
	waitForRunner(t, func() bool { return atomic.LoadInt32(&runs) == 3 })

	if r.RestartCount() != 2 {
		t.Errorf("RestartCount() = %d, want 2", r.RestartCount())
	}
	if r.LastError() == nil {
		t.Error("LastError() = nil, want error")
	}
}

func TestRestartableRunnerRecoversPanic(t *testing.T) {
	var runs int32
	r := NewRestartableRunner(RunnerConfig{
		Name:           "test",
		MaxRestarts:    1,
		RestartBackoff: time.Millisecond,
	}, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		panic("kaboom")
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer r.Stop()

	waitForRunner(t, func() bool { return atomic.LoadInt32(&runs) == 2 })

	if err := r.LastError(); err == nil || err.Error() != "panic: kaboom" {
		t.Errorf("LastError() = %v, want panic: kaboom", err)
	}
}

func TestRestartableRunnerDoubleStart(t *testing.T) {
	block := make(chan struct{})
	r := NewRestartableRunner(RunnerConfig{Name: "test"}, func(ctx context.Context) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	close(block)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func waitForRunner(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
