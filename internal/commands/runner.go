package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rgnets/wlanpi-netctl/internal/log"
)

// stopTimeout bounds how long Stop waits for the supervised goroutine.
const stopTimeout = 30 * time.Second

// RunnerConfig tunes a RestartableRunner's restart policy.
type RunnerConfig struct {
	Name           string
	MaxRestarts    int           // restarts allowed after the initial run, 0 = unlimited
	RestartBackoff time.Duration // delay before the first restart, doubles per crash (default 1s)
	MaxBackoff     time.Duration // backoff ceiling (default 30s)
}

// RestartableRunner supervises a long-running function, restarting it with
// exponential backoff when it returns an error or panics. A clean return
// ends supervision. The service command runs the HTTP API under one so an
// API crash cannot take the routing core down.
type RestartableRunner struct {
	cfg RunnerConfig
	run func(ctx context.Context) error

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastErr  error
	restarts int
}

func NewRestartableRunner(cfg RunnerConfig, run func(ctx context.Context) error) *RestartableRunner {
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &RestartableRunner{cfg: cfg, run: run}
}

// Start launches the supervision goroutine. Starting a runner that is
// already running is an error.
func (r *RestartableRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%s is already running", r.cfg.Name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.restarts = 0
	r.lastErr = nil

	go r.supervise(runCtx)
	return nil
}

// Stop cancels the supervised function and waits for it to return.
// Stopping a stopped runner is a no-op.
func (r *RestartableRunner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
	case <-time.After(stopTimeout):
		return fmt.Errorf("%s: timeout waiting for stop", r.cfg.Name)
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// IsRunning reports whether supervision is active.
func (r *RestartableRunner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// LastError returns the error from the most recent run, nil after a clean
// exit.
func (r *RestartableRunner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// RestartCount returns how many restarts have been performed.
func (r *RestartableRunner) RestartCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restarts
}

func (r *RestartableRunner) supervise(ctx context.Context) {
	defer close(r.done)

	backoff := r.cfg.RestartBackoff
	for {
		err := r.invoke(ctx)

		r.mu.Lock()
		r.lastErr = err
		restarts := r.restarts
		r.mu.Unlock()

		if err == nil {
			log.Infof("[%s] Exited cleanly", r.cfg.Name)
			return
		}
		if ctx.Err() != nil {
			// Shutdown raced the failure; not a crash.
			log.Infof("[%s] Stopped", r.cfg.Name)
			return
		}

		if r.cfg.MaxRestarts > 0 && restarts >= r.cfg.MaxRestarts {
			log.Errorf("[%s] Giving up after %d restarts: %v", r.cfg.Name, restarts, err)
			return
		}

		r.mu.Lock()
		r.restarts++
		restarts = r.restarts
		r.mu.Unlock()

		log.Errorf("[%s] Crashed: %v (restart #%d in %v)", r.cfg.Name, err, restarts, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

// invoke runs one attempt, converting a panic into an error so the
// supervision loop can apply the restart policy to it.
func (r *RestartableRunner) invoke(ctx context.Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return r.run(ctx)
}
