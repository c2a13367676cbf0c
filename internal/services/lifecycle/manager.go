package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// StopFunc releases one component.
type StopFunc func(ctx context.Context) error

// RunFunc is a long-running component. It returns when ctx is cancelled or
// when it fails.
type RunFunc func(ctx context.Context) error

type component struct {
	name string
	stop StopFunc
}

// Manager owns the runtime of the server: background components started with
// Go and resources registered with Register. Stop hooks run last-in first-out
// so that a store is closed only after everything built on it.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []component
	stopped    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errMu  sync.Mutex
	runErr error
}

// New creates a manager whose Shutdown is bounded by timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is cancelled when a shutdown starts or a component run fails.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a stop hook.
func (m *Manager) Register(name string, stop StopFunc) {
	if stop == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, stop: stop})
}

// Go runs fn in the background. A non-nil error other than context.Canceled
// triggers shutdown of the whole manager.
func (m *Manager) Go(name string, fn RunFunc) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := fn(m.ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
		m.errMu.Lock()
		m.runErr = errors.Join(m.runErr, err)
		m.errMu.Unlock()
		m.cancel()
	}()
}

// Err returns the joined errors of failed components.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.runErr
}

// Wait blocks until the manager context is done or an OS termination signal
// arrives.
func (m *Manager) Wait() {
	sigCtx, stop := signal.NotifyContext(m.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	if m.ctx.Err() == nil {
		m.logger.Info("shutdown signal received")
	}
}

// Shutdown cancels running components, runs the stop hooks in reverse order
// and waits for the components to return. It is safe to call more than once;
// only the first call does any work.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	components := append([]component(nil), m.components...)
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.cancel()

	var result error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.stop(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", c.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", c.name))
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = errors.Join(result, ctx.Err())
	}
	return result
}
