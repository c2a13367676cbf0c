package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency; a nil error means healthy.
type Probe func(ctx context.Context) error

type Monitor struct {
	backend string
	names   []string
	probes  map[string]Probe

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(backend string, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		backend:  backend,
		probes:   make(map[string]Probe),
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Register adds a named probe. It must be called before Start.
func (m *Monitor) Register(name string, probe Probe) {
	if probe == nil {
		return
	}
	if _, exists := m.probes[name]; !exists {
		m.names = append(m.names, name)
	}
	m.probes[name] = probe
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		components[k] = v
	}
	return Status{Backend: m.backend, Components: components, LastCheck: m.status.LastCheck}
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and records the result.
func (m *Monitor) Refresh() {
	components := make(map[string]bool, len(m.names))
	for _, name := range m.names {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := m.probes[name](ctx)
		cancel()
		if err != nil {
			m.logger.Warn("health probe failed", zap.String("component", name), zap.Error(err))
		}
		components[name] = err == nil
	}

	m.mu.Lock()
	m.status = Status{Backend: m.backend, Components: components, LastCheck: time.Now()}
	m.mu.Unlock()
}
