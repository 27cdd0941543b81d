package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kumia-devs/onboarding/internal/platform/logging"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// Factory builds and starts the controller for a browser session.
type Factory func(ctx context.Context, browserID string) (*Controller, error)

// ManagerOptions configures NewManager.
type ManagerOptions struct {
	// IdleTTL evicts controllers not used for this long. Their persisted
	// state survives and is restored on the next request.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
	// OnSizeChange receives the number of live controllers.
	OnSizeChange func(size int)
}

// Manager maps browser session ids to controllers.
type Manager struct {
	factory      Factory
	idleTTL      time.Duration
	sweepEvery   time.Duration
	logger       *slog.Logger
	now          func() time.Time
	onSizeChange func(int)

	create singleflight.Group

	mu      sync.Mutex
	entries map[string]*managedController
}

type managedController struct {
	controller *Controller
	lastSeen   time.Time
}

// NewManager builds a manager around factory.
func NewManager(factory Factory, opts ManagerOptions) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("controller factory is required")
	}
	m := &Manager{
		factory:      factory,
		idleTTL:      opts.IdleTTL,
		sweepEvery:   opts.SweepInterval,
		logger:       logging.OrDiscard(opts.Logger).With("component", "session.manager"),
		now:          opts.Now,
		onSizeChange: opts.OnSizeChange,
		entries:      make(map[string]*managedController),
	}
	if m.idleTTL <= 0 {
		m.idleTTL = defaultIdleTTL
	}
	if m.sweepEvery <= 0 {
		m.sweepEvery = defaultSweepInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Controller returns the controller for browserID, creating it on first use.
// Concurrent first requests for the same id share one creation.
func (m *Manager) Controller(ctx context.Context, browserID string) (*Controller, error) {
	browserID = strings.TrimSpace(browserID)
	if browserID == "" {
		return nil, errors.New("browser id is required")
	}
	if c := m.lookup(browserID); c != nil {
		return c, nil
	}

	v, err, _ := m.create.Do(browserID, func() (any, error) {
		if c := m.lookup(browserID); c != nil {
			return c, nil
		}
		c, err := m.factory(ctx, browserID)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[browserID] = &managedController{controller: c, lastSeen: m.now()}
		size := len(m.entries)
		m.mu.Unlock()
		m.reportSize(size)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Controller), nil
}

func (m *Manager) lookup(browserID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[browserID]
	if !ok {
		return nil
	}
	entry.lastSeen = m.now()
	return entry.controller
}

// Forget closes and drops the controller for browserID.
func (m *Manager) Forget(browserID string) {
	m.mu.Lock()
	entry, ok := m.entries[browserID]
	delete(m.entries, browserID)
	size := len(m.entries)
	m.mu.Unlock()
	if ok {
		entry.controller.Close()
		m.reportSize(size)
	}
}

// Len returns the number of live controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep evicts idle controllers and returns how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	var evicted []*Controller

	m.mu.Lock()
	for browserID, entry := range m.entries {
		if entry.lastSeen.Before(cutoff) {
			evicted = append(evicted, entry.controller)
			delete(m.entries, browserID)
		}
	}
	size := len(m.entries)
	m.mu.Unlock()

	for _, c := range evicted {
		c.Close()
	}
	if len(evicted) > 0 {
		m.reportSize(size)
	}
	return len(evicted)
}

// Run sweeps periodically until ctx is cancelled, then closes every
// controller.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.DebugContext(ctx, "evicted idle session controllers", "count", n)
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*managedController)
	m.mu.Unlock()
	for _, entry := range entries {
		entry.controller.Close()
	}
	m.reportSize(0)
}

func (m *Manager) reportSize(size int) {
	if m.onSizeChange != nil {
		m.onSizeChange(size)
	}
}
