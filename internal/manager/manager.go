package manager

import (
	"sync"
	"time"

	"inferd/internal/engine"
	"inferd/internal/store"
	"inferd/pkg/types"
)

// entry is one in-memory residency record. At most one exists per model id.
type entry struct {
	handle         engine.Handle
	loadedAt       time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// inFlightLoad is the shared awaitable for a load in progress. handle and
// err are written exactly once, before done is closed.
type inFlightLoad struct {
	done   chan struct{}
	handle engine.Handle
	err    error
}

// Manager owns the in-memory cache map and the in-flight map. Both are
// guarded by mu; mu is never held across disk I/O or an engine call. All
// exported methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	cache    map[string]*entry
	inflight map[string]*inFlightLoad

	store        *store.Store
	engine       engine.Engine
	defaultModel string
	keep         int
	publisher    EventPublisher

	loadsTotal uint64
	lastErr    string
}

// New constructs a Manager from Config.
func New(cfg Config) *Manager {
	m := &Manager{
		cache:        make(map[string]*entry),
		inflight:     make(map[string]*inFlightLoad),
		store:        cfg.Store,
		engine:       cfg.Engine,
		defaultModel: cfg.DefaultModel,
		publisher:    cfg.Publisher,
	}
	if cfg.ResidencyLimit == 0 {
		m.keep = defaultResidencyLimit
	} else {
		m.keep = cfg.ResidencyLimit
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	return m
}

// Resident reports whether id is currently loaded into memory.
func (m *Manager) Resident(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cache[id]
	return ok
}

// LoadsTotal returns the number of physical loads performed.
func (m *Manager) LoadsTotal() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadsTotal
}

// LastError returns the most recent load failure message, if any.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Residents returns a read-only projection of the cache for /status.
func (m *Manager) Residents() []types.ResidentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ResidentStatus, 0, len(m.cache))
	for id, e := range m.cache {
		out = append(out, types.ResidentStatus{
			ModelID:      id,
			LoadedAt:     e.loadedAt.Unix(),
			LastAccessed: e.lastAccessedAt.Unix(),
			AccessCount:  e.accessCount,
		})
	}
	return out
}
