package pool

import (
	"sync"
)

// Manager owns every Pool in the process, keyed both by its assigned
// id and by its dedup fingerprint, mirroring db-bouncer's
// map[string]*TenantPool Manager but adapted to spec.md §4.4's two
// lookup paths: callers address a pool by id once created, while
// create_pool itself dedups new requests against an existing
// fingerprint instead of creating a duplicate pool.
type Manager struct {
	mu          sync.Mutex
	pools       map[int64]*Pool
	byFP        map[Fingerprint]int64
	nextPoolSeq int64
}

// NewManager creates an empty Pool Manager.
func NewManager() *Manager {
	return &Manager{
		pools: make(map[int64]*Pool),
		byFP:  make(map[Fingerprint]int64),
	}
}

// GetOrCreate returns the existing pool for cfg's fingerprint, or
// creates one, following db-bouncer's Manager.GetOrCreate
// double-checked-locking shape.
func (m *Manager) GetOrCreate(cfg Config) (*Pool, error) {
	fp := FingerprintOf(cfg.ConnectionProfile)

	m.mu.Lock()
	if id, ok := m.byFP[fp]; ok {
		p := m.pools[id]
		m.mu.Unlock()
		return p, nil
	}
	m.nextPoolSeq++
	id := m.nextPoolSeq
	m.mu.Unlock()

	p, err := newPool(id, fp, cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// Another goroutine may have won the race to create this
	// fingerprint's pool while we were dialing; prefer the winner and
	// discard ours, same as db-bouncer's GetOrCreate.
	if existingID, ok := m.byFP[fp]; ok {
		existing := m.pools[existingID]
		m.mu.Unlock()
		p.Close()
		return existing, nil
	}
	m.pools[id] = p
	m.byFP[fp] = id
	m.mu.Unlock()

	return p, nil
}

// Get returns the pool identified by id.
func (m *Manager) Get(id int64) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// ClosePool closes and forgets the pool identified by id.
func (m *Manager) ClosePool(id int64) error {
	m.mu.Lock()
	p, ok := m.pools[id]
	if !ok {
		m.mu.Unlock()
		return ErrPoolNotFound
	}
	delete(m.pools, id)
	delete(m.byFP, p.Fingerprint())
	m.mu.Unlock()

	return p.Close()
}

// AllStats returns Stats for every live pool, for a manager-wide status
// view.
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	out := make([]Stats, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Stats())
	}
	return out
}

// CloseAll closes every pool the manager owns, for process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.pools = make(map[int64]*Pool)
	m.byFP = make(map[Fingerprint]int64)
	m.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
