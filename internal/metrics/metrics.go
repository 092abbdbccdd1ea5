package metrics

import "sync"

// Event counter names. Every failure mode in the relay degrades to a silent
// drop, so counters are the only place those drops remain visible.
const (
	WSConnections     = "ws_connections"
	WSDisconnects     = "ws_disconnects"
	AuthFailure       = "auth_failure"
	PresenceOnline    = "presence_online"
	PresenceOffline   = "presence_offline"
	RelayForwarded    = "relay_forwarded"
	RelayUnreachable  = "relay_unreachable"
	RelayMalformed    = "relay_malformed"
	RelayUnidentified = "relay_unidentified"
	SendQueueDropped  = "send_queue_dropped"
	RateLimited       = "rate_limited"
	TooManyConns      = "too_many_connections"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// The relay deliberately reports its internal events through counters rather
// than per-message logs; handlers on the hot path only ever Inc.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
