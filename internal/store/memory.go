package store

import (
	"maps"
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Streamed results are keyed by endpoint, with new results replacing previous
// values. A ranking installed by [MemoryStore.Replace] is kept as a separate
// ordered snapshot, duplicates included.
//
// Subscribers receive updates via buffered channels (buffer size 100). Sends
// are non-blocking; if a subscriber's buffer is full the update is dropped
// for that subscriber.
type MemoryStore struct {
	mu      sync.RWMutex
	latest  map[string]Result
	ranking []Result
	roundID string

	subMu       sync.RWMutex
	subscribers map[chan Result]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		latest:      make(map[string]Result),
		subscribers: make(map[chan Result]struct{}),
	}
}

// Update stores a [Result] and notifies all subscribers.
func (m *MemoryStore) Update(result Result) {
	result.Failures = maps.Clone(result.Failures)

	m.mu.Lock()
	m.latest[result.Endpoint] = result
	m.mu.Unlock()

	m.notifySubscribers(result)
}

// Replace installs a completed ranking and stamps each entry with its rank
// and the round ID. The input slice is not modified.
func (m *MemoryStore) Replace(roundID string, ranked []Result) {
	ranking := make([]Result, len(ranked))
	for i, r := range ranked {
		r.Rank = i + 1
		r.RoundID = roundID
		r.Failures = maps.Clone(r.Failures)
		ranking[i] = r
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ranking = ranking
	m.roundID = roundID
	for _, r := range ranking {
		m.latest[r.Endpoint] = r
	}
}

// GetAll returns a snapshot of the current ranking.
func (m *MemoryStore) GetAll() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ranking != nil {
		results := make([]Result, len(m.ranking))
		for i, r := range m.ranking {
			r.Failures = maps.Clone(r.Failures)
			results[i] = r
		}
		return results
	}

	results := make([]Result, 0, len(m.latest))
	for _, r := range m.latest {
		r.Failures = maps.Clone(r.Failures)
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Endpoint < results[j].Endpoint
	})
	return results
}

// RoundID returns the round behind the current ranking.
func (m *MemoryStore) RoundID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roundID
}

// Subscribe creates a new subscription and returns a channel for receiving
// results. Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan Result {
	ch := make(chan Result, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Result) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the result to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(result Result) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- result:
		default:
			// subscriber is slow, drop the message
		}
	}
}
