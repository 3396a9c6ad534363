package store

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by channel ID and kept in first-seen order, which for the
// poll loop is roster order. Updates to subscribers are sent non-blocking; a
// full buffer drops the update for that subscriber only.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ChannelRecord
	order   []string

	subMu       sync.RWMutex
	subscribers map[chan ChannelRecord]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]ChannelRecord),
		subscribers: make(map[chan ChannelRecord]struct{}),
	}
}

// Update stores a [ChannelRecord] and notifies all subscribers.
//
// A live record keeps the LiveSince of the previous live record for the same
// channel, so the live session start survives repeated updates.
func (m *MemoryStore) Update(record ChannelRecord) {
	m.mu.Lock()
	prev, seen := m.records[record.ChannelID]
	if !seen {
		m.order = append(m.order, record.ChannelID)
	}
	record = carryLiveSince(prev, record)
	m.records[record.ChannelID] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// carryLiveSince fills next.LiveSince from prev while a session is open.
// Unavailable records keep the session start; only an offline record ends it.
func carryLiveSince(prev, next ChannelRecord) ChannelRecord {
	switch next.State {
	case StateLive:
		if next.LiveSince != nil {
			return next
		}
		if prev.LiveSince != nil {
			next.LiveSince = prev.LiveSince
			return next
		}
		at := next.CheckedAt
		next.LiveSince = &at
	case StateUnavailable:
		next.LiveSince = prev.LiveSince
	default:
		next.LiveSince = nil
	}
	return next
}

// Get returns the record stored for channelID.
func (m *MemoryStore) Get(channelID string) (ChannelRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[channelID]
	return r, ok
}

// GetAll returns a copy of all records in first-seen order.
func (m *MemoryStore) GetAll() []ChannelRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ChannelRecord, 0, len(m.order))
	for _, id := range m.order {
		results = append(results, m.records[id])
	}
	return results
}

// Subscribe creates a new subscription with a buffer of 100 updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan ChannelRecord {
	ch := make(chan ChannelRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ChannelRecord) {
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

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(record ChannelRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// slow subscriber
		}
	}
}
