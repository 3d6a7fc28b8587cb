package store

import "sync"

type messageStore struct {
	mu   sync.RWMutex
	data map[string][]ChatMessage
}

func newMessageStore() *messageStore {
	return &messageStore{data: make(map[string][]ChatMessage)}
}

func (m *messageStore) append(key string, msg ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append(m.data[key], msg)
}

// query walks newest first, skipping Offset matches and returning up to Limit.
func (m *messageStore) query(key string, f MessageFilter) []ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.data[key]
	result := make([]ChatMessage, 0, min(len(msgs), max(f.Limit, 0)))
	skipped := 0
	for i := len(msgs) - 1; i >= 0 && len(result) < f.Limit; i-- {
		msg := msgs[i]
		if !f.matches(msg) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		result = append(result, msg)
	}
	return result
}

// markRead flags every message on key as read by side and reports how many changed.
func (m *messageStore) markRead(key, side string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	msgs := m.data[key]
	for i := range msgs {
		switch {
		case side == DirectionLocation && !msgs[i].ReadByLocation:
			msgs[i].ReadByLocation = true
			changed++
		case side == DirectionContact && !msgs[i].ReadByContact:
			msgs[i].ReadByContact = true
			changed++
		}
	}
	return changed
}

func (f MessageFilter) matches(msg ChatMessage) bool {
	if f.Direction != "" && msg.Direction != f.Direction {
		return false
	}
	switch f.UnreadBy {
	case DirectionLocation:
		if msg.ReadByLocation {
			return false
		}
	case DirectionContact:
		if msg.ReadByContact {
			return false
		}
	}
	if !f.Start.IsZero() && msg.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && msg.CreatedAt.After(f.End) {
		return false
	}
	return true
}
