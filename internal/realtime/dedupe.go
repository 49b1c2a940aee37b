package realtime

import "sync"

type eventKey struct {
	entityType string
	entityID   string
	version    int64
}

// seenSet remembers the most recent capacity keys and evicts the oldest first.
type seenSet struct {
	mu       sync.Mutex
	capacity int
	keys     map[eventKey]struct{}
	order    []eventKey
	head     int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &seenSet{
		capacity: capacity,
		keys:     make(map[eventKey]struct{}, capacity),
		order:    make([]eventKey, 0, capacity),
	}
}

// Add reports false when key was already present.
func (s *seenSet) Add(key eventKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	if len(s.order) < s.capacity {
		s.order = append(s.order, key)
	} else {
		delete(s.keys, s.order[s.head])
		s.order[s.head] = key
		s.head = (s.head + 1) % s.capacity
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
