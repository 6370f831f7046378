package web

import "sync"

// SnapshotCache keeps the latest payload published to each topic, readable
// through Snapshot, and forwards every publish to the websocket hub, the same
// role the teacher's StateTracker plays for its product-position view.
// cmd/simulator's GET /api/state serves the KPI result, not this cache.
type SnapshotCache struct {
	mu   sync.RWMutex
	hub  *Hub
	data map[string]interface{}
}

// NewSnapshotCache wraps hub so every cached publish is also broadcast.
func NewSnapshotCache(hub *Hub) *SnapshotCache {
	return &SnapshotCache{hub: hub, data: make(map[string]interface{})}
}

// Publish implements bus.Publisher: it remembers the payload under topic and
// forwards it to the websocket hub.
func (s *SnapshotCache) Publish(topic string, payload interface{}) {
	s.mu.Lock()
	s.data[topic] = payload
	s.mu.Unlock()
	if s.hub != nil {
		s.hub.Publish(topic, payload)
	}
}

// Snapshot returns a shallow copy of every topic's last published payload.
func (s *SnapshotCache) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
