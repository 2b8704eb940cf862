package rcon

import (
	"bytes"
	"sync"
)

// PendingStore holds received frames until a caller claims them by correlation id.
// Frames for one id queue in arrival order. Nothing is evicted: frames for ids no
// one waits on stay until Reset.
type PendingStore struct {
	mu      sync.Mutex
	frames  map[int32][][]byte
	count   int
	waiters map[int32][]chan struct{}
	metrics *Metrics
}

func NewPendingStore(metrics *Metrics) *PendingStore {
	return &PendingStore{
		frames:  make(map[int32][][]byte),
		waiters: make(map[int32][]chan struct{}),
		metrics: metrics,
	}
}

// Put queues one answer and wakes any waiter on its id.
func (s *PendingStore) Put(a Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[a.CorrelationID] = append(s.frames[a.CorrelationID], a.Data)
	s.count++
	s.metrics.pendingAdd(1)
	for _, ch := range s.waiters[a.CorrelationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Claim removes every queued frame for id and merges their payloads. Returns
// EmptyAnswer when nothing is queued; never blocks.
func (s *PendingStore) Claim(id int32) Answer {
	s.mu.Lock()
	queued, ok := s.frames[id]
	if ok {
		delete(s.frames, id)
		s.count -= len(queued)
		s.metrics.pendingAdd(-len(queued))
	}
	s.mu.Unlock()

	if !ok {
		return EmptyAnswer
	}
	return Answer{
		Success:       true,
		Data:          bytes.Join(queued, nil),
		CorrelationID: id,
	}
}

func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Reset drops all queued frames.
func (s *PendingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.pendingAdd(-s.count)
	s.frames = make(map[int32][][]byte)
	s.count = 0
}

// watch registers a wake-up channel for id. The release func must be called.
func (s *PendingStore) watch(id int32) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.waiters[id]
		for i, w := range list {
			if w == ch {
				list = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(s.waiters, id)
			return
		}
		s.waiters[id] = list
	}
}
