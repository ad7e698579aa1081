package ingest

import (
	"sync"
	"time"
)

// frameSlot holds the single most recent frame. A put overwrites any unread
// frame, so a slow consumer always sees the freshest image.
type frameSlot struct {
	mu      sync.Mutex
	data    []byte
	at      time.Time
	unread  bool
	dropped uint64

	ready     chan struct{}
	readyOnce sync.Once
	now       func() time.Time
}

func newFrameSlot() *frameSlot {
	return &frameSlot{ready: make(chan struct{}), now: time.Now}
}

func (s *frameSlot) put(data []byte) {
	s.mu.Lock()
	if s.unread {
		s.dropped++
	}
	s.data = data
	s.at = s.now()
	s.unread = true
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *frameSlot) take() ([]byte, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unread {
		return nil, time.Time{}, false
	}
	s.unread = false
	return s.data, s.at, true
}

func (s *frameSlot) droppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
