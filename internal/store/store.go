// Package store persists small per-source values between runs.
package store

import (
	"sync"
	"time"
)

// TimestampStore maps a key to an epoch-millis timestamp.
type TimestampStore interface {
	Get(key string) (int64, bool)
	Put(key string, ts int64) error
}

// FirstSeen returns the timestamp stored under key, recording now the first
// time the key is asked for. A failed write still returns now.
func FirstSeen(s TimestampStore, key string, now time.Time) int64 {
	if ts, ok := s.Get(key); ok {
		return ts
	}

	ts := now.UnixMilli()
	_ = s.Put(key, ts)

	return ts
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]int64
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]int64)}
}

func (s *Memory) Get(key string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.m[key]
	return ts, ok
}

func (s *Memory) Put(key string, ts int64) error {
	s.mu.Lock()
	s.m[key] = ts
	s.mu.Unlock()

	return nil
}
