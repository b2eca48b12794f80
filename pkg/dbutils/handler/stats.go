package handler

import (
	"sync"
	"time"
)

// callStats accumulates the per-process counters the handler reports in the
// structured log line it emits at the end of every call (spec §4.11: query
// counter + timer, result-size stat, error histogram, stat snapshot).
type callStats struct {
	mu sync.Mutex

	queryCount     int64
	totalDuration  time.Duration
	lastResultSize int
	errorCounts    map[string]int64
}

func newCallStats() *callStats {
	return &callStats{errorCounts: map[string]int64{}}
}

// statSnapshot is an immutable copy of callStats safe to log or pass around
// without holding the lock.
type statSnapshot struct {
	queryCount     int64
	totalDuration  time.Duration
	lastResultSize int
	errorCounts    map[string]int64
}

func (s *callStats) recordSuccess(dur time.Duration, resultSize int) statSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryCount++
	s.totalDuration += dur
	s.lastResultSize = resultSize

	return s.snapshotLocked()
}

func (s *callStats) recordFailure(dur time.Duration, errorKind string) statSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryCount++
	s.totalDuration += dur
	s.errorCounts[errorKind]++

	return s.snapshotLocked()
}

func (s *callStats) snapshotLocked() statSnapshot {
	errorCounts := make(map[string]int64, len(s.errorCounts))
	for k, v := range s.errorCounts {
		errorCounts[k] = v
	}

	return statSnapshot{
		queryCount:     s.queryCount,
		totalDuration:  s.totalDuration,
		lastResultSize: s.lastResultSize,
		errorCounts:    errorCounts,
	}
}
