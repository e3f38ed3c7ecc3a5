package ledger

import (
	"errors"
	"slices"
	"sync"
	"time"
)

type observation struct {
	at       time.Time
	ms       int64
	failed   bool
	retrying bool
}

// LatencySnapshot aggregates the ledger calls seen in the current window.
type LatencySnapshot struct {
	Calls     int     `json:"calls"`
	Failures  int     `json:"failures"`
	Retryable int     `json:"retryable"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// LatencyStats keeps ledger call latencies for a rolling window.
// It is safe for concurrent use.
type LatencyStats struct {
	mu     sync.Mutex
	obs    []observation
	window time.Duration
	now    func() time.Time
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{
		obs:    make([]observation, 0, 256),
		window: window,
		now:    time.Now,
	}
}

// Observe records one call. err classifies the call as failed and, for a
// *RetryableError, as retryable.
func (s *LatencyStats) Observe(d time.Duration, err error) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	var re *RetryableError
	o := observation{
		ms:       ms,
		failed:   err != nil,
		retrying: errors.As(err, &re),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o.at = s.now()
	s.expireLocked(o.at)
	s.obs = append(s.obs, o)
}

func (s *LatencyStats) Snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	if len(s.obs) == 0 {
		return LatencySnapshot{}
	}

	snap := LatencySnapshot{Calls: len(s.obs)}
	ms := make([]int64, 0, len(s.obs))
	var total int64
	for _, o := range s.obs {
		ms = append(ms, o.ms)
		total += o.ms
		if o.failed {
			snap.Failures++
		}
		if o.retrying {
			snap.Retryable++
		}
	}
	slices.Sort(ms)

	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(total) / float64(len(ms))
	snap.P50Ms = percentile(ms, 50)
	snap.P95Ms = percentile(ms, 95)
	snap.P99Ms = percentile(ms, 99)
	return snap
}

func (s *LatencyStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.obs) && s.obs[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.obs = append(s.obs[:0], s.obs[i:]...)
	}
}

// percentile interpolates linearly between the two closest ranks of a
// sorted slice.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*frac
}
