package cache

import "sync/atomic"

// Stats is a snapshot of cache counters
type Stats struct {
	Entries  int     `json:"entries"`
	Hits     int64   `json:"hit_count"`
	Misses   int64   `json:"miss_count"`
	Fetches  int64   `json:"fetch_count"`
	Parses   int64   `json:"parse_count,omitempty"`
	Failures int64   `json:"failure_count"`
	HitRatio float64 `json:"hit_ratio"`
}

type counters struct {
	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	parses   atomic.Int64
	failures atomic.Int64
}

func (c *counters) snapshot(entries int) Stats {
	s := Stats{
		Entries:  entries,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Fetches:  c.fetches.Load(),
		Parses:   c.parses.Load(),
		Failures: c.failures.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}
