package report

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Stats collects durations per named operation. It is safe for concurrent use.
type Stats struct {
	mu    sync.RWMutex
	ops   map[string]*OpStats
	order []string
}

// OpStats holds the timings of one operation.
type OpStats struct {
	Name     string
	Count    int64
	Errors   int64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	LastSeen time.Time
}

// Mean returns the average duration of successful runs.
func (o OpStats) Mean() time.Duration {
	if o.Count == 0 {
		return 0
	}
	return o.Total / time.Duration(o.Count)
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{ops: make(map[string]*OpStats)}
}

// Record adds one observation. Failed runs only bump the error count.
func (s *Stats) Record(name string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[name]
	if !ok {
		op = &OpStats{Name: name}
		s.ops[name] = op
		s.order = append(s.order, name)
	}
	op.LastSeen = time.Now()
	if err != nil {
		op.Errors++
		return
	}
	if op.Count == 0 || d < op.Min {
		op.Min = d
	}
	if d > op.Max {
		op.Max = d
	}
	op.Count++
	op.Total += d
}

// Time runs fn, records its duration under name and returns fn's error.
func (s *Stats) Time(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	s.Record(name, time.Since(start), err)
	return err
}

// Get returns a copy of the stats for name.
func (s *Stats) Get(name string) (OpStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.ops[name]
	if !ok {
		return OpStats{}, false
	}
	return *op, true
}

// All returns copies of every operation in first-recorded order.
func (s *Stats) All() []OpStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OpStats, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.ops[name])
	}
	return out
}

// Slowest returns the top n operations by mean duration.
func (s *Stats) Slowest(n int) []OpStats {
	all := s.All()
	if n <= 0 || len(all) == 0 {
		return []OpStats{}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Mean() > all[j].Mean()
	})
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Rows renders the collected stats for RenderTable.
func (s *Stats) Rows() (headers []string, rows [][]string) {
	headers = []string{"Operation", "Runs", "Errors", "Mean (ms)", "Min (ms)", "Max (ms)"}
	for _, op := range s.All() {
		rows = append(rows, []string{
			op.Name, Int(op.Count), Int(op.Errors),
			Millis(op.Mean()), Millis(op.Min), Millis(op.Max),
		})
	}
	return headers, rows
}

// Prune drops operations not seen within window.
func (s *Stats) Prune(window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-window)
	kept := s.order[:0]
	for _, name := range s.order {
		if s.ops[name].LastSeen.Before(threshold) {
			delete(s.ops, name)
			continue
		}
		kept = append(kept, name)
	}
	s.order = kept
}
