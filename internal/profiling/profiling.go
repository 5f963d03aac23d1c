// Package profiling collects per-frame timings and counters from the
// simulation, generation and rebuild workers.
package profiling

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	mu          sync.Mutex
	frameTotals = make(map[string]time.Duration)
	counters    = make(map[string]int64)
)

// Track returns a stop function that records the elapsed time under name.
// Usage: defer profiling.Track("fluid.Update")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		frameTotals[name] += d
		mu.Unlock()
	}
}

// Count adds n to the named counter.
func Count(name string, n int) {
	mu.Lock()
	counters[name] += int64(n)
	mu.Unlock()
}

// ResetFrame clears the timings and counters of the current frame.
func ResetFrame() {
	mu.Lock()
	clear(frameTotals)
	clear(counters)
	mu.Unlock()
}

// Snapshot returns a copy of the current timings.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(frameTotals))
	for k, v := range frameTotals {
		out[k] = v
	}
	return out
}

// Counters returns a copy of the current counters.
func Counters() map[string]int64 {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]int64, len(counters))
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// TopN formats the n largest timings of the frame, e.g.
// "worldgen.GenerateChunk:4.2ms, fluid.Update:2.1ms".
func TopN(n int) string {
	type pair struct {
		name string
		dur  time.Duration
	}
	ss := Snapshot()
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	slices.SortFunc(list, func(a, b pair) int {
		if c := cmp.Compare(b.dur, a.dur); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for _, p := range list[:n] {
		ms := float64(p.dur.Microseconds()) / 1000.0
		parts = append(parts, p.name+":"+strconv.FormatFloat(ms, 'f', 1, 64)+"ms")
	}
	return strings.Join(parts, ", ")
}
