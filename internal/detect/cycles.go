package detect

import (
	"strings"

	"github.com/finsec/fraudlens/internal/domain"
)

// cycleFinder runs a bounded-depth DFS over the flagged-transaction adjacency
// to enumerate directed cycles. Each traversal keeps a visited set keyed by
// account ID so it terminates on any graph; cycles are deduplicated across
// rotations and reversals by canonical key.
type cycleFinder struct {
	adjacency map[string][]*domain.Transaction
	minLen    int
	maxLen    int

	seen   map[string]bool
	cycles [][]*domain.Transaction
}

func newCycleFinder(flagged []*domain.Transaction, minLen, maxLen int) *cycleFinder {
	adjacency := make(map[string][]*domain.Transaction)
	for _, t := range flagged {
		if t.FromAccountID == "" || t.ToAccountID == "" || t.FromAccountID == t.ToAccountID {
			continue
		}
		adjacency[t.FromAccountID] = append(adjacency[t.FromAccountID], t)
	}
	return &cycleFinder{
		adjacency: adjacency,
		minLen:    minLen,
		maxLen:    maxLen,
		seen:      make(map[string]bool),
	}
}

// find enumerates all distinct cycles reachable in the adjacency.
func (f *cycleFinder) find() [][]*domain.Transaction {
	for origin := range f.adjacency {
		onPath := map[string]bool{origin: true}
		f.dfs(origin, origin, nil, onPath)
	}
	return f.cycles
}

// dfs extends the current path one flagged hop at a time. A hop back to the
// origin closes a cycle; hops to any other on-path account are skipped so
// only simple cycles are reported.
func (f *cycleFinder) dfs(origin, current string, path []*domain.Transaction, onPath map[string]bool) {
	if len(path) >= f.maxLen {
		return
	}

	for _, t := range f.adjacency[current] {
		next := t.ToAccountID

		if next == origin {
			if len(path)+1 >= f.minLen {
				f.record(append(path, t))
			}
			continue
		}
		if onPath[next] {
			continue
		}

		onPath[next] = true
		f.dfs(origin, next, append(path, t), onPath)
		delete(onPath, next)
	}
}

func (f *cycleFinder) record(cycle []*domain.Transaction) {
	key := canonicalCycleKey(cycle)
	if f.seen[key] {
		return
	}
	f.seen[key] = true

	cp := make([]*domain.Transaction, len(cycle))
	copy(cp, cycle)
	f.cycles = append(f.cycles, cp)
}

// canonicalCycleKey normalizes a cycle so every rotation, and every rotation
// of the reversed direction, maps to the same key.
func canonicalCycleKey(cycle []*domain.Transaction) string {
	ids := make([]string, len(cycle))
	for i, t := range cycle {
		ids[i] = t.ID
	}

	best := minRotation(ids)

	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	if r := minRotation(reversed); r < best {
		best = r
	}
	return best
}

func minRotation(ids []string) string {
	best := strings.Join(ids, "|")
	n := len(ids)
	rotated := make([]string, n)
	for start := 1; start < n; start++ {
		for i := 0; i < n; i++ {
			rotated[i] = ids[(start+i)%n]
		}
		if candidate := strings.Join(rotated, "|"); candidate < best {
			best = candidate
		}
	}
	return best
}
