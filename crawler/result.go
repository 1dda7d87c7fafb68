package crawler

import (
	"sort"
	"time"

	"dev.hon.one/netcrawl/common"
)

// Result - Outcome of a crawl. Every discovered name ends up in exactly one of
// Visited, Failed, Excluded or, for cancelled crawls, Unvisited.
type Result struct {
	RunID     string
	Root      string
	StartTime time.Time
	EndTime   time.Time
	Rounds    int
	Adjacency common.AdjacencyList
	Visited   []string
	Failed    []string
	Excluded  []string
	Unvisited []string
	// Failures maps failed names to the error message.
	Failures map[string]string
	Records  map[string]common.DeviceRecord
}

// Progress - Snapshot of a running or finished crawl.
type Progress struct {
	RunID    string
	Running  bool
	Round    int
	Visited  int
	Failed   int
	Excluded int
	Frontier int
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
