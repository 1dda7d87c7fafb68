package crawler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/scrapers"
)

// Serves a fixed topology. Safe for concurrent use.
type fakeVisitor struct {
	graph   map[string][]string
	shared  map[string][]string
	failing map[string]bool
	hanging map[string]bool
	delay   time.Duration
	release chan struct{}

	mutex     sync.Mutex
	visits    map[string]int
	seen      map[string]common.DeviceIdentity
	inFlight  int
	maxFlight int
}

func newFakeVisitor(graph map[string][]string) *fakeVisitor {
	return &fakeVisitor{
		graph:   graph,
		shared:  make(map[string][]string),
		failing: make(map[string]bool),
		hanging: make(map[string]bool),
		release: make(chan struct{}),
		visits:  make(map[string]int),
		seen:    make(map[string]common.DeviceIdentity),
	}
}

func (visitor *fakeVisitor) Visit(ctx context.Context, identity common.DeviceIdentity) (*DeviceResult, error) {
	visitor.mutex.Lock()
	visitor.visits[identity.Name]++
	visitor.seen[identity.Name] = identity
	visitor.inFlight++
	if visitor.inFlight > visitor.maxFlight {
		visitor.maxFlight = visitor.inFlight
	}
	visitor.mutex.Unlock()
	defer func() {
		visitor.mutex.Lock()
		visitor.inFlight--
		visitor.mutex.Unlock()
	}()

	if visitor.hanging[identity.Name] {
		// Ignores the context on purpose
		<-visitor.release
	}
	if visitor.delay > 0 {
		time.Sleep(visitor.delay)
	}
	if visitor.failing[identity.Name] {
		return nil, &SessionError{Device: identity.Name, Stage: StageConnect, Err: fmt.Errorf("%w: connection refused", scrapers.ErrConnect)}
	}

	neighbors := make(common.NeighborMap)
	for i, name := range visitor.graph[identity.Name] {
		localInterface := fmt.Sprintf("Gig0/%d", i)
		neighbors[localInterface] = common.NeighborRecord{
			LocalInterface:   localInterface,
			RemoteDeviceName: name,
			RemoteInterface:  "Gig0/0",
			RemoteIP:         fmt.Sprintf("10.%d.0.%d", len(identity.Name), i+1),
			RemoteClass:      common.DeviceClassCiscoIOS,
			RemoteVendor:     "Cisco",
		}
	}
	var shared []common.NeighborRecord
	for i, name := range visitor.shared[identity.Name] {
		shared = append(shared, common.NeighborRecord{
			LocalInterface:   "Gig0/0",
			RemoteDeviceName: name,
			RemoteIP:         fmt.Sprintf("10.%d.1.%d", len(identity.Name), i+1),
			RemoteClass:      common.DeviceClassCiscoIOS,
			RemoteVendor:     "Cisco",
		})
	}
	return &DeviceResult{Identity: identity, Neighbors: neighbors, Shared: shared}, nil
}

func (visitor *fakeVisitor) visitCount(name string) int {
	visitor.mutex.Lock()
	defer visitor.mutex.Unlock()
	return visitor.visits[name]
}

var rootIdentity = common.DeviceIdentity{Name: "ROOT", Address: "10.0.0.1", Class: common.DeviceClassCiscoIOS, CredentialID: "default"}

func testOptions() Options {
	return Options{
		Concurrency:    4,
		SessionTimeout: time.Second,
		CredentialID:   "default",
	}
}

func TestCrawlRootWithUnreachableNeighbor(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"A", "B"}})
	visitor.failing["B"] = true

	result, err := New(visitor, testOptions()).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "ROOT"}, result.Visited)
	assert.Equal(t, []string{"B"}, result.Failed)
	assert.Empty(t, result.Excluded)
	assert.Empty(t, result.Unvisited)
	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Adjacency, 2)
	assert.Len(t, result.Adjacency["ROOT"], 2)
	assert.NotNil(t, result.Adjacency["A"])
	assert.Empty(t, result.Adjacency["A"])
	assert.Contains(t, result.Failures["B"], "connection refused")
	assert.NotEmpty(t, result.RunID)
}

func TestCrawlCycle(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{
		"ROOT": {"A"},
		"A":    {"B", "ROOT"},
		"B":    {"ROOT", "A"},
	})

	result, err := New(visitor, testOptions()).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "ROOT"}, result.Visited)
	for _, name := range []string{"ROOT", "A", "B"} {
		assert.Equal(t, 1, visitor.visitCount(name), name)
	}
	assert.Equal(t, 2, result.Rounds)
}

func TestCrawlExcluded(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"AP-FLOOR1", "SW1", "SEP001122334455"}})
	options := testOptions()
	exclude, err := ExcludePattern(common.DefaultExclusionPattern)
	require.NoError(t, err)
	options.Exclude = exclude

	result, err := New(visitor, options).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	assert.Equal(t, []string{"AP-FLOOR1", "SEP001122334455"}, result.Excluded)
	assert.Equal(t, []string{"ROOT", "SW1"}, result.Visited)
	assert.Zero(t, visitor.visitCount("AP-FLOOR1"))
	assert.Contains(t, result.Adjacency["ROOT"], "Gig0/0", "excluded neighbors stay in the adjacency list")
}

func TestCrawlRootFailure(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"A"}})
	visitor.failing["ROOT"] = true

	result, err := New(visitor, testOptions()).Run(context.Background(), rootIdentity)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrRootUnreachable)
	assert.Zero(t, visitor.visitCount("A"))
}

func TestCrawlSessionTimeout(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"HUNG", "A"}})
	visitor.hanging["HUNG"] = true
	defer close(visitor.release)
	options := testOptions()
	options.SessionTimeout = 100 * time.Millisecond

	start := time.Now()
	result, err := New(visitor, options).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"HUNG"}, result.Failed)
	assert.Equal(t, []string{"A", "ROOT"}, result.Visited)
	assert.Contains(t, result.Failures["HUNG"], "timed out")
}

func TestVisitOneTimeoutError(t *testing.T) {
	visitor := newFakeVisitor(nil)
	visitor.hanging["HUNG"] = true
	defer close(visitor.release)
	options := testOptions()
	options.SessionTimeout = 50 * time.Millisecond

	outcome := New(visitor, options).visitOne(context.Background(), common.DeviceIdentity{Name: "HUNG"})
	assert.ErrorIs(t, outcome.err, ErrTimeout)
	var sessionErr *SessionError
	require.ErrorAs(t, outcome.err, &sessionErr)
	assert.Equal(t, StageSession, sessionErr.Stage)
}

func TestCrawlConcurrencyBound(t *testing.T) {
	leaves := make([]string, 40)
	for i := range leaves {
		leaves[i] = fmt.Sprintf("LEAF%02d", i)
	}
	visitor := newFakeVisitor(map[string][]string{"ROOT": leaves})
	visitor.delay = 10 * time.Millisecond
	options := testOptions()
	options.Concurrency = 4

	result, err := New(visitor, options).Run(context.Background(), rootIdentity)
	require.NoError(t, err)
	assert.Len(t, result.Visited, 41)
	assert.LessOrEqual(t, visitor.maxFlight, 4)
	assert.Greater(t, visitor.maxFlight, 1)
}

func TestCrawlFirstDiscovererWins(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{
		"ROOT": {"A", "BB"},
		"A":    {"C"},
		"BB":   {"C"},
	})

	result, err := New(visitor, testOptions()).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	// A sorts before BB, so C's identity comes from A's record
	assert.Equal(t, "10.1.0.1", visitor.seen["C"].Address)
	assert.Equal(t, "default", visitor.seen["C"].CredentialID)
	assert.Equal(t, "10.1.0.1", result.Records["C"].IPAddress)
	assert.Equal(t, 1, visitor.visitCount("C"))
}

type recordingSink struct {
	mutex   sync.Mutex
	devices []common.DeviceRecord
	runID   string
	failed  []string
}

func (sink *recordingSink) SaveDevice(_ context.Context, record common.DeviceRecord) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.devices = append(sink.devices, record)
	return nil
}

func (sink *recordingSink) SaveFailedList(_ context.Context, runID string, names []string) error {
	sink.runID = runID
	sink.failed = names
	return nil
}

func (sink *recordingSink) Close() error {
	return nil
}

func TestCrawlSinkAndMetrics(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"A", "B"}})
	visitor.failing["B"] = true
	sink := &recordingSink{}
	registry := prometheus.NewRegistry()
	options := testOptions()
	options.Sink = sink
	options.Metrics = NewMetrics(registry)

	crawler := New(visitor, options)
	result, err := crawler.Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, record := range sink.devices {
		names = append(names, record.Name)
		assert.Equal(t, result.RunID, record.RunID)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"A", "ROOT"}, names)
	assert.Equal(t, []string{"B"}, sink.failed)
	assert.Equal(t, result.RunID, sink.runID)

	assert.Equal(t, "Cisco", result.Records["ROOT"].Vendor)
	assert.Equal(t, "10.0.0.1", result.Records["ROOT"].IPAddress)

	assert.Equal(t, 2.0, testutil.ToFloat64(options.Metrics.sessions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(options.Metrics.sessions.WithLabelValues("connect")))
	assert.Equal(t, 2.0, testutil.ToFloat64(options.Metrics.visited))

	progress := crawler.Progress()
	assert.False(t, progress.Running)
	assert.Equal(t, result.RunID, progress.RunID)
	assert.Equal(t, 2, progress.Visited)
	assert.Equal(t, 1, progress.Failed)
}

func TestCrawlCancelled(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"A"}, "A": {"B"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(visitor, testOptions()).Run(ctx, rootIdentity)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawlInterruptedVisitsStayUnvisited(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{"ROOT": {"HUNG", "A"}})
	visitor.hanging["HUNG"] = true
	defer close(visitor.release)
	sink := &recordingSink{}
	options := testOptions()
	options.SessionTimeout = time.Minute
	options.Sink = sink
	options.Metrics = NewMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	result, err := New(visitor, options).Run(ctx, rootIdentity)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	assert.Equal(t, []string{"A", "ROOT"}, result.Visited)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"HUNG"}, result.Unvisited)
	assert.Empty(t, sink.failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(options.Metrics.sessions.WithLabelValues("cancelled")))
}

func TestCrawlSharedInterfaceNeighbors(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{
		"ROOT": {"SW1"},
		"SW2":  {"SW3"},
	})
	visitor.shared["ROOT"] = []string{"SW2"}

	result, err := New(visitor, testOptions()).Run(context.Background(), rootIdentity)
	require.NoError(t, err)

	assert.Equal(t, []string{"ROOT", "SW1", "SW2", "SW3"}, result.Visited)
	assert.Len(t, result.Adjacency["ROOT"], 1)
	assert.Equal(t, "10.4.1.1", visitor.seen["SW2"].Address)
	assert.Equal(t, 1, visitor.visitCount("SW2"))
}

func TestCrawlNamesIgnoreCase(t *testing.T) {
	visitor := newFakeVisitor(map[string][]string{
		"core1": {"A"},
		"A":     {"CORE1", "B"},
		"B":     {"a", "Core1"},
	})
	root := common.DeviceIdentity{Name: "core1", Address: "10.0.0.1", Class: common.DeviceClassCiscoIOS, CredentialID: "default"}

	result, err := New(visitor, testOptions()).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "core1"}, result.Visited)
	assert.Equal(t, 1, visitor.visitCount("core1"))
	assert.Zero(t, visitor.visitCount("CORE1"))
	assert.Zero(t, visitor.visitCount("Core1"))
	assert.Zero(t, visitor.visitCount("a"))
}

func TestCrawlRequiresTimeout(t *testing.T) {
	options := testOptions()
	options.SessionTimeout = 0
	_, err := New(newFakeVisitor(nil), options).Run(context.Background(), rootIdentity)
	assert.Error(t, err)
}

func TestCrawlInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 12).Draw(t, "count")
		names := []string{"ROOT"}
		for i := 1; i < count; i++ {
			prefix := rapid.SampledFrom([]string{"SW", "AP"}).Draw(t, "prefix")
			names = append(names, fmt.Sprintf("%s%d", prefix, i))
		}

		graph := make(map[string][]string)
		failing := make(map[string]bool)
		for i, name := range names {
			for _, other := range names {
				if rapid.IntRange(0, 3).Draw(t, "edge") == 0 {
					graph[name] = append(graph[name], other)
				}
			}
			if i > 0 {
				failing[name] = rapid.IntRange(0, 4).Draw(t, "failing") == 0
			}
		}
		excluded := func(name string) bool { return len(name) > 1 && name[:2] == "AP" }

		// Reference traversal
		wantVisited := map[string]bool{"ROOT": true}
		wantFailed := map[string]bool{}
		wantExcluded := map[string]bool{}
		queue := []string{"ROOT"}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, neighbor := range graph[current] {
				switch {
				case excluded(neighbor) && neighbor != "ROOT":
					wantExcluded[neighbor] = true
				case wantVisited[neighbor] || wantFailed[neighbor]:
				case failing[neighbor]:
					wantFailed[neighbor] = true
				default:
					wantVisited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}

		visitor := newFakeVisitor(graph)
		visitor.failing = failing
		options := testOptions()
		options.Exclude = excluded
		result, err := New(visitor, options).Run(context.Background(), rootIdentity)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		if got, want := result.Visited, sortedKeys(wantVisited); fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("visited %v, want %v", got, want)
		}
		if got, want := result.Failed, sortedKeys(wantFailed); fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("failed %v, want %v", got, want)
		}
		if got, want := result.Excluded, sortedKeys(wantExcluded); fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("excluded %v, want %v", got, want)
		}
		if len(result.Adjacency) != len(result.Visited) {
			t.Fatalf("adjacency has %v devices, visited %v", len(result.Adjacency), len(result.Visited))
		}
		for _, name := range names {
			if visits := visitor.visitCount(name); visits > 1 {
				t.Fatalf("%v visited %v times", name, visits)
			}
		}
	})
}
