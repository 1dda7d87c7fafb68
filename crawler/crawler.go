package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/db"
	"dev.hon.one/netcrawl/parsers"
)

// DefaultConcurrency - Default maximum of concurrent device sessions.
const DefaultConcurrency = 16

// Options - Crawl settings.
type Options struct {
	Concurrency int
	// SessionTimeout bounds every device visit, including the root. Mandatory.
	SessionTimeout time.Duration
	Exclude        Filter
	Names          parsers.NameOptions
	Mapping        *parsers.VersionMapping
	// CredentialID is used for discovered devices.
	CredentialID string
	Sink         db.Sink
	Metrics      *Metrics
}

// Crawler - Level-synchronous breadth-first crawl of the network from a root device.
type Crawler struct {
	visitor Visitor
	options Options

	mutex    sync.Mutex
	progress Progress
}

// New - Create a crawler.
func New(visitor Visitor, options Options) *Crawler {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.Exclude == nil {
		options.Exclude = ExcludeNothing
	}
	if options.Mapping == nil {
		options.Mapping = parsers.DefaultVersionMapping()
	}
	if options.Sink == nil {
		options.Sink = db.LogSink{}
	}
	return &Crawler{visitor: visitor, options: options}
}

// Progress - Current crawl progress.
func (crawler *Crawler) Progress() Progress {
	crawler.mutex.Lock()
	defer crawler.mutex.Unlock()
	return crawler.progress
}

type visitOutcome struct {
	identity common.DeviceIdentity
	result   *DeviceResult
	err      error
	duration time.Duration
	// The crawl was cancelled before the visit could finish
	interrupted bool
}

// Only the goroutine running Run touches this.
type crawlState struct {
	runID      string
	visited    map[string]bool
	failed     map[string]string
	excluded   map[string]bool
	frontier   map[string]common.DeviceIdentity
	reportedBy map[string]common.NeighborRecord
	adjacency  common.AdjacencyList
	records    map[string]common.DeviceRecord
	// Upper-cased name to the spelling first seen
	names map[string]string
}

// Names differing only in case are the same device.
func (state *crawlState) canonicalName(name string) string {
	key := strings.ToUpper(name)
	if existing, found := state.names[key]; found {
		return existing
	}
	state.names[key] = name
	return name
}

// Run - Crawl from the root. An unreachable or unsupported root is fatal.
// When the context is cancelled, the crawl stops after the current round and the partial result is returned with the error.
func (crawler *Crawler) Run(ctx context.Context, root common.DeviceIdentity) (*Result, error) {
	if crawler.options.SessionTimeout <= 0 {
		return nil, errors.New("session timeout is mandatory")
	}
	root.Name = parsers.CleanDeviceName(root.Name, crawler.options.Names)
	if root.Name == "" {
		return nil, errors.New("root device has no name")
	}

	startTime := time.Now()
	state := &crawlState{
		runID:      uuid.NewString(),
		visited:    make(map[string]bool),
		failed:     make(map[string]string),
		excluded:   make(map[string]bool),
		frontier:   make(map[string]common.DeviceIdentity),
		reportedBy: make(map[string]common.NeighborRecord),
		adjacency:  make(common.AdjacencyList),
		records:    make(map[string]common.DeviceRecord),
		names:      make(map[string]string),
	}
	root.Name = state.canonicalName(root.Name)
	logger := log.WithFields(log.Fields{
		"run_id": state.runID,
		"root":   root.Name,
	})
	logger.Info("Starting crawl")
	crawler.updateProgress(state, 0, true, false)

	// Root, out-of-band
	rootOutcome := crawler.visitRound(ctx, []common.DeviceIdentity{root})[0]
	if rootOutcome.err != nil {
		logger.WithError(rootOutcome.err).Error("Root device failed")
		crawler.updateProgress(state, 0, false, false)
		return nil, fmt.Errorf("%w: %w", ErrRootUnreachable, rootOutcome.err)
	}
	crawler.merge(ctx, state, rootOutcome)
	crawler.updateProgress(state, 0, true, true)

	round := 0
	for len(state.frontier) > 0 && ctx.Err() == nil {
		identities := crawler.nextRound(state)
		if len(identities) == 0 {
			break
		}
		round++
		logger.WithFields(log.Fields{
			"round":   round,
			"devices": len(identities),
		}).Info("Starting round")

		outcomes := crawler.visitRound(ctx, identities)
		// Merge in name order so the first discoverer of a name doesn't depend on completion order
		sort.Slice(outcomes, func(i, j int) bool {
			return outcomes[i].identity.Name < outcomes[j].identity.Name
		})
		for _, outcome := range outcomes {
			crawler.merge(ctx, state, outcome)
		}
		crawler.updateProgress(state, round, true, true)
	}

	failedNames := sortedKeys(state.failed)
	if err := crawler.options.Sink.SaveFailedList(context.WithoutCancel(ctx), state.runID, failedNames); err != nil {
		logger.WithError(err).Error("Failed to save failed device list")
	}

	result := &Result{
		RunID:     state.runID,
		Root:      root.Name,
		StartTime: startTime,
		EndTime:   time.Now(),
		Rounds:    round,
		Adjacency: state.adjacency,
		Visited:   sortedKeys(state.visited),
		Failed:    failedNames,
		Excluded:  sortedKeys(state.excluded),
		Unvisited: sortedKeys(state.frontier),
		Failures:  state.failed,
		Records:   state.records,
	}
	crawler.updateProgress(state, round, false, false)
	logger.WithFields(log.Fields{
		"rounds":   result.Rounds,
		"visited":  len(result.Visited),
		"failed":   len(result.Failed),
		"excluded": len(result.Excluded),
		"duration": result.EndTime.Sub(startTime),
	}).Info("Finished crawl")

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl interrupted: %w", err)
	}
	return result, nil
}

// Drains the frontier into the next round, skipping known and excluded names.
func (crawler *Crawler) nextRound(state *crawlState) []common.DeviceIdentity {
	identities := make([]common.DeviceIdentity, 0, len(state.frontier))
	for _, name := range sortedKeys(state.frontier) {
		identity := state.frontier[name]
		delete(state.frontier, name)
		if state.visited[name] {
			continue
		}
		if _, failed := state.failed[name]; failed {
			continue
		}
		if crawler.options.Exclude(name) {
			if !state.excluded[name] {
				log.WithFields(log.Fields{
					"run_id": state.runID,
					"device": name,
				}).Debug("Excluding device")
			}
			state.excluded[name] = true
			continue
		}
		identities = append(identities, identity)
	}
	return identities
}

func (crawler *Crawler) merge(ctx context.Context, state *crawlState, outcome visitOutcome) {
	name := outcome.identity.Name
	delete(state.frontier, name)
	if outcome.interrupted {
		state.frontier[name] = outcome.identity
		return
	}
	if outcome.err != nil {
		state.failed[name] = outcome.err.Error()
		return
	}
	if state.visited[name] {
		return
	}
	state.visited[name] = true

	neighbors := outcome.result.Neighbors
	if neighbors == nil {
		neighbors = make(common.NeighborMap)
	}
	state.adjacency[name] = neighbors

	for _, localInterface := range sortedKeys(neighbors) {
		crawler.enqueue(state, neighbors[localInterface])
	}
	for _, neighbor := range outcome.result.Shared {
		crawler.enqueue(state, neighbor)
	}

	record := crawler.deviceRecord(state, outcome.identity, outcome.result.Facts)
	state.records[name] = record
	if err := crawler.options.Sink.SaveDevice(context.WithoutCancel(ctx), record); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"run_id": state.runID,
			"device": name,
		}).Error("Failed to save device")
	}
}

// Adds a reported neighbor to the frontier unless it is already known.
func (crawler *Crawler) enqueue(state *crawlState, neighbor common.NeighborRecord) {
	if neighbor.RemoteDeviceName == "" {
		return
	}
	remote := state.canonicalName(neighbor.RemoteDeviceName)
	if state.visited[remote] || state.excluded[remote] {
		return
	}
	if _, failed := state.failed[remote]; failed {
		return
	}
	if _, queued := state.frontier[remote]; queued {
		return
	}
	if _, reported := state.reportedBy[remote]; !reported {
		state.reportedBy[remote] = neighbor
	}
	state.frontier[remote] = crawler.neighborIdentity(remote, state.reportedBy[remote])
}

func (crawler *Crawler) neighborIdentity(name string, neighbor common.NeighborRecord) common.DeviceIdentity {
	address := neighbor.RemoteIP
	if address == "" {
		address = neighbor.RemoteIPv6
	}
	if address == "" {
		address = neighbor.RemoteDeviceName
	}
	return common.DeviceIdentity{
		Name:         name,
		Address:      address,
		Class:        neighbor.RemoteClass,
		CredentialID: crawler.options.CredentialID,
	}
}

func (crawler *Crawler) deviceRecord(state *crawlState, identity common.DeviceIdentity, facts common.DeviceFacts) common.DeviceRecord {
	record := common.DeviceRecord{
		RunID:         state.runID,
		Name:          identity.Name,
		IPAddress:     identity.Address,
		Class:         identity.Class,
		Vendor:        crawler.options.Mapping.VendorFor(identity.Class),
		Model:         facts.Model,
		SerialNumber:  facts.SerialNumber,
		OSVersion:     facts.OSVersion,
		UptimeSeconds: facts.UptimeSeconds,
	}
	if neighbor, found := state.reportedBy[identity.Name]; found {
		record.IPv6Address = neighbor.RemoteIPv6
		if neighbor.RemoteVendor != "" {
			record.Vendor = neighbor.RemoteVendor
		}
		if record.Model == "" {
			record.Model = neighbor.RemoteModel
		}
	}
	return record
}

// Runs one round of visits on a bounded worker pool and waits for all of them.
func (crawler *Crawler) visitRound(ctx context.Context, identities []common.DeviceIdentity) []visitOutcome {
	workers := crawler.options.Concurrency
	if workers > len(identities) {
		workers = len(identities)
	}
	jobs := make(chan common.DeviceIdentity)
	results := make(chan visitOutcome, len(identities))

	var waitGroup sync.WaitGroup
	for i := 0; i < workers; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for identity := range jobs {
				results <- crawler.visitOne(ctx, identity)
			}
		}()
	}
	for _, identity := range identities {
		jobs <- identity
	}
	close(jobs)
	waitGroup.Wait()
	close(results)

	outcomes := make([]visitOutcome, 0, len(identities))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Visits one device. Returns by the session deadline even if the visitor hangs.
func (crawler *Crawler) visitOne(ctx context.Context, identity common.DeviceIdentity) visitOutcome {
	sessionCtx, cancel := context.WithTimeout(ctx, crawler.options.SessionTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan visitOutcome, 1)
	go func() {
		result, err := crawler.visitor.Visit(sessionCtx, identity)
		done <- visitOutcome{identity: identity, result: result, err: err}
	}()

	var outcome visitOutcome
	select {
	case outcome = <-done:
	case <-sessionCtx.Done():
		select {
		case outcome = <-done:
		default:
			outcome = visitOutcome{identity: identity, err: newSessionError(sessionCtx, identity.Name, StageSession, sessionCtx.Err())}
		}
	}
	if outcome.err == nil && outcome.result == nil {
		outcome.err = &SessionError{Device: identity.Name, Stage: StageSession, Err: errors.New("visit returned no result")}
	}
	outcome.duration = time.Since(start)
	outcome.interrupted = outcome.err != nil && ctx.Err() != nil

	reason := FailureReason(outcome.err)
	if outcome.interrupted {
		reason = "cancelled"
	}
	crawler.options.Metrics.observeSession(reason, outcome.duration.Seconds())
	logger := log.WithFields(log.Fields{
		"device":   identity.Name,
		"address":  identity.Address,
		"class":    identity.Class,
		"duration": outcome.duration,
	})
	if outcome.interrupted {
		logger.WithError(outcome.err).Info("Visit interrupted, leaving device unvisited")
	} else if outcome.err != nil {
		logger.WithError(outcome.err).WithField("reason", reason).Warn("Failed to visit device")
	} else {
		logger.WithField("neighbors", len(outcome.result.Neighbors)).Info("Visited device")
	}
	return outcome
}

func (crawler *Crawler) updateProgress(state *crawlState, round int, running bool, roundDone bool) {
	crawler.mutex.Lock()
	crawler.progress = Progress{
		RunID:    state.runID,
		Running:  running,
		Round:    round,
		Visited:  len(state.visited),
		Failed:   len(state.failed),
		Excluded: len(state.excluded),
		Frontier: len(state.frontier),
	}
	progress := crawler.progress
	crawler.mutex.Unlock()
	crawler.options.Metrics.observeProgress(progress, roundDone)
}
