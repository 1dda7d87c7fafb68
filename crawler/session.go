package crawler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/parsers"
	"dev.hon.one/netcrawl/scrapers"
)

// DeviceResult - What one successful visit produced.
type DeviceResult struct {
	Identity  common.DeviceIdentity
	Neighbors common.NeighborMap
	// Shared holds further neighbors reported on a local interface already in Neighbors.
	Shared   []common.NeighborRecord
	Facts    common.DeviceFacts
	Duration time.Duration
}

// Visitor - Visits a single device. Must honor the context deadline.
type Visitor interface {
	Visit(ctx context.Context, identity common.DeviceIdentity) (*DeviceResult, error)
}

// Session - Visits devices through registered adapters.
type Session struct {
	registry *scrapers.Registry
	options  parsers.ParseOptions
}

// NewSession - Create a session visitor.
func NewSession(registry *scrapers.Registry, options parsers.ParseOptions) *Session {
	return &Session{registry: registry, options: options}
}

// Visit - Connect, discover neighbors, collect facts and disconnect.
// Disconnect failures are logged and never fail the visit.
func (session *Session) Visit(ctx context.Context, identity common.DeviceIdentity) (*DeviceResult, error) {
	start := time.Now()
	adapter, err := session.registry.Adapter(identity)
	if err != nil {
		return nil, &SessionError{Device: identity.Name, Stage: StageAdapter, Err: err}
	}

	if err := adapter.Connect(ctx); err != nil {
		return nil, newSessionError(ctx, identity.Name, StageConnect, err)
	}
	defer func() {
		if err := adapter.Disconnect(); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"device": identity.Name,
			}).Warn("Failed to disconnect from device")
		}
	}()

	output, err := adapter.Run(ctx, adapter.DiscoveryCommand())
	if err != nil {
		return nil, newSessionError(ctx, identity.Name, StageDiscover, err)
	}
	listing, err := parsers.ParseNeighborListing(output, adapter.Grammar(), session.options)
	if err != nil {
		return nil, &SessionError{Device: identity.Name, Stage: StageParse, Err: err}
	}

	facts, err := parsers.CollectFacts(ctx, identity.Name, adapter, adapter.ExtraFactsCommands(), adapter.FactParser())
	if err != nil {
		return nil, newSessionError(ctx, identity.Name, StageFacts, err)
	}

	return &DeviceResult{
		Identity:  identity,
		Neighbors: listing.Neighbors,
		Shared:    listing.Shared,
		Facts:     facts,
		Duration:  time.Since(start),
	}, nil
}
