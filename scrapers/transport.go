package scrapers

import (
	"context"
	"regexp"
	"time"

	"dev.hon.one/netcrawl/common"
)

// Transport - Interactive remote shell. Not safe for concurrent use.
type Transport interface {
	// Open connects and waits for the first prompt.
	Open(ctx context.Context) error
	// Run sends a command, waits the settle delay and returns the output without echo and prompt.
	Run(ctx context.Context, command string, settle time.Duration) (string, error)
	Close() error
}

// Dialer - Creates an unopened transport for a device. The prompt marks the end of command output.
type Dialer func(identity common.DeviceIdentity, prompt *regexp.Regexp) (Transport, error)
