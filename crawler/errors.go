package crawler

import (
	"context"
	"errors"
	"fmt"

	"dev.hon.one/netcrawl/parsers"
	"dev.hon.one/netcrawl/scrapers"
)

var (
	// ErrRootUnreachable - The root device failed, so there is nothing to crawl.
	ErrRootUnreachable = errors.New("root device could not be crawled")
	// ErrTimeout - The session did not finish within the session timeout.
	ErrTimeout = errors.New("device session timed out")
)

// Session stages.
const (
	StageAdapter  = "adapter"
	StageConnect  = "connect"
	StageDiscover = "discover"
	StageParse    = "parse"
	StageFacts    = "facts"
	StageSession  = "session"
)

// SessionError - Why a device visit failed.
type SessionError struct {
	Device string
	Stage  string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("device %v failed during %v: %v", e.Device, e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(ctx context.Context, device string, stage string, err error) *SessionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}
	return &SessionError{Device: device, Stage: stage, Err: err}
}

// FailureReason - Short label for the error kind.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, scrapers.ErrUnsupportedDeviceClass):
		return "unsupported_class"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, scrapers.ErrConnect):
		return "connect"
	case errors.Is(err, parsers.ErrParse):
		return "parse"
	case errors.Is(err, scrapers.ErrCommand):
		return "command"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "other"
	}
}
