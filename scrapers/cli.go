package scrapers

import (
	"context"
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
)

// Common parts of adapters driving a line-oriented CLI over a transport.
type cliAdapter struct {
	identity      common.DeviceIdentity
	dial          Dialer
	prompt        *regexp.Regexp
	setupCommands []common.Command
	transport     Transport
}

func (adapter *cliAdapter) Identity() common.DeviceIdentity {
	return adapter.identity
}

func (adapter *cliAdapter) Connect(ctx context.Context) error {
	transport, err := adapter.dial(adapter.identity, adapter.prompt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := transport.Open(ctx); err != nil {
		transport.Close()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	adapter.transport = transport

	for _, command := range adapter.setupCommands {
		if _, err := adapter.Run(ctx, command); err != nil {
			adapter.Disconnect()
			return fmt.Errorf("%w: session setup: %w", ErrConnect, err)
		}
	}

	log.WithFields(log.Fields{
		"device":  adapter.identity.Name,
		"address": adapter.identity.Address,
		"class":   adapter.identity.Class,
	}).Trace("Connected to device")
	return nil
}

func (adapter *cliAdapter) Run(ctx context.Context, command common.Command) (string, error) {
	if adapter.transport == nil {
		return "", fmt.Errorf("%w %q: not connected", ErrCommand, command.Cmd)
	}
	output, err := adapter.transport.Run(ctx, command.Cmd, command.Delay)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrCommand, command.Cmd, err)
	}
	log.WithFields(log.Fields{
		"device":  adapter.identity.Name,
		"command": command.Cmd,
		"bytes":   len(output),
	}).Trace("Ran command")
	return output, nil
}

func (adapter *cliAdapter) Disconnect() error {
	if adapter.transport == nil {
		return nil
	}
	transport := adapter.transport
	adapter.transport = nil
	if err := transport.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrDisconnect, err)
	}
	return nil
}
