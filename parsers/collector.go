package parsers

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
)

// CommandRunner - Something which can run a command on a connected device.
type CommandRunner interface {
	Run(ctx context.Context, command common.Command) (string, error)
}

// CollectFacts - Run the extra facts commands and extract facts from their output.
// A failing command only makes its fields missing, unless the context is done.
func CollectFacts(ctx context.Context, device string, runner CommandRunner, commands map[string]common.Command, parse FactParser) (common.DeviceFacts, error) {
	keys := make([]string, 0, len(commands))
	for key := range commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	outputs := make(map[string]string, len(commands))
	for _, key := range keys {
		output, err := runner.Run(ctx, commands[key])
		if err != nil {
			if ctx.Err() != nil {
				return common.DeviceFacts{}, err
			}
			log.WithError(err).WithFields(log.Fields{
				"device":  device,
				"command": commands[key].Cmd,
			}).Debug("Failed to run facts command")
			continue
		}
		outputs[key] = output
	}

	facts, fieldErrors := parse(outputs)
	for _, err := range fieldErrors {
		log.WithError(err).WithFields(log.Fields{
			"device": device,
		}).Debug("Missing device fact")
	}
	return facts, nil
}
