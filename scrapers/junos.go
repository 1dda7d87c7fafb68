package scrapers

import (
	"regexp"
	"time"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/parsers"
)

var junosOperPromptRegex = regexp.MustCompile(`^[^@\s]+@[^>\s]+>\s*$`)

// Junos - Juniper devices in operational mode, discovered via LLDP.
type Junos struct {
	cliAdapter
}

// NewJunos - Create an unconnected Junos adapter.
func NewJunos(identity common.DeviceIdentity, dial Dialer) Adapter {
	return &Junos{cliAdapter{
		identity: identity,
		dial:     dial,
		prompt:   junosOperPromptRegex,
		setupCommands: []common.Command{
			{Cmd: "set cli screen-length 0"},
			{Cmd: "set cli screen-width 0"},
		},
	}}
}

func (adapter *Junos) DiscoveryCommand() common.Command {
	return common.Command{Cmd: "show lldp neighbors detail", Delay: 5 * time.Second}
}

func (adapter *Junos) ExtraFactsCommands() map[string]common.Command {
	return map[string]common.Command{
		parsers.FactsOutputVersion:  {Cmd: "show version", Delay: 2 * time.Second},
		parsers.FactsOutputHardware: {Cmd: "show chassis hardware", Delay: 2 * time.Second},
	}
}

func (adapter *Junos) Grammar() parsers.Grammar {
	return parsers.JunosLLDPGrammar
}

func (adapter *Junos) FactParser() parsers.FactParser {
	return parsers.JunosFacts
}
