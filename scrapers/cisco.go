package scrapers

import (
	"regexp"
	"time"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/parsers"
)

var ciscoPromptRegex = regexp.MustCompile(`^[\w.\-:/()]+[>#]\s*$`)

var ciscoSetupCommands = []common.Command{
	{Cmd: "terminal length 0"},
	{Cmd: "terminal width 511"},
}

// CDP output can take a while on devices with many neighbors
var ciscoDiscoveryCommand = common.Command{Cmd: "show cdp neighbors detail", Delay: 5 * time.Second}

// CiscoIOS - IOS and IOS-XE devices, discovered via CDP.
type CiscoIOS struct {
	cliAdapter
}

// NewCiscoIOS - Create an unconnected IOS adapter.
func NewCiscoIOS(identity common.DeviceIdentity, dial Dialer) Adapter {
	return &CiscoIOS{cliAdapter{
		identity:      identity,
		dial:          dial,
		prompt:        ciscoPromptRegex,
		setupCommands: ciscoSetupCommands,
	}}
}

// DiscoveryCommand - CDP neighbor details.
func (adapter *CiscoIOS) DiscoveryCommand() common.Command {
	return ciscoDiscoveryCommand
}

// ExtraFactsCommands - Everything comes from "show version".
func (adapter *CiscoIOS) ExtraFactsCommands() map[string]common.Command {
	return map[string]common.Command{
		parsers.FactsOutputVersion: {Cmd: "show version", Delay: 2 * time.Second},
	}
}

// Grammar - IOS CDP detail blocks.
func (adapter *CiscoIOS) Grammar() parsers.Grammar {
	return parsers.IOSCDPGrammar
}

// FactParser - Regexes over "show version".
func (adapter *CiscoIOS) FactParser() parsers.FactParser {
	return parsers.IOSFacts
}

// CiscoNXOS - Nexus devices, discovered via CDP. Facts are read from XML output.
type CiscoNXOS struct {
	cliAdapter
}

// NewCiscoNXOS - Create an unconnected NX-OS adapter.
func NewCiscoNXOS(identity common.DeviceIdentity, dial Dialer) Adapter {
	return &CiscoNXOS{cliAdapter{
		identity:      identity,
		dial:          dial,
		prompt:        ciscoPromptRegex,
		setupCommands: ciscoSetupCommands,
	}}
}

func (adapter *CiscoNXOS) DiscoveryCommand() common.Command {
	return ciscoDiscoveryCommand
}

func (adapter *CiscoNXOS) ExtraFactsCommands() map[string]common.Command {
	return map[string]common.Command{
		parsers.FactsOutputVersion:   {Cmd: `show version | xml | exclude "]]>]]>"`, Delay: 2 * time.Second},
		parsers.FactsOutputInventory: {Cmd: `show inventory | xml | exclude "]]>]]>"`, Delay: 2 * time.Second},
	}
}

func (adapter *CiscoNXOS) Grammar() parsers.Grammar {
	return parsers.NXOSCDPGrammar
}

func (adapter *CiscoNXOS) FactParser() parsers.FactParser {
	return parsers.NXOSFacts
}
