package parsers

import "regexp"

// Field - A neighbor record field captured by a grammar rule.
type Field int

// Neighbor record fields.
const (
	FieldDeviceName Field = iota
	FieldRemoteIP
	FieldRemoteIPv6
	FieldModel
	FieldLocalInterface
	FieldRemoteInterface
	FieldVersion
)

// FieldRule - Line pattern whose submatches fill fields in order.
// With NextLine, the rule only marks the start and the next non-empty line is the value.
type FieldRule struct {
	Pattern  *regexp.Regexp
	Fields   []Field
	NextLine bool
}

// Grammar - Vendor-specific shape of a neighbor detail listing.
type Grammar struct {
	Name string
	// Boundary lines end the current block without starting a new one. Optional.
	Boundary *regexp.Regexp
	// Start lines end the current block and start a new one.
	Start FieldRule
	Rules []FieldRule
	// ErrorMarker lines mean the device rejected the command.
	ErrorMarker *regexp.Regexp
	Interfaces  InterfaceTable
}

var ciscoBoundaryRegex = regexp.MustCompile(`^-{10,}\s*$`)
var ciscoErrorMarkerRegex = regexp.MustCompile(`^\s*% `)
var ciscoDeviceIDRule = FieldRule{Pattern: regexp.MustCompile(`^Device ID:\s*(\S+)`), Fields: []Field{FieldDeviceName}}
var ciscoIPv6Rule = FieldRule{Pattern: regexp.MustCompile(`^\s*IPv6 [Aa]ddress:\s*([0-9A-Fa-f:]+)`), Fields: []Field{FieldRemoteIPv6}}
var ciscoPlatformRule = FieldRule{Pattern: regexp.MustCompile(`^Platform:\s*([^,]+)`), Fields: []Field{FieldModel}}
var ciscoInterfaceRule = FieldRule{
	Pattern: regexp.MustCompile(`^Interface:\s*([^,\s]+)\s*,\s*Port ID \(outgoing port\):\s*(\S+)`),
	Fields:  []Field{FieldLocalInterface, FieldRemoteInterface},
}
var ciscoVersionRule = FieldRule{Pattern: regexp.MustCompile(`^Version\s*:\s*$`), Fields: []Field{FieldVersion}, NextLine: true}

// IOSCDPGrammar - "show cdp neighbors detail" on IOS and IOS-XE.
var IOSCDPGrammar = Grammar{
	Name:     "ios_cdp",
	Boundary: ciscoBoundaryRegex,
	Start:    ciscoDeviceIDRule,
	Rules: []FieldRule{
		{Pattern: regexp.MustCompile(`^\s*IP address:\s*(\d+\.\d+\.\d+\.\d+)`), Fields: []Field{FieldRemoteIP}},
		ciscoIPv6Rule,
		ciscoPlatformRule,
		ciscoInterfaceRule,
		ciscoVersionRule,
	},
	ErrorMarker: ciscoErrorMarkerRegex,
	Interfaces:  DefaultInterfaceTable,
}

// NXOSCDPGrammar - "show cdp neighbors detail" on NX-OS.
var NXOSCDPGrammar = Grammar{
	Name:     "nxos_cdp",
	Boundary: ciscoBoundaryRegex,
	Start:    ciscoDeviceIDRule,
	Rules: []FieldRule{
		{Pattern: regexp.MustCompile(`^\s*IPv4 Address:\s*(\d+\.\d+\.\d+\.\d+)`), Fields: []Field{FieldRemoteIP}},
		ciscoIPv6Rule,
		ciscoPlatformRule,
		ciscoInterfaceRule,
		ciscoVersionRule,
	},
	ErrorMarker: ciscoErrorMarkerRegex,
	Interfaces:  DefaultInterfaceTable,
}

// JunosLLDPGrammar - "show lldp neighbors detail" on Junos.
var JunosLLDPGrammar = Grammar{
	Name:  "junos_lldp",
	Start: FieldRule{Pattern: regexp.MustCompile(`^Local Information:`)},
	Rules: []FieldRule{
		{Pattern: regexp.MustCompile(`^Local Interface\s*:\s*(\S+)`), Fields: []Field{FieldLocalInterface}},
		{Pattern: regexp.MustCompile(`^Port ID\s*:\s*(\S+)`), Fields: []Field{FieldRemoteInterface}},
		{Pattern: regexp.MustCompile(`^System name\s*:\s*(\S+)`), Fields: []Field{FieldDeviceName}},
		{Pattern: regexp.MustCompile(`^System Description\s*:\s*(.+?)\s*$`), Fields: []Field{FieldVersion}},
		{Pattern: regexp.MustCompile(`^System Description\s*:\s*Juniper Networks, Inc\.\s+(\S+)`), Fields: []Field{FieldModel}},
		{Pattern: regexp.MustCompile(`^\s*Address\s*:\s*(\d+\.\d+\.\d+\.\d+)`), Fields: []Field{FieldRemoteIP}},
		{Pattern: regexp.MustCompile(`^\s*Address\s*:\s*([0-9A-Fa-f]*:[0-9A-Fa-f:]+)`), Fields: []Field{FieldRemoteIPv6}},
	},
	ErrorMarker: regexp.MustCompile(`^\s*error: `),
	Interfaces:  DefaultInterfaceTable,
}
