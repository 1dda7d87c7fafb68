package parsers

import "strings"

// InterfaceAlias - Long interface type prefix and its short form.
type InterfaceAlias struct {
	Long  string
	Short string
}

// InterfaceTable - Prefix rewrites, checked in order. Longer prefixes must come first.
type InterfaceTable []InterfaceAlias

// DefaultInterfaceTable - Cisco style abbreviations.
var DefaultInterfaceTable = InterfaceTable{
	{Long: "HundredGigE", Short: "Hu"},
	{Long: "FortyGigabitEthernet", Short: "Fo"},
	{Long: "TwentyFiveGigE", Short: "Twe"},
	{Long: "TenGigabitEthernet", Short: "Ten"},
	{Long: "GigabitEthernet", Short: "Gig"},
	{Long: "FastEthernet", Short: "Fa"},
	{Long: "Ethernet", Short: "Eth"},
	{Long: "Port-channel", Short: "Po"},
}

// Normalize - Rewrite the interface type prefix to its short form.
// Names already short, or without a known prefix, are returned unchanged.
func (table InterfaceTable) Normalize(name string) string {
	name = strings.TrimSpace(name)
	// Every rewrite shortens the name, so this terminates with no long prefix left
	for rewritten := true; rewritten; {
		rewritten = false
		for _, alias := range table {
			if len(alias.Long) > len(alias.Short) && strings.HasPrefix(name, alias.Long) {
				name = alias.Short + name[len(alias.Long):]
				rewritten = true
				break
			}
		}
	}
	return name
}

// NormalizeInterface - Normalize using the default table.
func NormalizeInterface(name string) string {
	return DefaultInterfaceTable.Normalize(name)
}
