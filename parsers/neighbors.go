package parsers

import (
	"fmt"
	"net/netip"
	"strings"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
)

// ParseOptions - Canonicalization applied to parsed neighbors.
type ParseOptions struct {
	Names   NameOptions
	Mapping *VersionMapping
}

type parserState int

const (
	stateIdle parserState = iota
	stateAccumulating
	stateAwaitingValue
)

type neighborParser struct {
	grammar   Grammar
	options   ParseOptions
	state     parserState
	fields    map[Field]string
	pending   []Field
	neighbors common.NeighborMap
	shared    []common.NeighborRecord
	blocks    int
	dropped   int
}

// NeighborListing - Parsed neighbor listing. Shared holds records for further devices seen on a
// local interface that already has a neighbor in Neighbors.
type NeighborListing struct {
	Neighbors common.NeighborMap
	Shared    []common.NeighborRecord
}

// ParseNeighbors - Parse a neighbor detail listing into records keyed by normalized local interface.
// Only the first neighbor per local interface is kept.
func ParseNeighbors(raw string, grammar Grammar, options ParseOptions) (common.NeighborMap, error) {
	listing, err := ParseNeighborListing(raw, grammar, options)
	if err != nil {
		return nil, err
	}
	return listing.Neighbors, nil
}

// ParseNeighborListing - Parse a neighbor detail listing, keeping neighbors that share a local interface.
// Output without any blocks is a device without neighbors. Output the device rejected, or where
// no block could be turned into a record, is an ErrParse.
func ParseNeighborListing(raw string, grammar Grammar, options ParseOptions) (*NeighborListing, error) {
	if options.Mapping == nil {
		options.Mapping = DefaultVersionMapping()
	}
	if grammar.Interfaces == nil {
		grammar.Interfaces = DefaultInterfaceTable
	}
	parser := &neighborParser{
		grammar:   grammar,
		options:   options,
		neighbors: make(common.NeighborMap),
	}

	rejected := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r \t")
		if parser.state == stateIdle && grammar.ErrorMarker != nil && grammar.ErrorMarker.MatchString(line) {
			rejected = strings.TrimSpace(line)
		}
		parser.feed(line)
	}
	parser.emit()

	log.WithFields(log.Fields{
		"grammar":   grammar.Name,
		"blocks":    parser.blocks,
		"neighbors": len(parser.neighbors),
		"shared":    len(parser.shared),
		"dropped":   parser.dropped,
	}).Trace("Parsed neighbor listing")
	if parser.blocks == 0 && rejected != "" {
		return nil, fmt.Errorf("%w: device rejected command: %v", ErrParse, rejected)
	}
	if parser.blocks > 0 && len(parser.neighbors) == 0 {
		return nil, fmt.Errorf("%w: none of %v %v blocks had a device name and local interface", ErrParse, parser.blocks, grammar.Name)
	}
	return &NeighborListing{Neighbors: parser.neighbors, Shared: parser.shared}, nil
}

func (parser *neighborParser) feed(line string) {
	if parser.grammar.Boundary != nil && parser.grammar.Boundary.MatchString(line) {
		parser.emit()
		return
	}
	if match := parser.grammar.Start.Pattern.FindStringSubmatch(line); match != nil {
		parser.emit()
		parser.state = stateAccumulating
		parser.fields = make(map[Field]string)
		parser.capture(parser.grammar.Start, match)
		return
	}

	switch parser.state {
	case stateIdle:
		// Headers and trailers
	case stateAwaitingValue:
		value := strings.TrimSpace(line)
		if value == "" {
			return
		}
		for _, field := range parser.pending {
			parser.set(field, value)
		}
		parser.pending = nil
		parser.state = stateAccumulating
	case stateAccumulating:
		for _, rule := range parser.grammar.Rules {
			if match := rule.Pattern.FindStringSubmatch(line); match != nil {
				parser.capture(rule, match)
			}
		}
	}
}

func (parser *neighborParser) capture(rule FieldRule, match []string) {
	if rule.NextLine {
		parser.pending = rule.Fields
		parser.state = stateAwaitingValue
		return
	}
	for i, field := range rule.Fields {
		if i+1 < len(match) {
			parser.set(field, strings.TrimSpace(match[i+1]))
		}
	}
}

// First value wins within a block
func (parser *neighborParser) set(field Field, value string) {
	if value == "" {
		return
	}
	if _, found := parser.fields[field]; found {
		return
	}
	if field == FieldRemoteIPv6 {
		addr, err := netip.ParseAddr(value)
		if err != nil || addr.IsLinkLocalUnicast() {
			return
		}
	}
	parser.fields[field] = value
}

func (parser *neighborParser) emit() {
	if parser.state == stateIdle {
		return
	}
	fields := parser.fields
	parser.state = stateIdle
	parser.fields = nil
	parser.pending = nil
	parser.blocks++

	name := CleanDeviceName(fields[FieldDeviceName], parser.options.Names)
	localInterface := parser.grammar.Interfaces.Normalize(fields[FieldLocalInterface])
	if name == "" || localInterface == "" {
		parser.dropped++
		log.WithFields(log.Fields{
			"grammar":         parser.grammar.Name,
			"device_name":     name,
			"local_interface": localInterface,
		}).Trace("Dropping neighbor block with missing fields")
		return
	}

	record := common.NeighborRecord{
		LocalInterface:   localInterface,
		RemoteDeviceName: name,
		RemoteInterface:  parser.grammar.Interfaces.Normalize(fields[FieldRemoteInterface]),
		RemoteIP:         fields[FieldRemoteIP],
		RemoteIPv6:       fields[FieldRemoteIPv6],
		RemoteModel:      lastToken(fields[FieldModel]),
		RemoteVersionRaw: fields[FieldVersion],
	}
	record.RemoteClass, record.RemoteVendor = parser.options.Mapping.Classify(record.RemoteVersionRaw)

	if existing, found := parser.neighbors[localInterface]; found {
		if existing.RemoteDeviceName == name {
			return
		}
		log.WithFields(log.Fields{
			"grammar":         parser.grammar.Name,
			"local_interface": localInterface,
			"kept":            existing.RemoteDeviceName,
			"shared":          name,
		}).Warn("Multiple neighbors on one interface, keeping the first in the neighbor map")
		parser.shared = append(parser.shared, record)
		return
	}
	parser.neighbors[localInterface] = record
}

func lastToken(value string) string {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
