package parsers

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"dev.hon.one/netcrawl/common"
)

// Output keys of the extra facts commands.
const (
	FactsOutputVersion   = "version"
	FactsOutputInventory = "inventory"
	FactsOutputHardware  = "hardware"
)

// FactParser - Extracts device facts from extra facts command outputs, keyed like the commands.
// Fields which can't be extracted are listed as missing and reported as errors.
type FactParser func(outputs map[string]string) (common.DeviceFacts, []error)

var iosOSVersionRegex = regexp.MustCompile(`Cisco IOS(?: XE)? Software,\s*(.*)`)
var iosSerialNumberRegex = regexp.MustCompile(`Processor board ID\s+(\S+)`)
var iosUptimeRegex = regexp.MustCompile(`uptime is\s+(.*)`)
var iosModelRegex = regexp.MustCompile(`(?m)^\S+\s+(\S+)\s.*\bwith\s+\S+\s+bytes of`)

var junosModelRegex = regexp.MustCompile(`Model: ([^ \r\n]+)`)
var junosVersionRegex = regexp.MustCompile(`Junos: ([^ \r\n]+)`)
var junosChassisRegex = regexp.MustCompile(`(?m)^Chassis\s+(\S+)`)

type factBuilder struct {
	facts  common.DeviceFacts
	errors []error
}

func (builder *factBuilder) miss(field string, err error) {
	builder.facts.Missing = append(builder.facts.Missing, field)
	builder.errors = append(builder.errors, &FieldError{Field: field, Err: err})
}

func (builder *factBuilder) find(field string, regex *regexp.Regexp, output string) (string, bool) {
	match := regex.FindStringSubmatch(output)
	if match == nil || strings.TrimSpace(match[1]) == "" {
		builder.miss(field, ErrFactMissing)
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

func (builder *factBuilder) uptime(raw string) {
	seconds, err := ParseUptime(raw)
	if err != nil {
		builder.miss(common.FactUptimeSeconds, err)
		return
	}
	builder.facts.UptimeSeconds = seconds
}

// IOSFacts - Facts from IOS "show version".
func IOSFacts(outputs map[string]string) (common.DeviceFacts, []error) {
	var builder factBuilder
	version := outputs[FactsOutputVersion]

	builder.facts.OSVersion, _ = builder.find(common.FactOSVersion, iosOSVersionRegex, version)
	builder.facts.SerialNumber, _ = builder.find(common.FactSerialNumber, iosSerialNumberRegex, version)
	if uptime, ok := builder.find(common.FactUptimeSeconds, iosUptimeRegex, version); ok {
		builder.uptime(uptime)
	}
	builder.facts.Model, _ = builder.find(common.FactModel, iosModelRegex, version)

	return builder.facts, builder.errors
}

// NXOSFacts - Facts from NX-OS "show version" and "show inventory" as XML.
func NXOSFacts(outputs map[string]string) (common.DeviceFacts, []error) {
	var builder factBuilder
	version := outputs[FactsOutputVersion]

	if osVersion, err := xmlElementText(version, "kickstart_ver_str"); err == nil {
		builder.facts.OSVersion = osVersion
	} else if osVersion, err2 := xmlElementText(version, "nxos_ver_str"); err2 == nil {
		builder.facts.OSVersion = osVersion
	} else {
		builder.miss(common.FactOSVersion, err)
	}

	if serial, err := xmlElementText(version, "proc_board_id"); err == nil {
		builder.facts.SerialNumber = serial
	} else {
		builder.miss(common.FactSerialNumber, err)
	}

	if uptime, err := nxosUptime(version); err == nil {
		builder.uptime(uptime)
	} else {
		builder.miss(common.FactUptimeSeconds, err)
	}

	if model, err := xmlElementText(outputs[FactsOutputInventory], "ROW_inv", "productid"); err == nil {
		builder.facts.Model = model
	} else {
		builder.miss(common.FactModel, err)
	}

	return builder.facts, builder.errors
}

func nxosUptime(version string) (string, error) {
	var parts [3]int64
	for i, name := range []string{"kern_uptm_days", "kern_uptm_hrs", "kern_uptm_mins"} {
		text, err := xmlElementText(version, name)
		if err != nil {
			return "", err
		}
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: bad %v %q", ErrParse, name, text)
		}
		parts[i] = value
	}
	return FormatUptime(parts[0], parts[1], parts[2]), nil
}

// JunosFacts - Facts from Junos "show version" and "show chassis hardware". Uptime is not collected.
func JunosFacts(outputs map[string]string) (common.DeviceFacts, []error) {
	var builder factBuilder
	version := outputs[FactsOutputVersion]

	builder.facts.OSVersion, _ = builder.find(common.FactOSVersion, junosVersionRegex, version)
	builder.facts.Model, _ = builder.find(common.FactModel, junosModelRegex, version)
	builder.facts.SerialNumber, _ = builder.find(common.FactSerialNumber, junosChassisRegex, outputs[FactsOutputHardware])
	builder.facts.Missing = append(builder.facts.Missing, common.FactUptimeSeconds)

	return builder.facts, builder.errors
}

// Text of the first element reached through the path of nested element names, at any depth.
func xmlElementText(raw string, path ...string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	decoder.Strict = false
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	matched := 0
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%w: element %v", ErrFactMissing, strings.Join(path, "/"))
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrParse, err)
		}
		switch element := token.(type) {
		case xml.StartElement:
			if matched < len(path) && element.Name.Local == path[matched] {
				matched++
				text.Reset()
			}
		case xml.CharData:
			if matched == len(path) {
				text.Write(element)
			}
		case xml.EndElement:
			if matched == len(path) && element.Name.Local == path[len(path)-1] {
				value := strings.TrimSpace(text.String())
				if value == "" {
					return "", fmt.Errorf("%w: element %v is empty", ErrFactMissing, strings.Join(path, "/"))
				}
				return value, nil
			}
		}
	}
}
