package parsers

import (
	"regexp"
	"strings"
)

var trailingParenthesisRegex = regexp.MustCompile(`\s*\(.*\)\s*$`)

// NameOptions - How reported device names are canonicalized.
type NameOptions struct {
	DomainSuffixes []string
	UpperCase      bool
}

// CleanDeviceName - Strip a trailing "(serial)" and any configured domain suffixes from a reported name.
func CleanDeviceName(raw string, options NameOptions) string {
	name := strings.TrimSpace(raw)
	for previous := ""; previous != name; {
		previous = name
		name = strings.TrimSpace(trailingParenthesisRegex.ReplaceAllString(name, ""))
		name = stripDomainSuffix(name, options.DomainSuffixes)
	}
	if options.UpperCase {
		name = strings.ToUpper(name)
	}
	return name
}

func stripDomainSuffix(name string, suffixes []string) string {
	for _, suffix := range suffixes {
		suffix = "." + strings.TrimPrefix(strings.TrimSpace(suffix), ".")
		if suffix == "." {
			continue
		}
		if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}
