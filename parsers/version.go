package parsers

import (
	"strings"

	"dev.hon.one/netcrawl/common"
)

// VersionMapping - Classifies neighbors by substrings of their version string. First match wins.
type VersionMapping struct {
	entries  []common.VersionMappingEntry
	fallback common.VersionMappingEntry
}

// NewVersionMapping - Create a mapping. Nil entries means the default mapping.
func NewVersionMapping(entries []common.VersionMappingEntry, defaultClass common.DeviceClass, defaultVendor string) *VersionMapping {
	if entries == nil {
		entries = common.DefaultVersionMapping
	}
	return &VersionMapping{
		entries:  entries,
		fallback: common.VersionMappingEntry{Class: defaultClass, Vendor: defaultVendor},
	}
}

// DefaultVersionMapping - Default entries, falling back to Cisco IOS.
func DefaultVersionMapping() *VersionMapping {
	return NewVersionMapping(nil, common.DeviceClassCiscoIOS, "Cisco")
}

// Classify - Get the class and vendor for a raw version string.
func (mapping *VersionMapping) Classify(versionRaw string) (common.DeviceClass, string) {
	for _, entry := range mapping.entries {
		if strings.Contains(versionRaw, entry.Match) {
			return entry.Class, entry.Vendor
		}
	}
	return mapping.fallback.Class, mapping.fallback.Vendor
}

// VendorFor - Get the vendor of the first entry with the class.
func (mapping *VersionMapping) VendorFor(class common.DeviceClass) string {
	for _, entry := range mapping.entries {
		if entry.Class == class {
			return entry.Vendor
		}
	}
	if class == mapping.fallback.Class {
		return mapping.fallback.Vendor
	}
	return ""
}
