package common

// NeighborRecord - One adjacency as reported by a device's discovery protocol.
type NeighborRecord struct {
	LocalInterface   string      `json:"local_interface" yaml:"local_interface"`
	RemoteDeviceName string      `json:"remote_device_name" yaml:"remote_device_name"`
	RemoteInterface  string      `json:"remote_interface" yaml:"remote_interface"`
	RemoteIP         string      `json:"remote_ip" yaml:"remote_ip"`
	RemoteIPv6       string      `json:"remote_ipv6,omitempty" yaml:"remote_ipv6,omitempty"`
	RemoteModel      string      `json:"remote_model" yaml:"remote_model"`
	RemoteVersionRaw string      `json:"remote_version_raw" yaml:"remote_version_raw"`
	RemoteClass      DeviceClass `json:"remote_class" yaml:"remote_class"`
	RemoteVendor     string      `json:"remote_vendor" yaml:"remote_vendor"`
}

// NeighborMap - Neighbors of one device keyed by normalized local interface.
type NeighborMap map[string]NeighborRecord

// AdjacencyList - Neighbor maps keyed by device name. Only visited devices have entries.
type AdjacencyList map[string]NeighborMap

// Fact field names.
const (
	FactOSVersion     = "os_version"
	FactSerialNumber  = "serial_number"
	FactUptimeSeconds = "uptime_seconds"
	FactModel         = "model"
)

// DeviceFacts - Per-device attributes. Fields listed in Missing could not be collected.
type DeviceFacts struct {
	OSVersion     string   `json:"os_version,omitempty" yaml:"os_version,omitempty"`
	SerialNumber  string   `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds,omitempty" yaml:"uptime_seconds,omitempty"`
	Model         string   `json:"model,omitempty" yaml:"model,omitempty"`
	Missing       []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Has - Check whether a fact field was collected.
func (facts DeviceFacts) Has(field string) bool {
	for _, missing := range facts.Missing {
		if missing == field {
			return false
		}
	}
	return true
}

// DeviceRecord - Flattened device row handed to sinks.
type DeviceRecord struct {
	RunID         string      `json:"run_id" yaml:"run_id"`
	Name          string      `json:"name" yaml:"name"`
	IPAddress     string      `json:"ip_address" yaml:"ip_address"`
	IPv6Address   string      `json:"ipv6_address,omitempty" yaml:"ipv6_address,omitempty"`
	Class         DeviceClass `json:"device_class" yaml:"device_class"`
	Vendor        string      `json:"vendor" yaml:"vendor"`
	Model         string      `json:"model" yaml:"model"`
	SerialNumber  string      `json:"serial_number" yaml:"serial_number"`
	OSVersion     string      `json:"os_version" yaml:"os_version"`
	UptimeSeconds int64       `json:"uptime_seconds" yaml:"uptime_seconds"`
}
