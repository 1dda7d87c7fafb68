package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/util"
)

// ErrInvalidConfig - Config or credentials failed validation.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultExclusionPattern - Phones, access points, wireless controllers and similar.
const DefaultExclusionPattern = `(^NA\-|^SEP|^ACVD|^ACWD|^ACPDC|^AP|WAP|WLC|CMP)`

// Output formats for the adjacency and failed list artifacts.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// VersionMappingEntry - Maps a substring of a neighbor's version string to a class and vendor.
type VersionMappingEntry struct {
	Match  string      `json:"match"`
	Class  DeviceClass `json:"device_class"`
	Vendor string      `json:"vendor"`
}

// DefaultVersionMapping - Used when the config doesn't specify any mapping.
var DefaultVersionMapping = []VersionMappingEntry{
	{Match: "Cisco IOS", Class: DeviceClassCiscoIOS, Vendor: "Cisco"},
	{Match: "Cisco Nexus", Class: DeviceClassCiscoNXOS, Vendor: "Cisco"},
	{Match: "Arista Networks", Class: DeviceClassAristaEOS, Vendor: "Arista"},
	{Match: "Juniper Networks", Class: DeviceClassJuniperJunos, Vendor: "Juniper"},
}

// InfluxDBConfig - Optional time-series sink.
type InfluxDBConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Enabled - Whether the InfluxDB sink should be used.
func (config InfluxDBConfig) Enabled() bool {
	return config.URL != ""
}

// Config - The config.
type Config struct {
	RootDevice       DeviceIdentity        `json:"root_device"`
	CredentialsPath  string                `json:"credentials_path"`
	Credentials      map[string]Credential `json:"credentials"`
	CredentialID     string                `json:"credential_id"` // For discovered devices
	ExclusionPattern string                `json:"exclusion_pattern"`
	Concurrency      int                   `json:"concurrency"`
	SessionTimeout   time.Duration         `json:"-"`
	ConnectTimeout   time.Duration         `json:"-"`
	SSHPort          uint                  `json:"ssh_port"`
	DomainSuffixes   []string              `json:"domain_suffixes"`
	UpperCaseNames   bool                  `json:"uppercase_names"`
	VersionMapping   []VersionMappingEntry `json:"version_mapping"`
	DefaultClass     DeviceClass           `json:"default_class"`
	DefaultVendor    string                `json:"default_vendor"`
	OutputDir        string                `json:"output_dir"`
	OutputFormat     string                `json:"output_format"`
	SQLitePath       string                `json:"sqlite_path"`
	InfluxDB         InfluxDBConfig        `json:"influxdb"`
	HTTPEndpoint     string                `json:"http_endpoint"`
}

// DefaultConfig - Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		ExclusionPattern: DefaultExclusionPattern,
		Concurrency:      16,
		SessionTimeout:   2 * time.Minute,
		ConnectTimeout:   10 * time.Second,
		SSHPort:          DefaultSSHPort,
		VersionMapping:   append([]VersionMappingEntry(nil), DefaultVersionMapping...),
		DefaultClass:     DeviceClassCiscoIOS,
		DefaultVendor:    "Cisco",
		OutputDir:        ".",
		OutputFormat:     OutputFormatJSON,
	}
}

// UnmarshalJSON - Parse durations from strings like "2m".
func (config *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		SessionTimeout string `json:"session_timeout"`
		ConnectTimeout string `json:"connect_timeout"`
		*Alias
	}{
		Alias: (*Alias)(config),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.SessionTimeout != "" {
		duration, err := time.ParseDuration(aux.SessionTimeout)
		if err != nil {
			return fmt.Errorf("invalid session_timeout: %w", err)
		}
		config.SessionTimeout = duration
	}
	if aux.ConnectTimeout != "" {
		duration, err := time.ParseDuration(aux.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("invalid connect_timeout: %w", err)
		}
		config.ConnectTimeout = duration
	}

	return nil
}

// LoadConfig - Load configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return nil, fmt.Errorf("%w: config path missing", ErrInvalidConfig)
	}

	log.WithFields(log.Fields{
		"config_path": path,
	}).Info("Loading config")

	if err := util.ParseJSONFile(&config, path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate - Check fields and fill in derived values.
func (config *Config) Validate() error {
	if config.RootDevice.Name == "" || config.RootDevice.Address == "" {
		return fmt.Errorf("%w: root device needs both name and address", ErrInvalidConfig)
	}
	if config.RootDevice.Class == "" {
		config.RootDevice.Class = config.DefaultClass
	}
	if config.RootDevice.CredentialID == "" {
		config.RootDevice.CredentialID = config.CredentialID
	}
	if config.CredentialID == "" {
		config.CredentialID = config.RootDevice.CredentialID
	}
	if config.RootDevice.CredentialID == "" {
		return fmt.Errorf("%w: no credential ID for the root device", ErrInvalidConfig)
	}
	if config.Concurrency <= 0 {
		return fmt.Errorf("%w: non-positive concurrency not allowed", ErrInvalidConfig)
	}
	if config.SessionTimeout <= 0 {
		return fmt.Errorf("%w: session timeout is mandatory", ErrInvalidConfig)
	}
	if config.ConnectTimeout <= 0 || config.ConnectTimeout > config.SessionTimeout {
		config.ConnectTimeout = config.SessionTimeout
	}
	if config.SSHPort == 0 {
		config.SSHPort = DefaultSSHPort
	}
	if _, err := regexp.Compile(config.ExclusionPattern); err != nil {
		return fmt.Errorf("%w: bad exclusion pattern: %v", ErrInvalidConfig, err)
	}
	for _, entry := range config.VersionMapping {
		if entry.Match == "" || entry.Class == "" {
			return fmt.Errorf("%w: version mapping entries need match and device_class", ErrInvalidConfig)
		}
	}
	if config.DefaultClass == "" {
		return fmt.Errorf("%w: default class missing", ErrInvalidConfig)
	}
	switch config.OutputFormat {
	case OutputFormatJSON, OutputFormatYAML:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, config.OutputFormat)
	}
	if config.InfluxDB.Enabled() && (config.InfluxDB.Org == "" || config.InfluxDB.Bucket == "") {
		return fmt.Errorf("%w: influxdb needs org and bucket", ErrInvalidConfig)
	}

	return nil
}

// ResolveCredentials - Merge inline credentials with the credentials file, file entries last.
func (config *Config) ResolveCredentials() (map[string]Credential, error) {
	credentials := make(map[string]Credential)
	for id, credential := range config.Credentials {
		credentials[id] = credential
	}
	if config.CredentialsPath != "" {
		loaded, err := LoadCredentials(config.CredentialsPath)
		if err != nil {
			return nil, err
		}
		for id, credential := range loaded {
			credentials[id] = credential
		}
	}
	if err := validateCredentials(credentials); err != nil {
		return nil, err
	}

	if _, found := credentials[config.RootDevice.CredentialID]; !found {
		log.WithFields(log.Fields{
			"device":        config.RootDevice.Name,
			"credential_id": config.RootDevice.CredentialID,
		}).Error("Invalid root device, credential ID not found")
		return nil, fmt.Errorf("%w: credential %q not found", ErrInvalidConfig, config.RootDevice.CredentialID)
	}

	return credentials, nil
}
