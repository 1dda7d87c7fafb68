package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"root_device": {"name": "CORE1", "address": "10.0.0.1", "credential_id": "lab"}
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, config.Concurrency)
	assert.Equal(t, 2*time.Minute, config.SessionTimeout)
	assert.Equal(t, 10*time.Second, config.ConnectTimeout)
	assert.Equal(t, OutputFormatJSON, config.OutputFormat)
	assert.Equal(t, DefaultExclusionPattern, config.ExclusionPattern)
	assert.Equal(t, DeviceClassCiscoIOS, config.RootDevice.Class)
	assert.Equal(t, "lab", config.CredentialID)
	assert.Equal(t, DefaultSSHPort, config.SSHPort)
	assert.Len(t, config.VersionMapping, len(DefaultVersionMapping))
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"root_device": {"name": "CORE1", "address": "10.0.0.1", "device_class": "cisco_nxos"},
		"credential_id": "lab",
		"concurrency": 4,
		"session_timeout": "30s",
		"connect_timeout": "1m",
		"output_format": "yaml",
		"version_mapping": [{"match": "Acme OS", "device_class": "cisco_ios", "vendor": "Acme"}]
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, config.Concurrency)
	assert.Equal(t, 30*time.Second, config.SessionTimeout)
	// Connect timeout can't exceed the whole session.
	assert.Equal(t, 30*time.Second, config.ConnectTimeout)
	assert.Equal(t, OutputFormatYAML, config.OutputFormat)
	assert.Equal(t, DeviceClassCiscoNXOS, config.RootDevice.Class)
	assert.Equal(t, "lab", config.RootDevice.CredentialID)
	require.Len(t, config.VersionMapping, 1)
	assert.Equal(t, "Acme", config.VersionMapping[0].Vendor)
	assert.Equal(t, "Cisco IOS", DefaultVersionMapping[0].Match)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"no root", `{"credential_id": "lab"}`, true},
		{"no credential", `{"root_device": {"name": "R", "address": "10.0.0.1"}}`, true},
		{"bad format", `{"root_device": {"name": "R", "address": "10.0.0.1", "credential_id": "lab"}, "output_format": "xml"}`, true},
		{"bad concurrency", `{"root_device": {"name": "R", "address": "10.0.0.1", "credential_id": "lab"}, "concurrency": -1}`, true},
		{"bad pattern", `{"root_device": {"name": "R", "address": "10.0.0.1", "credential_id": "lab"}, "exclusion_pattern": "("}`, true},
		{"influx without bucket", `{"root_device": {"name": "R", "address": "10.0.0.1", "credential_id": "lab"}, "influxdb": {"url": "http://localhost:8086"}}`, true},
		{"bad duration", `{"root_device": {"name": "R", "address": "10.0.0.1", "credential_id": "lab"}, "session_timeout": "soon"}`, false},
		{"not json", `root_device: R`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", test.content))
			require.Error(t, err)
			if test.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}

	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveCredentials(t *testing.T) {
	credentialsPath := writeFile(t, "credentials.json", `{
		"lab": {"username": "file-user", "password": "secret"},
		"keys": {"username": "admin", "private_key_path": "/dev/null"}
	}`)
	config := DefaultConfig()
	config.RootDevice = DeviceIdentity{Name: "CORE1", Address: "10.0.0.1", CredentialID: "lab"}
	config.Credentials = map[string]Credential{
		"lab":    {Username: "inline-user", Password: "secret"},
		"inline": {Username: "ops", Password: "hunter2"},
	}
	config.CredentialsPath = credentialsPath

	credentials, err := config.ResolveCredentials()
	require.NoError(t, err)
	assert.Len(t, credentials, 3)
	assert.Equal(t, "file-user", credentials["lab"].Username)
	assert.Equal(t, "ops", credentials["inline"].Username)

	config.RootDevice.CredentialID = "missing"
	_, err = config.ResolveCredentials()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	config.RootDevice.CredentialID = "lab"
	config.Credentials["broken"] = Credential{Username: "nopass"}
	_, err = config.ResolveCredentials()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDeviceIdentityTarget(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", DeviceIdentity{Address: "10.0.0.1"}.Target(0))
	assert.Equal(t, "10.0.0.1:2222", DeviceIdentity{Address: "10.0.0.1"}.Target(2222))
	assert.Equal(t, "10.0.0.1:830", DeviceIdentity{Address: "10.0.0.1", Port: 830}.Target(2222))
	assert.Equal(t, "[2001:db8::1]:22", DeviceIdentity{Address: "2001:db8::1"}.Target(22))
}

func TestDeviceFactsHas(t *testing.T) {
	facts := DeviceFacts{Missing: []string{FactUptimeSeconds}}
	assert.True(t, facts.Has(FactModel))
	assert.False(t, facts.Has(FactUptimeSeconds))
}
