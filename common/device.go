package common

import (
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/util"
)

// DeviceClass - Vendor/OS family tag selecting which adapter variant to use.
type DeviceClass string

// Known device classes. Only some of them have adapters.
const (
	DeviceClassCiscoIOS     DeviceClass = "cisco_ios"
	DeviceClassCiscoNXOS    DeviceClass = "cisco_nxos"
	DeviceClassAristaEOS    DeviceClass = "arista_eos"
	DeviceClassJuniperJunos DeviceClass = "juniper_junos"
)

// DefaultSSHPort - Port used when neither the device nor the config specifies one.
const DefaultSSHPort = uint(22)

// Credential - Credential for a device.
type Credential struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	PrivateKeyPath       string `json:"private_key_path"`
	PrivateKeyPassphrase string `json:"private_key_passphrase"`
}

// DeviceIdentity - Everything needed to open a session to a device.
type DeviceIdentity struct {
	Name         string      `json:"name"` // Unique within a crawl
	Address      string      `json:"address"`
	Port         uint        `json:"port"` // Optional, default to normal service port
	Class        DeviceClass `json:"device_class"`
	CredentialID string      `json:"credential_id"`
}

// Target - The address to dial, including port.
func (identity DeviceIdentity) Target(defaultPort uint) string {
	port := defaultPort
	if identity.Port > 0 {
		port = identity.Port
	}
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(identity.Address, strconv.FormatUint(uint64(port), 10))
}

// Command - A command to run on a device, with the time to wait for output to settle.
type Command struct {
	Cmd   string
	Delay time.Duration
}

// LoadCredentials - Load credentials from file.
func LoadCredentials(path string) (map[string]Credential, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: credentials path missing", ErrInvalidConfig)
	}

	log.WithFields(log.Fields{
		"credentials_path": path,
	}).Trace("Loading credentials")
	credentials := make(map[string]Credential)
	if err := util.ParseJSONFile(&credentials, path); err != nil {
		return nil, err
	}
	if err := validateCredentials(credentials); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"credential_count": len(credentials),
	}).Info("Loaded credentials")

	return credentials, nil
}

func validateCredentials(credentials map[string]Credential) error {
	for credentialID, credential := range credentials {
		if credentialID == "" || credential.Username == "" {
			log.WithFields(log.Fields{
				"credential_id":       credentialID,
				"credential_username": credential.Username,
			}).Error("Invalid credential, missing fields")
			return fmt.Errorf("%w: credential %q is missing fields", ErrInvalidConfig, credentialID)
		}
		if credential.Password == "" && credential.PrivateKeyPath == "" {
			return fmt.Errorf("%w: credential %q has neither password nor private key", ErrInvalidConfig, credentialID)
		}
	}
	return nil
}
