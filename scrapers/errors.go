package scrapers

import "errors"

var (
	// ErrUnsupportedDeviceClass - No adapter variant is registered for the class.
	ErrUnsupportedDeviceClass = errors.New("unsupported device class")
	// ErrConnect - Dial, authentication or session setup failed.
	ErrConnect = errors.New("failed to connect to device")
	// ErrCommand - A command could not be run on a connected device.
	ErrCommand = errors.New("failed to run command")
	// ErrDisconnect - Closing the session failed.
	ErrDisconnect = errors.New("failed to disconnect from device")
)
