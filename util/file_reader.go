package util

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// ParseJSONFile reads a file and parses it as JSON, using the provided object.
func ParseJSONFile(destination interface{}, path string) error {
	log.WithFields(log.Fields{
		"datatype": fmt.Sprintf("%T", destination),
		"path":     path,
	}).Trace("Parsing JSON file")

	dat, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("Failed to read file")
		return fmt.Errorf("failed to read %v: %w", path, err)
	}
	if err := json.Unmarshal(dat, destination); err != nil {
		log.WithError(err).Error("Failed to parse file")
		return fmt.Errorf("failed to parse %v: %w", path, err)
	}

	return nil
}
