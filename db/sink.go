package db

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
)

// Sink - Persistence for crawl output. Must be safe for use from the crawl orchestrator only.
type Sink interface {
	SaveDevice(ctx context.Context, record common.DeviceRecord) error
	SaveFailedList(ctx context.Context, runID string, names []string) error
	Close() error
}

// MultiSink - Fans out to several sinks. Every sink is attempted.
type MultiSink []Sink

// SaveDevice - Save to all sinks.
func (sinks MultiSink) SaveDevice(ctx context.Context, record common.DeviceRecord) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.SaveDevice(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveFailedList - Save to all sinks.
func (sinks MultiSink) SaveFailedList(ctx context.Context, runID string, names []string) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.SaveFailedList(ctx, runID, names); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close - Close all sinks.
func (sinks MultiSink) Close() error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink - Only logs what would be stored.
type LogSink struct{}

// SaveDevice - Log the device entry.
func (LogSink) SaveDevice(_ context.Context, record common.DeviceRecord) error {
	log.WithFields(log.Fields{
		"run_id":         record.RunID,
		"device":         record.Name,
		"ip_address":     record.IPAddress,
		"device_class":   record.Class,
		"vendor":         record.Vendor,
		"model":          record.Model,
		"serial_number":  record.SerialNumber,
		"os_version":     record.OSVersion,
		"uptime_seconds": record.UptimeSeconds,
	}).Debug("Device entry")
	return nil
}

// SaveFailedList - Log the failed devices.
func (LogSink) SaveFailedList(_ context.Context, runID string, names []string) error {
	log.WithFields(log.Fields{
		"run_id":  runID,
		"count":   len(names),
		"devices": names,
	}).Debug("Failed device list")
	return nil
}

// Close - Nothing to close.
func (LogSink) Close() error {
	return nil
}
