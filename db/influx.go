package db

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2write "github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
)

// InfluxSink - Writes device and failure points to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI influxdb2api.WriteAPIBlocking
}

// NewInfluxSink - Connect and wait for the database to come up, until the context is done.
func NewInfluxSink(ctx context.Context, config common.InfluxDBConfig) (*InfluxSink, error) {
	client := influxdb2.NewClient(config.URL, config.Token)
	if err := waitForDBUp(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	log.Info("DB client started: ", config.URL)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
	}, nil
}

func waitForDBUp(ctx context.Context, client influxdb2.Client) error {
	checkHealth := func() bool {
		_, err := client.Health(ctx)
		if err != nil {
			log.WithError(err).Tracef("Database connection error")
			return false
		}
		return true
	}
	if checkHealth() {
		return nil
	}
	log.Info("Waiting for database")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if checkHealth() {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("database never came up: %w", ctx.Err())
		}
	}
}

// SaveDevice - Write a device point.
func (sink *InfluxSink) SaveDevice(ctx context.Context, record common.DeviceRecord) error {
	return sink.writeAPI.WritePoint(ctx, devicePoint(record, time.Now()))
}

// SaveFailedList - Write a point per failed device.
func (sink *InfluxSink) SaveFailedList(ctx context.Context, runID string, names []string) error {
	now := time.Now()
	for _, name := range names {
		point := influxdb2.NewPointWithMeasurement("failed_device").
			AddTag("device", name).
			AddTag("run_id", runID).
			AddField("failed", true).
			SetTime(now)
		if err := sink.writeAPI.WritePoint(ctx, point); err != nil {
			return fmt.Errorf("writing failed device %v: %w", name, err)
		}
	}
	return nil
}

// Close - Close the client.
func (sink *InfluxSink) Close() error {
	sink.client.Close()
	log.Info("DB client stopped")
	return nil
}

func devicePoint(record common.DeviceRecord, now time.Time) *influxdb2write.Point {
	return influxdb2.NewPointWithMeasurement("device").
		AddTag("device", record.Name).
		AddTag("device_class", string(record.Class)).
		AddTag("vendor", record.Vendor).
		AddTag("run_id", record.RunID).
		AddField("ip_address", record.IPAddress).
		AddField("ipv6_address", record.IPv6Address).
		AddField("model", record.Model).
		AddField("serial_number", record.SerialNumber).
		AddField("os_version", record.OSVersion).
		AddField("uptime_seconds", record.UptimeSeconds).
		SetTime(now)
}
