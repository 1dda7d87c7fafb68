package db

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.hon.one/netcrawl/common"
)

func testRecord(name string) common.DeviceRecord {
	return common.DeviceRecord{
		RunID:         "run-1",
		Name:          name,
		IPAddress:     "10.0.0.1",
		Class:         common.DeviceClassCiscoIOS,
		Vendor:        "Cisco",
		Model:         "WS-C3850-48T",
		SerialNumber:  "FOC1234X0YZ",
		OSVersion:     "Version 16.9.4",
		UptimeSeconds: 3600,
	}
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	defer sink.Close()

	record := testRecord("SW1")
	require.NoError(t, sink.SaveDevice(ctx, record))

	stored, err := sink.Device(ctx, "SW1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, record, *stored)

	record.RunID = "run-2"
	record.UptimeSeconds = 7200
	require.NoError(t, sink.SaveDevice(ctx, record))
	stored, err = sink.Device(ctx, "SW1")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), stored.UptimeSeconds)
	assert.Equal(t, "run-2", stored.RunID)

	unknown, err := sink.Device(ctx, "SW9")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	require.NoError(t, sink.SaveFailedList(ctx, "run-2", []string{"SW3", "SW2", "SW3"}))
	failed, err := sink.FailedDevices(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"SW2", "SW3"}, failed)

	failed, err = sink.FailedDevices(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, failed)
}

type recordingSink struct {
	devices []string
	failed  []string
	err     error
	closed  bool
}

func (sink *recordingSink) SaveDevice(_ context.Context, record common.DeviceRecord) error {
	sink.devices = append(sink.devices, record.Name)
	return sink.err
}

func (sink *recordingSink) SaveFailedList(_ context.Context, _ string, names []string) error {
	sink.failed = append(sink.failed, names...)
	return sink.err
}

func (sink *recordingSink) Close() error {
	sink.closed = true
	return sink.err
}

func TestMultiSink(t *testing.T) {
	broken := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	sinks := MultiSink{broken, LogSink{}, healthy}

	err := sinks.SaveDevice(context.Background(), testRecord("SW1"))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"SW1"}, healthy.devices, "every sink is attempted")

	assert.Error(t, sinks.SaveFailedList(context.Background(), "run-1", []string{"SW2"}))
	assert.Equal(t, []string{"SW2"}, healthy.failed)

	assert.Error(t, sinks.Close())
	assert.True(t, healthy.closed)
}

func TestWriteArtifacts(t *testing.T) {
	adjacency := common.AdjacencyList{
		"ROOT": {
			"Gig1/0/1": {
				LocalInterface:   "Gig1/0/1",
				RemoteDeviceName: "SW1",
				RemoteInterface:  "Gig1/0/48",
				RemoteIP:         "10.0.0.2",
				RemoteClass:      common.DeviceClassCiscoIOS,
				RemoteVendor:     "Cisco",
			},
		},
		"SW1": {},
	}
	date := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	for _, format := range []string{common.OutputFormatJSON, common.OutputFormatYAML} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			paths, err := WriteArtifacts(dir, format, date, adjacency, []string{"SW3", "SW2"})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "2026-10-17_adj_list."+format), paths.Adjacency)
			assert.Equal(t, filepath.Join(dir, "2026-10-17_failed_list."+format), paths.Failed)

			read, err := ReadAdjacency(paths.Adjacency)
			require.NoError(t, err)
			assert.Equal(t, adjacency, read)
		})
	}

	t.Run("failed list sorted", func(t *testing.T) {
		dir := t.TempDir()
		paths, err := WriteArtifacts(dir, common.OutputFormatJSON, date, nil, []string{"SW3", "SW2"})
		require.NoError(t, err)
		data, err := os.ReadFile(paths.Failed)
		require.NoError(t, err)
		var failed []string
		require.NoError(t, json.Unmarshal(data, &failed))
		assert.Equal(t, []string{"SW2", "SW3"}, failed)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := WriteArtifacts(t.TempDir(), "xml", date, adjacency, nil)
		assert.Error(t, err)
	})
}
