package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dev.hon.one/netcrawl/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS network_device (
	name           TEXT PRIMARY KEY,
	ip_address     TEXT NOT NULL DEFAULT '',
	ipv6_address   TEXT NOT NULL DEFAULT '',
	device_class   TEXT NOT NULL DEFAULT '',
	vendor         TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	serial_number  TEXT NOT NULL DEFAULT '',
	os_version     TEXT NOT NULL DEFAULT '',
	uptime_seconds INTEGER NOT NULL DEFAULT 0,
	last_run_id    TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_failure (
	run_id      TEXT NOT NULL,
	device_name TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, device_name)
);
`

// SQLiteSink - Device inventory in SQLite. Devices are upserted by name.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// NewSQLiteSink - Open or create the database file.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteSink{db: db, path: path}, nil
}

// SaveDevice - Insert or update the device row.
func (sink *SQLiteSink) SaveDevice(ctx context.Context, record common.DeviceRecord) error {
	_, err := sink.db.ExecContext(ctx, `
		INSERT INTO network_device (name, ip_address, ipv6_address, device_class, vendor, model, serial_number, os_version, uptime_seconds, last_run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			ip_address = excluded.ip_address,
			ipv6_address = excluded.ipv6_address,
			device_class = excluded.device_class,
			vendor = excluded.vendor,
			model = excluded.model,
			serial_number = excluded.serial_number,
			os_version = excluded.os_version,
			uptime_seconds = excluded.uptime_seconds,
			last_run_id = excluded.last_run_id,
			updated_at = excluded.updated_at`,
		record.Name, record.IPAddress, record.IPv6Address, string(record.Class), record.Vendor, record.Model,
		record.SerialNumber, record.OSVersion, record.UptimeSeconds, record.RunID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving device %v: %w", record.Name, err)
	}
	return nil
}

// SaveFailedList - Record the failed devices of a run.
func (sink *SQLiteSink) SaveFailedList(ctx context.Context, runID string, names []string) error {
	tx, err := sink.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO crawl_failure (run_id, device_name, recorded_at) VALUES (?, ?, ?)`,
			runID, name, now,
		); err != nil {
			return fmt.Errorf("saving failed device %v: %w", name, err)
		}
	}
	return tx.Commit()
}

// Device - Get a stored device, or nil if unknown.
func (sink *SQLiteSink) Device(ctx context.Context, name string) (*common.DeviceRecord, error) {
	var record common.DeviceRecord
	var class string
	err := sink.db.QueryRowContext(ctx, `
		SELECT name, ip_address, ipv6_address, device_class, vendor, model, serial_number, os_version, uptime_seconds, last_run_id
		FROM network_device WHERE name = ?`, name,
	).Scan(&record.Name, &record.IPAddress, &record.IPv6Address, &class, &record.Vendor, &record.Model,
		&record.SerialNumber, &record.OSVersion, &record.UptimeSeconds, &record.RunID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading device %v: %w", name, err)
	}
	record.Class = common.DeviceClass(class)
	return &record, nil
}

// FailedDevices - Names recorded as failed in a run, sorted.
func (sink *SQLiteSink) FailedDevices(ctx context.Context, runID string) ([]string, error) {
	rows, err := sink.db.QueryContext(ctx,
		`SELECT device_name FROM crawl_failure WHERE run_id = ? ORDER BY device_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading failed devices: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close - Close the database.
func (sink *SQLiteSink) Close() error {
	return sink.db.Close()
}
