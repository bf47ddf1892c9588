package sync

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store against a PostgreSQL backend.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// UpsertNode writes the latest projection of a node, keyed by node number.
func (s *PostgresStore) UpsertNode(ctx context.Context, rec *NodeRecord) error {
	query := `
        INSERT INTO mesh_nodes (
            num, long_name, short_name, hw_model, lat, lng, altitude,
            battery_level, voltage, channel_utilization, air_util_tx,
            uptime_seconds, last_heard
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
        )
        ON CONFLICT (num) DO UPDATE SET
            long_name = COALESCE(EXCLUDED.long_name, mesh_nodes.long_name),
            short_name = COALESCE(EXCLUDED.short_name, mesh_nodes.short_name),
            hw_model = COALESCE(EXCLUDED.hw_model, mesh_nodes.hw_model),
            lat = COALESCE(EXCLUDED.lat, mesh_nodes.lat),
            lng = COALESCE(EXCLUDED.lng, mesh_nodes.lng),
            altitude = COALESCE(EXCLUDED.altitude, mesh_nodes.altitude),
            battery_level = COALESCE(EXCLUDED.battery_level, mesh_nodes.battery_level),
            voltage = COALESCE(EXCLUDED.voltage, mesh_nodes.voltage),
            channel_utilization = COALESCE(EXCLUDED.channel_utilization, mesh_nodes.channel_utilization),
            air_util_tx = COALESCE(EXCLUDED.air_util_tx, mesh_nodes.air_util_tx),
            uptime_seconds = COALESCE(EXCLUDED.uptime_seconds, mesh_nodes.uptime_seconds),
            last_heard = EXCLUDED.last_heard`

	_, err := s.db.ExecContext(ctx, query,
		rec.Num, rec.LongName, rec.ShortName, rec.HWModel,
		rec.Lat, rec.Lng, rec.Altitude,
		rec.BatteryLevel, rec.Voltage, rec.ChannelUtilization, rec.AirUtilTx,
		rec.UptimeSeconds, rec.LastHeard,
	)

	return err
}

// InsertPacket appends one packet-log row.
func (s *PostgresStore) InsertPacket(ctx context.Context, rec *PacketRecord) error {
	query := `
        INSERT INTO mesh_packets (
            id, from_node, to_node, rx_snr, rx_rssi, hop_limit, rx_time
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.FromNode, rec.ToNode,
		rec.RxSNR, rec.RxRSSI, rec.HopLimit, rec.RxTime,
	)

	return err
}
