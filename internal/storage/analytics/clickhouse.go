// Package analytics ships hand events to ClickHouse for hand-history
// analysis, grounded on the reference ClickHouseAnalytics adapter's
// connect/batch-insert shape but narrowed to the single hand_events table
// the core's events.Record actually produces.
package analytics

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"holdem-core/internal/events"
)

// Config mirrors the reference adapter's connection options.
type Config struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	Secure       bool
	MaxOpenConns int
	MaxIdleConns int
}

// Sink is a events.Publisher that writes every record to ClickHouse for
// hand-history analysis, independent of the Kafka event stream (the two
// are separate consumers of the same events.Record shape).
type Sink struct {
	conn clickhouse.Conn
}

func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		TLS: &tls.Config{InsecureSkipVerify: cfg.Secure},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: connect: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("analytics: ping: %w", err)
	}
	return &Sink{conn: conn}, nil
}

// CreateTables creates the hand_events table if absent.
func (s *Sink) CreateTables(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hand_events (
			table_id String,
			hand_id String,
			event_kind String,
			seat Int32,
			player String,
			amount UInt64,
			phase String,
			recorded_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (table_id, hand_id, recorded_at)
	`)
}

// Publish batch-inserts every record's event; satisfies events.Publisher so
// it can be composed alongside (or instead of) the Kafka publisher.
func (s *Sink) Publish(ctx context.Context, records []events.Record) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO hand_events")
	if err != nil {
		return fmt.Errorf("analytics: prepare batch: %w", err)
	}
	now := time.Now()
	for _, r := range records {
		if err := batch.Append(
			r.TableID, r.HandID, string(r.Event.Kind), int32(r.Event.Seat),
			r.Event.User, r.Event.Amount, string(r.Event.Phase), now,
		); err != nil {
			return fmt.Errorf("analytics: append: %w", err)
		}
	}
	return batch.Send()
}

func (s *Sink) Close() error { return s.conn.Close() }

var _ events.Publisher = (*Sink)(nil)
