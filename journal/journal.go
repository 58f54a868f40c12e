// Package journal persists contract events for audit and inspection. The
// contract emits events while holding its state lock, so sinks here buffer
// and write in the background.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
)

const emitBuffer = 1024

// PostgresJournal implements core.Sink with PostgreSQL persistence.
type PostgresJournal struct {
	db  *sql.DB
	log *slog.Logger

	ch   chan core.Event
	wg   sync.WaitGroup
	once sync.Once
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresJournal opens the database, runs migrations and starts the
// background writer.
func NewPostgresJournal(config *PostgresConfig, log *slog.Logger) (*PostgresJournal, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	j := &PostgresJournal{
		db:  db,
		log: log,
		ch:  make(chan core.Event, emitBuffer),
	}
	if err := j.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	j.wg.Add(1)
	go j.writer()

	return j, nil
}

func (j *PostgresJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contract_events (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		at TIMESTAMP WITH TIME ZONE NOT NULL,
		actor VARCHAR(128),
		subject VARCHAR(128),
		batch_id BIGINT,
		request_id VARCHAR(64),
		score BIGINT,
		cooldown_seconds BIGINT
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON contract_events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_request ON contract_events(request_id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Emit buffers the event for the background writer. Events are dropped,
// with a log line, when the buffer is full; the journal must never stall
// the contract.
func (j *PostgresJournal) Emit(e core.Event) {
	select {
	case j.ch <- e:
	default:
		j.log.Warn("Event journal buffer full, dropping event", "kind", string(e.Kind))
	}
}

func (j *PostgresJournal) writer() {
	defer j.wg.Done()

	for e := range j.ch {
		if err := j.insert(e); err != nil {
			j.log.Error("Failed to persist event", "kind", string(e.Kind), "err", err)
		}
	}
}

func (j *PostgresJournal) insert(e core.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO contract_events
		(kind, at, actor, subject, batch_id, request_id, score, cooldown_seconds)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := j.db.ExecContext(ctx, query,
		string(e.Kind),
		e.At,
		e.Actor,
		e.Subject,
		int64(e.BatchID),
		e.RequestID,
		e.Score,
		e.CooldownSeconds,
	)
	return err
}

// Recent returns up to limit most recent events, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]core.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, at, actor, subject, batch_id, request_id, score, cooldown_seconds
		FROM contract_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var (
			e       core.Event
			kind    string
			batchID int64
		)
		if err := rows.Scan(&kind, &e.At, &e.Actor, &e.Subject, &batchID, &e.RequestID, &e.Score, &e.CooldownSeconds); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.Kind = core.EventKind(kind)
		e.BatchID = uint64(batchID)
		events = append(events, e)
	}

	return events, rows.Err()
}

// Close stops the writer, flushes buffered events and closes the database.
func (j *PostgresJournal) Close() error {
	j.once.Do(func() {
		close(j.ch)
	})
	j.wg.Wait()
	return j.db.Close()
}

var _ core.Sink = (*PostgresJournal)(nil)
