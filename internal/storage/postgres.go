// internal/storage/postgres.go
// Package storage provides the PostgreSQL implementation of the Store
// interface. Documents are stored as jsonb so the pipeline can add fields
// without schema migrations, mirroring the loosely-shaped collection the
// gateway proxies.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// postgres provides persistent document storage for media records.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
// Parameters:
//   - dsn: Database connection string in PostgreSQL format
//
// Returns:
//   - Store: Implementation of the storage interface
//   - error: Any error that occurred during initialization
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema initializes the database schema.
// It creates the document table if it doesn't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Media asset documents. One row per asset; the jsonb doc is the
		-- loosely-shaped record the ingestion pipeline writes.
		CREATE TABLE IF NOT EXISTS media_records (
			id          TEXT PRIMARY KEY,
			doc         JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (p *postgres) Close() {
	p.db.Close()
}

func (p *postgres) ListMediaRecords(ctx context.Context) ([]model.MediaRecord, error) {
	rows, err := p.db.Query(ctx, `SELECT id, doc FROM media_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list media records: %w", err)
	}
	defer rows.Close()

	var out []model.MediaRecord
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan media record: %w", err)
		}
		var rec model.MediaRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode media record %s: %w", id, err)
		}
		// The row id is authoritative over whatever the document carries.
		rec.ID = id
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media records: %w", err)
	}
	return out, nil
}

func (p *postgres) GetMediaRecord(ctx context.Context, id string) (*model.MediaRecord, error) {
	var doc []byte
	err := p.db.QueryRow(ctx, `SELECT doc FROM media_records WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get media record: %w", err)
	}

	var rec model.MediaRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode media record %s: %w", id, err)
	}
	rec.ID = id
	return &rec, nil
}

func (p *postgres) UpsertMediaRecord(ctx context.Context, rec model.MediaRecord) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode media record: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO media_records (id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		rec.ID, doc)
	if err != nil {
		return fmt.Errorf("upsert media record: %w", err)
	}
	return nil
}
