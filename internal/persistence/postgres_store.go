package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/store"

	_ "github.com/lib/pq"
)

// PostgresStore keeps every record kind in one JSONB table keyed by
// (kind, id). See migrations/000001_entities.up.sql.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// OpenDB opens and pings a lib/pq connection pool.
func OpenDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Load(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM indexer.entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return entity.Decode(kind, data)
}

func (p *PostgresStore) Save(ctx context.Context, e entity.Entity) error {
	data, err := entity.Encode(e)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO indexer.entities (kind, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, string(e.Kind()), e.EntityID(), data)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", e.Kind(), e.EntityID(), err)
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, kind entity.Kind, id string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM indexer.entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, id, err)
	}
	return nil
}

// List pages by id. A limit <= 0 binds LIMIT NULL, which Postgres reads
// as no limit.
func (p *PostgresStore) List(ctx context.Context, kind entity.Kind, afterID string, limit int) ([]entity.Entity, error) {
	var bound sql.NullInt64
	if limit > 0 {
		bound = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT data FROM indexer.entities
		WHERE kind = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, string(kind), afterID, bound)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []entity.Entity
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		e, err := entity.Decode(kind, data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable. The readiness probe
// polls it.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
