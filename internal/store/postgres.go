package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createPredictionsTable = `
CREATE TABLE IF NOT EXISTS predictions (
	id         BIGSERIAL PRIMARY KEY,
	symptoms   TEXT[]           NOT NULL,
	disease    TEXT             NOT NULL,
	accuracy   DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ      NOT NULL DEFAULT now()
)`

const insertPrediction = `
INSERT INTO predictions (symptoms, disease, accuracy)
VALUES ($1, $2, $3)`

// Postgres keeps the prediction audit log.
type Postgres struct {
	pool *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createPredictionsTable); err != nil {
		return fmt.Errorf("create predictions table: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) RecordPrediction(ctx context.Context, symptoms []string, disease string, accuracy float64) error {
	if _, err := p.pool.Exec(ctx, insertPrediction, symptoms, disease, accuracy); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
