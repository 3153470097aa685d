package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/pkg/metrics"
)

type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) Exists(ctx context.Context, table, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM content_records WHERE target_table = ? AND dedup_key = ?", table, key,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		metrics.RecordStoreOp("sqlite", "exists", nil)
		return false, nil
	case err != nil:
		metrics.RecordStoreOp("sqlite", "exists", err)
		return false, fmt.Errorf("exists: %w", err)
	}
	metrics.RecordStoreOp("sqlite", "exists", nil)
	return true, nil
}

func (r *ContentRepository) Insert(ctx context.Context, rec *entity.ContentRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	fields, err := json.Marshal(rec.IdentityFields)
	if err != nil {
		return fmt.Errorf("encode identity fields: %w", err)
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	const query = `INSERT INTO content_records
		(id, job, target_table, dedup_key, params, identity_fields, payload, provider, model, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target_table, dedup_key) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Job, rec.TargetTable, rec.DedupKey, string(params), string(fields), string(payload),
		rec.Provider, rec.Model, rec.CostUSD, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	metrics.RecordStoreOp("sqlite", "insert", err)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrDuplicateKey
	}
	return nil
}

func (r *ContentRepository) Get(ctx context.Context, table, key string) (*entity.ContentRecord, error) {
	const query = `SELECT id, job, target_table, dedup_key, params, identity_fields, payload, provider, model, cost_usd, created_at
		FROM content_records
		WHERE target_table = ? AND dedup_key = ?`

	var (
		rec                           entity.ContentRecord
		params, fields, payload, when string
	)
	err := r.db.QueryRowContext(ctx, query, table, key).Scan(
		&rec.ID, &rec.Job, &rec.TargetTable, &rec.DedupKey, &params, &fields, &payload,
		&rec.Provider, &rec.Model, &rec.CostUSD, &when,
	)
	metrics.RecordStoreOp("sqlite", "get", ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &rec.IdentityFields); err != nil {
		return nil, fmt.Errorf("decode identity fields: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, when); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &rec, nil
}

func (r *ContentRepository) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_records WHERE target_table = ?", table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (r *ContentRepository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
