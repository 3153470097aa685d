package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/pkg/metrics"
)

const contentSchema = `
CREATE TABLE IF NOT EXISTS content_records (
	id              UUID PRIMARY KEY,
	job             TEXT NOT NULL,
	target_table    TEXT NOT NULL,
	dedup_key       TEXT NOT NULL,
	params          JSONB NOT NULL,
	identity_fields TEXT[] NOT NULL,
	payload         JSONB NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	cost_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT ux_content_records_table_key UNIQUE (target_table, dedup_key)
)`

// ContentRepository 内容记录仓储，(target_table, dedup_key) 唯一
type ContentRepository struct {
	client *Client
}

func NewContentRepository(client *Client) *ContentRepository {
	return &ContentRepository{client: client}
}

// Migrate 建表（幂等）
func (r *ContentRepository) Migrate(ctx context.Context) error {
	if err := getDB(ctx, r.client.db).Exec(contentSchema).Error; err != nil {
		return fmt.Errorf("failed to migrate content_records: %w", err)
	}
	return nil
}

func (r *ContentRepository) Exists(ctx context.Context, table, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "content.Exists")
	defer span.End()

	var found int
	err := getDB(ctx, r.client.db).
		Raw("SELECT 1 FROM content_records WHERE target_table = ? AND dedup_key = ? LIMIT 1", table, key).
		Scan(&found).Error
	metrics.RecordStoreOp("postgres", "exists", err)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check content record: %w", err)
	}
	return found == 1, nil
}

// Insert 依赖唯一约束实现条件写入，冲突时返回 ErrDuplicateKey
func (r *ContentRepository) Insert(ctx context.Context, rec *entity.ContentRecord) error {
	ctx, span := tracer.Start(ctx, "content.Insert")
	defer span.End()

	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	res := getDB(ctx, r.client.db).Exec(`
		INSERT INTO content_records (id, job, target_table, dedup_key, params, identity_fields, payload, provider, model, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?::jsonb, ?, ?::jsonb, ?, ?, ?, ?)
		ON CONFLICT (target_table, dedup_key) DO NOTHING`,
		rec.ID, rec.Job, rec.TargetTable, rec.DedupKey, string(params), pq.Array(rec.IdentityFields),
		string(payload), rec.Provider, rec.Model, rec.CostUSD, rec.CreatedAt,
	)
	metrics.RecordStoreOp("postgres", "insert", res.Error)
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to insert content record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrDuplicateKey
	}
	return nil
}

type contentRow struct {
	ID             string
	Job            string
	TargetTable    string
	DedupKey       string
	Params         string
	IdentityFields pq.StringArray `gorm:"type:text[]"`
	Payload        string
	Provider       string
	Model          string
	CostUSD        float64
	CreatedAt      time.Time
}

func (r *ContentRepository) Get(ctx context.Context, table, key string) (*entity.ContentRecord, error) {
	ctx, span := tracer.Start(ctx, "content.Get")
	defer span.End()

	var row contentRow
	res := getDB(ctx, r.client.db).Raw(`
		SELECT id, job, target_table, dedup_key, params::text AS params, identity_fields, payload::text AS payload,
			provider, model, cost_usd, created_at
		FROM content_records
		WHERE target_table = ? AND dedup_key = ?`, table, key).
		Scan(&row)
	metrics.RecordStoreOp("postgres", "get", res.Error)
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, fmt.Errorf("failed to get content record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	rec := &entity.ContentRecord{
		ID:             row.ID,
		Job:            row.Job,
		TargetTable:    row.TargetTable,
		DedupKey:       row.DedupKey,
		IdentityFields: row.IdentityFields,
		Provider:       row.Provider,
		Model:          row.Model,
		CostUSD:        row.CostUSD,
		CreatedAt:      row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Params), &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return rec, nil
}

func (r *ContentRepository) Count(ctx context.Context, table string) (int64, error) {
	ctx, span := tracer.Start(ctx, "content.Count")
	defer span.End()

	var n int64
	err := getDB(ctx, r.client.db).
		Raw("SELECT COUNT(*) FROM content_records WHERE target_table = ?", table).
		Scan(&n).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count content records: %w", err)
	}
	return n, nil
}

// HealthCheck 探测底层连接
func (r *ContentRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
