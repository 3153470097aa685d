// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"

	"schoolgenius-seeder/internal/domain/entity"
)

// ErrDuplicateKey 同一表内已存在相同去重键
var ErrDuplicateKey = errors.New("content record already exists")

// ContentStore 生成内容存储
// 实现必须保证同一 targetTable 内 dedupKey 唯一
type ContentStore interface {
	// Exists 检查去重键是否已存在
	Exists(ctx context.Context, targetTable, dedupKey string) (bool, error)
	// Insert 条件写入，键已存在时返回 ErrDuplicateKey
	Insert(ctx context.Context, record *entity.ContentRecord) error
	// Get 按去重键读取，不存在时返回 nil, nil
	Get(ctx context.Context, targetTable, dedupKey string) (*entity.ContentRecord, error)
	// Count 统计表内记录数
	Count(ctx context.Context, targetTable string) (int64, error)
}
