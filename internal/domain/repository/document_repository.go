package repository

import (
	"context"
	"errors"
)

// ErrLocked 状态已被其他进程锁定
var ErrLocked = errors.New("state is locked by another run")

// 文档名
const (
	DocumentProgress   = "progress"
	DocumentCostLedger = "cost-ledger"
	LockRun            = "run"
)

// DocumentStore 小型结构化文档的整读整写存储
type DocumentStore interface {
	// Load 读取文档到 v，不存在时返回 false
	Load(ctx context.Context, name string, v any) (bool, error)
	// Save 整体覆盖写入，返回时已持久化
	Save(ctx context.Context, name string, v any) error
	// Delete 删除文档，不存在时不报错
	Delete(ctx context.Context, name string) error
	// Lock 获取独占锁，已被持有时返回 ErrLocked
	Lock(ctx context.Context, name string) (func() error, error)
}
