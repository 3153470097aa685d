// Package memory 提供进程内存储实现，用于试运行与测试
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
)

// ContentStore 内存内容存储
type ContentStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*entity.ContentRecord
	order   []string
}

// NewContentStore 创建内存内容存储
func NewContentStore() *ContentStore {
	return &ContentStore{records: make(map[string]map[string]*entity.ContentRecord)}
}

// Exists 检查去重键是否已存在
func (s *ContentStore) Exists(_ context.Context, table, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[table][key]
	return ok, nil
}

// Insert 条件写入
func (s *ContentStore) Insert(_ context.Context, record *entity.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.records[record.TargetTable]
	if !ok {
		byKey = make(map[string]*entity.ContentRecord)
		s.records[record.TargetTable] = byKey
	}
	if _, exists := byKey[record.DedupKey]; exists {
		return repository.ErrDuplicateKey
	}
	cp := *record
	byKey[record.DedupKey] = &cp
	s.order = append(s.order, record.TargetTable+"\x00"+record.DedupKey)
	return nil
}

// Get 按去重键读取
func (s *ContentStore) Get(_ context.Context, table, key string) (*entity.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[table][key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Count 统计表内记录数
func (s *ContentStore) Count(_ context.Context, table string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records[table])), nil
}

// InsertionOrder 返回写入顺序 (table\x00key)
func (s *ContentStore) InsertionOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// DocumentStore 内存文档存储，按 JSON 序列化保存以模拟持久化语义
type DocumentStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	locks map[string]bool
}

// NewDocumentStore 创建内存文档存储
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string][]byte), locks: make(map[string]bool)}
}

// Load 读取文档
func (s *DocumentStore) Load(_ context.Context, name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

// Save 覆盖写入
func (s *DocumentStore) Save(_ context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = b
	return nil
}

// Delete 删除文档
func (s *DocumentStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, name)
	return nil
}

// Lock 获取独占锁
func (s *DocumentStore) Lock(_ context.Context, name string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[name] {
		return nil, repository.ErrLocked
	}
	s.locks[name] = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locks, name)
		return nil
	}, nil
}
