// Package filestore 将进度与账本文档保存为本地 JSON 文件
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DocumentStore 每个文档一个 <name>.json 文件，写入为原子替换
type DocumentStore struct {
	dir        string
	staleAfter time.Duration
	now        func() time.Time
}

// Option 文档存储选项
type Option func(*DocumentStore)

// WithLockStaleAfter 其他主机持有的锁超过该时长视为残留，0 表示不按时间接管
func WithLockStaleAfter(d time.Duration) Option {
	return func(s *DocumentStore) { s.staleAfter = d }
}

// New 创建文件文档存储，目录不存在时创建
func New(dir string, opts ...Option) (*DocumentStore, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", target, err)
	}
	s := &DocumentStore{dir: target, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path 返回文档文件路径
func (s *DocumentStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *DocumentStore) Load(_ context.Context, name string, v any) (bool, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return true, nil
}

func (s *DocumentStore) Save(_ context.Context, name string, v any) error {
	return writeJSON(s.Path(name), v)
}

func (s *DocumentStore) Delete(_ context.Context, name string) error {
	path := s.Path(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return writeBytes(path, data)
}

func writeBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".seeder-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
