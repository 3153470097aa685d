package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/pkg/logger"
)

const lockOwnerFile = "owner.json"

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// Lock 以目录创建实现互斥。
// 已存在的锁在以下情况视为残留并被接管：同一主机上持有进程已退出；
// 或锁的创建时间早于 staleAfter (持有进程在本机仍存活时除外)。
func (s *DocumentStore) Lock(ctx context.Context, name string) (func() error, error) {
	lockDir := filepath.Join(s.dir, "."+name+".lock")
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire lock %s: %w", lockDir, err)
		}
		owner, hasOwner := readLockOwner(lockDir)
		reason := s.staleReason(lockDir, owner, hasOwner)
		if reason == "" {
			return nil, lockedError(lockDir, owner, hasOwner)
		}
		logger.Warn(ctx, "taking over stale state lock",
			"lock", lockDir,
			"reason", reason,
			"pid", owner.PID,
			"host", owner.Hostname,
			"created_at", owner.CreatedAt,
		)
		if err := os.RemoveAll(lockDir); err != nil {
			return nil, fmt.Errorf("remove stale lock %s: %w", lockDir, err)
		}
		if err := os.Mkdir(lockDir, 0o755); err != nil {
			if os.IsExist(err) {
				owner, hasOwner = readLockOwner(lockDir)
				return nil, lockedError(lockDir, owner, hasOwner)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", lockDir, err)
		}
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := writeJSON(filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return nil, fmt.Errorf("write lock owner for %s: %w", lockDir, err)
	}

	return func() error {
		_ = os.Remove(filepath.Join(lockDir, lockOwnerFile))
		if err := os.Remove(lockDir); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("release lock %s: %w", lockDir, err)
		}
		return nil
	}, nil
}

// staleReason 返回接管锁的原因，空串表示锁仍有效
func (s *DocumentStore) staleReason(lockDir string, owner lockOwner, hasOwner bool) string {
	sameHost := hasOwner && owner.Hostname == hostnameOrUnknown()
	if sameHost && owner.PID > 0 {
		if !processAlive(owner.PID) {
			return "owner process exited"
		}
		return ""
	}
	if s.staleAfter <= 0 {
		return ""
	}

	var created time.Time
	if hasOwner {
		t, err := time.Parse(time.RFC3339, owner.CreatedAt)
		if err != nil {
			return ""
		}
		created = t
	} else {
		// owner.json 未写入就崩溃时按目录时间判断
		info, err := os.Stat(lockDir)
		if err != nil {
			return ""
		}
		created = info.ModTime()
	}
	if s.now().Sub(created) > s.staleAfter {
		return "lock older than " + s.staleAfter.String()
	}
	return ""
}

func readLockOwner(lockDir string) (lockOwner, bool) {
	var owner lockOwner
	data, err := os.ReadFile(filepath.Join(lockDir, lockOwnerFile))
	if err != nil || json.Unmarshal(data, &owner) != nil || owner.PID <= 0 {
		return lockOwner{}, false
	}
	return owner, true
}

func lockedError(lockDir string, owner lockOwner, hasOwner bool) error {
	if hasOwner {
		return fmt.Errorf("%w: %s (pid=%d created_at=%s host=%s)",
			repository.ErrLocked, lockDir, owner.PID, owner.CreatedAt, owner.Hostname)
	}
	return fmt.Errorf("%w: %s", repository.ErrLocked, lockDir)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
