package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"schoolgenius-seeder/internal/domain/repository"
)

// lockTTL 锁的租期，持有期间按 lockTTL/3 续期
const lockTTL = 30 * time.Second

// 仅当值仍为自己的令牌时才删除/续期
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// DocumentStore 以 JSON 字符串保存文档，不设过期
type DocumentStore struct {
	client *Client
}

// NewDocumentStore 创建 Redis 文档存储
func NewDocumentStore(client *Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func (s *DocumentStore) docKey(name string) string {
	return s.client.Key("doc", name)
}

func (s *DocumentStore) Load(ctx context.Context, name string, v any) (bool, error) {
	raw, err := s.client.Get(ctx, s.docKey(name))
	if IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load document %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode document %s: %w", name, err)
	}
	return true, nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.docKey(name), raw, 0); err != nil {
		return fmt.Errorf("failed to save document %s: %w", name, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.docKey(name)); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}
	return nil
}

// Lock SET NX 加租期；后台续期直到释放，进程崩溃后锁在租期结束时自动失效
func (s *DocumentStore) Lock(ctx context.Context, name string) (func() error, error) {
	key := s.client.Key("lock", name)
	host, _ := os.Hostname()
	token := fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString())

	ctx, span := tracer.Start(ctx, "redis.Lock", trace.WithAttributes(attribute.String("redis.key", key)))
	defer span.End()

	ok, err := s.client.rdb.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		owner, _ := s.client.rdb.Get(ctx, key).Result()
		return nil, fmt.Errorf("%w: %s held by %s", repository.ErrLocked, name, owner)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = renewScript.Run(context.Background(), s.client.rdb, []string{key}, token, lockTTL.Milliseconds()).Err()
			}
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			if rerr := releaseScript.Run(context.Background(), s.client.rdb, []string{key}, token).Err(); rerr != nil {
				err = fmt.Errorf("failed to release lock %s: %w", name, rerr)
			}
		})
		return err
	}, nil
}
