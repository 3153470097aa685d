package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"

	"github.com/google/uuid"
)

// newTestClient 需要 SEEDER_TEST_REDIS=host:port，未设置时跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("SEEDER_TEST_REDIS")
	if addr == "" {
		t.Skip("SEEDER_TEST_REDIS not set")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SEEDER_TEST_REDIS must be host:port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	c, err := NewClient(&config.RedisConfig{
		Host:        host,
		Port:        port,
		KeyPrefix:   "seeder-test:" + uuid.NewString(),
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "seeder"}
	if got := c.Key("doc", "progress"); got != "seeder:doc:progress" {
		t.Errorf("Key = %q", got)
	}
	bare := &Client{}
	if got := bare.Key("lock", "run"); got != "lock:run" {
		t.Errorf("Key without prefix = %q", got)
	}
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	store := NewDocumentStore(newTestClient(t))
	ctx := context.Background()

	ledger := entity.NewCostLedger()
	if err := store.Save(ctx, repository.DocumentCostLedger, ledger); err != nil {
		t.Fatalf("save: %v", err)
	}
	var got entity.CostLedger
	found, err := store.Load(ctx, repository.DocumentCostLedger, &got)
	if err != nil || !found {
		t.Fatalf("load = %v, %v", found, err)
	}
	if err := store.Delete(ctx, repository.DocumentCostLedger); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if found, _ := store.Load(ctx, repository.DocumentCostLedger, &got); found {
		t.Error("document survived delete")
	}
}

func TestLockExclusive(t *testing.T) {
	store := NewDocumentStore(newTestClient(t))
	ctx := context.Background()

	release, err := store.Lock(ctx, repository.LockRun)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := store.Lock(ctx, repository.LockRun); !errors.Is(err, repository.ErrLocked) {
		t.Fatalf("second lock = %v, want ErrLocked", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	again, err := store.Lock(ctx, repository.LockRun)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	_ = again()
}

type countingStore struct {
	*memory.ContentStore
	mu     sync.Mutex
	exists int
}

func (s *countingStore) Exists(ctx context.Context, table, key string) (bool, error) {
	s.mu.Lock()
	s.exists++
	s.mu.Unlock()
	return s.ContentStore.Exists(ctx, table, key)
}

func TestDedupCacheServesPositiveLookups(t *testing.T) {
	backing := &countingStore{ContentStore: memory.NewContentStore()}
	cache := NewDedupCache(newTestClient(t), backing, time.Minute)
	ctx := context.Background()

	if ok, _ := cache.Exists(ctx, "qa_library", "k"); ok {
		t.Fatal("unexpected hit before insert")
	}
	rec := &entity.ContentRecord{ID: "1", TargetTable: "qa_library", DedupKey: "k"}
	if err := cache.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	before := backing.exists
	for i := 0; i < 3; i++ {
		ok, err := cache.Exists(ctx, "qa_library", "k")
		if err != nil || !ok {
			t.Fatalf("exists = %v, %v", ok, err)
		}
	}
	if backing.exists != before {
		t.Errorf("store consulted %d times after caching", backing.exists-before)
	}
	if err := cache.Insert(ctx, rec); !errors.Is(err, repository.ErrDuplicateKey) {
		t.Errorf("duplicate insert = %v", err)
	}
}
