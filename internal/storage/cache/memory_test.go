package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AthenaAgent/athena-dr/pkg/config"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v1" {
		t.Errorf("Get: got %q", v)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &v); err == nil {
		t.Error("Get after Delete should error")
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var v string
	if err := s.Get(ctx, "missing", &v); err == nil {
		t.Error("Get missing should error")
	}
}

func TestMemoryStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ok, err := s.Exists(ctx, "k")
	if err != nil || ok {
		t.Errorf("Exists missing: ok=%v err=%v", ok, err)
	}
	_ = s.Set(ctx, "k", "v", 0)
	ok, err = s.Exists(ctx, "k")
	if err != nil || !ok {
		t.Errorf("Exists present: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k1", "v1", 0)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err == nil {
		t.Error("Get after Clear should error")
	}
}


func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", "v", time.Minute)
	var v string
	if err := s.Get(ctx, "k", &v); err != nil || v != "v" {
		t.Fatalf("Get before expiry: v=%q err=%v", v, err)
	}
	now = now.Add(time.Minute)
	if err := s.Get(ctx, "k", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after expiry: want ErrMiss, got %v", err)
	}
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("Exists after expiry should be false")
	}
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(context.Background(), config.CacheConfig{Type: "memory"})
	if err != nil || c == nil {
		t.Fatalf("NewCache memory: %v", err)
	}
	if _, err := NewCache(context.Background(), config.CacheConfig{Type: "etcd"}); err == nil {
		t.Error("unknown cache type should error")
	}
}
