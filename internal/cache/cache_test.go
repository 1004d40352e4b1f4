package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/domain"
)

func TestNoop_AlwaysMisses(t *testing.T) {
	var c StatsCache = Noop{}
	ctx := context.Background()
	if err := c.Set(ctx, "u1", domain.Stats{Total: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "u1"); ok || err != nil {
		t.Fatalf("Noop.Get should miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}

func TestRedis_KeyLayout(t *testing.T) {
	r := NewRedis(nil, time.Minute)
	if got := r.key("u-42"); got != "complaint-desk:stats:u-42" {
		t.Fatalf("key = %q", got)
	}
}

func TestRedis_UnreachableServerSurfacesErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedis(client, time.Minute)
	ctx := context.Background()

	if err := r.Ping(ctx); err == nil {
		t.Fatalf("expected ping error")
	}
	if _, ok, err := r.Get(ctx, "u1"); err == nil || ok {
		t.Fatalf("expected Get error, got ok=%v err=%v", ok, err)
	}
	if err := r.Set(ctx, "u1", domain.Stats{}); err == nil {
		t.Fatalf("expected Set error")
	}
	if err := r.Invalidate(ctx, "u1"); err == nil {
		t.Fatalf("expected Invalidate error")
	}
}

func TestRedis_NilPing(t *testing.T) {
	var r *Redis
	if err := r.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}

func TestNewRedisClient_UsesConfig(t *testing.T) {
	c := NewRedisClient(config.RedisConfig{Addr: "cache:6379", DB: 3})
	t.Cleanup(func() { _ = c.Close() })
	if o := c.Options(); o.Addr != "cache:6379" || o.DB != 3 {
		t.Fatalf("unexpected options: %+v", o)
	}
}
