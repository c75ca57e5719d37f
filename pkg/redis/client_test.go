package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthoasis/wallet-backend/pkg/config"
)

var _ IdempotencyStore = (*Client)(nil)

func TestFixedWindowAllowStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "login:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("hit %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if len(fake.expires) != 1 || fake.expires[0] != "ho:rate_limit:login:1.2.3.4" {
		t.Fatalf("expected a single expire on the window key, got %v", fake.expires)
	}
}

func TestIncrWithTTLReportsExpireFailure(t *testing.T) {
	fake := newFakeCommands()
	fake.expireErr = errors.New("readonly replica")
	client := &Client{cmd: fake}

	count, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	if err == nil || count != 1 {
		t.Fatalf("expected the count with an expire error, got %d %v", count, err)
	}
}

func TestSetNXThenDelete(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}

	key := client.WebhookEventKey("Stripe", "evt_1")
	if ok, err := client.SetNX(ctx, key, "1", time.Hour); err != nil || !ok {
		t.Fatalf("expected first claim to win, ok=%v err=%v", ok, err)
	}
	if ok, _ := client.SetNX(ctx, key, "1", time.Hour); ok {
		t.Fatal("expected second claim to lose")
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNil(err) {
		t.Fatalf("expected a missing key after delete, got %v", err)
	}
	if err := client.Del(ctx); err != nil {
		t.Fatalf("empty del should be a no-op: %v", err)
	}
}

func TestDeleteIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.LockKey("cron-worker")
	fake.data[key] = "owner-a"

	deleted, err := client.DeleteIfValue(ctx, key, "owner-b")
	if err != nil || deleted {
		t.Fatalf("foreign owner must not delete, deleted=%v err=%v", deleted, err)
	}
	deleted, err = client.DeleteIfValue(ctx, key, "owner-a")
	if err != nil || !deleted {
		t.Fatalf("owner should delete, deleted=%v err=%v", deleted, err)
	}
	if _, ok := fake.data[key]; ok {
		t.Fatal("key still present")
	}
}

func TestNilClientErrors(t *testing.T) {
	var client *Client
	ctx := context.Background()
	if _, err := client.Get(ctx, "k"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("get: %v", err)
	}
	if err := client.Ping(ctx); !errors.Is(err, errNotInitialized) {
		t.Fatalf("ping: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := (&Client{}).DeleteIfValue(ctx, "k", "v"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("delete if value: %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("pat@x.com|POST|/pay", "k1"): "ho:idempotency:pat@x.com|POST|/pay:k1",
		client.RateLimitKey("login"):                       "ho:rate_limit:login",
		client.WebhookEventKey("STRIPE", "evt_1"):          "ho:webhook:stripe:evt_1",
		client.FXRateKey("USD", "INR"):                     "ho:fx:usd:inr",
		client.LockKey(" "):                                "ho:lock",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %s want %s", got, want)
		}
	}

	staging := &Client{prefix: "ho-staging"}
	if got := staging.LockKey("cron-worker"); got != "ho-staging:lock:cron-worker" {
		t.Fatalf("prefix not applied: %s", got)
	}
}

func TestDialOptions(t *testing.T) {
	if _, err := dialOptions(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing address to fail")
	}

	opts, err := dialOptions(config.RedisConfig{
		URL:         "redis://:pw@cache:6380/2",
		DB:          5,
		PoolSize:    20,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("dial options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("url settings lost: %+v", opts)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("pool settings not filled: %+v", opts)
	}

	opts, err = dialOptions(config.RedisConfig{Address: "localhost:6379", DB: 3})
	if err != nil {
		t.Fatalf("address options: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 3 {
		t.Fatalf("unexpected address options: %+v", opts)
	}

	if _, err := dialOptions(config.RedisConfig{URL: "http://nope"}); err == nil {
		t.Fatal("expected bad scheme to fail")
	}
}

type fakeCommands struct {
	data      map[string]string
	counters  map[string]int64
	expires   []string
	expireErr error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: map[string]string{}, counters: map[string]int64{}}
}

func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script arguments"))
	}
	if f.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, key)
	return redis.NewBoolResult(f.expireErr == nil, f.expireErr)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
