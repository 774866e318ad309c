package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	redis.Cmdable
	values  map[string]string
	ttls    map[string]time.Duration
	failure error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if m.failure != nil {
		return redis.NewIntResult(0, m.failure)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.failure != nil {
		return redis.NewStatusResult("", m.failure)
	}
	m.values[key] = value.(string)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestLedger_MarkAndLookup(t *testing.T) {
	client := newMockCmdable()
	l := NewLedger(client)
	ctx := context.Background()

	published, err := l.IsPublished(ctx, "gen_a1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if published {
		t.Fatal("expected gen_a1 not to be published yet")
	}

	if err := l.MarkPublished(ctx, "gen_a1", "s_0f1e"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	key := "autopublish:published:gen_a1"
	if client.values[key] != "s_0f1e" {
		t.Errorf("expected post id under %s, got %+v", key, client.values)
	}
	if client.ttls[key] != 7*24*time.Hour {
		t.Errorf("expected a 7 day ttl, got %v", client.ttls[key])
	}

	published, err = l.IsPublished(ctx, "gen_a1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !published {
		t.Error("expected gen_a1 to be published")
	}
}

func TestLedger_Errors(t *testing.T) {
	client := newMockCmdable()
	client.failure = errors.New("connection refused")
	l := NewLedger(client)

	if _, err := l.IsPublished(context.Background(), "gen_a1"); !errors.Is(err, client.failure) {
		t.Errorf("expected wrapped lookup error, got: %v", err)
	}
	if err := l.MarkPublished(context.Background(), "gen_a1", "s_1"); !errors.Is(err, client.failure) {
		t.Errorf("expected wrapped mark error, got: %v", err)
	}
}
