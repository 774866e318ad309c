package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "autopublish:published:"
	ledgerTTL = 7 * 24 * time.Hour
)

// Connect accepts either a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Ledger remembers drafts that were published, so a draft the backend
// still lists after a lost delete is not posted twice.
type Ledger struct {
	client redis.Cmdable
}

func NewLedger(client redis.Cmdable) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) IsPublished(ctx context.Context, draftID string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+draftID).Result()
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", draftID, err)
	}
	return n > 0, nil
}

// MarkPublished stores the post id the draft was published as.
func (l *Ledger) MarkPublished(ctx context.Context, draftID, postID string) error {
	if err := l.client.Set(ctx, keyPrefix+draftID, postID, ledgerTTL).Err(); err != nil {
		return fmt.Errorf("mark %s published: %w", draftID, err)
	}
	return nil
}
