package queue

import (
	"context"
	"sync"
)

// MemoryLedger is the process-local published ledger used when no Redis
// is configured.
type MemoryLedger struct {
	mu    sync.Mutex
	posts map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{posts: make(map[string]string)}
}

func (l *MemoryLedger) IsPublished(_ context.Context, draftID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.posts[draftID]
	return ok, nil
}

func (l *MemoryLedger) MarkPublished(_ context.Context, draftID, postID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posts[draftID] = postID
	return nil
}
