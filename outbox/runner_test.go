package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecociel/autopublish/domain"
)

// mockStore implements the store interface for testing
type mockStore struct {
	claimDueFunc     func(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	deleteFunc       func(ctx context.Context, id int64) error
	rescheduleFunc   func(ctx context.Context, entry domain.OutboxEntry) error
	claimCalls       int
	deleteCalls      int
	deletedIDs       []int64
	rescheduledItems []domain.OutboxEntry
}

func (m *mockStore) ClaimDue(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	m.claimCalls++
	if m.claimDueFunc != nil {
		return m.claimDueFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockStore) Delete(ctx context.Context, id int64) error {
	m.deleteCalls++
	m.deletedIDs = append(m.deletedIDs, id)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockStore) Reschedule(ctx context.Context, entry domain.OutboxEntry) error {
	m.rescheduledItems = append(m.rescheduledItems, entry)
	if m.rescheduleFunc != nil {
		return m.rescheduleFunc(ctx, entry)
	}
	return nil
}

// mockReporter implements the reporter interface for testing
type mockReporter struct {
	reportFunc  func(ctx context.Context, result domain.PublishResult) error
	reportCalls int
	reported    []domain.PublishResult
}

func (m *mockReporter) ReportResult(ctx context.Context, result domain.PublishResult) error {
	m.reportCalls++
	m.reported = append(m.reported, result)
	if m.reportFunc != nil {
		return m.reportFunc(ctx, result)
	}
	return nil
}

func entries(ids ...string) []domain.OutboxEntry {
	out := make([]domain.OutboxEntry, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.OutboxEntry{ID: int64(i + 1), Result: domain.PublishResult{DraftID: id, Success: true}})
	}
	return out
}

func TestProcess_Success(t *testing.T) {
	expected := entries("gen_a1", "gen_b2", "gen_c3")
	store := &mockStore{
		claimDueFunc: func(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
			if limit != 10 {
				t.Errorf("expected limit 10, got %d", limit)
			}
			return expected, nil
		},
	}
	rep := &mockReporter{}

	runner := New(10, time.Second, store, rep)
	if err := runner.process(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if rep.reportCalls != len(expected) {
		t.Errorf("expected %d report calls, got %d", len(expected), rep.reportCalls)
	}
	if store.deleteCalls != len(expected) {
		t.Errorf("expected %d delete calls, got %d", len(expected), store.deleteCalls)
	}
	for i, e := range expected {
		if rep.reported[i].DraftID != e.Result.DraftID {
			t.Errorf("entry %d: expected draft %s, got %s", i, e.Result.DraftID, rep.reported[i].DraftID)
		}
		if store.deletedIDs[i] != e.ID {
			t.Errorf("entry %d: expected deleted ID %d, got %d", i, e.ID, store.deletedIDs[i])
		}
	}
}

func TestProcess_ClaimError(t *testing.T) {
	expectedErr := errors.New("database connection failed")
	store := &mockStore{
		claimDueFunc: func(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
			return nil, expectedErr
		},
	}
	rep := &mockReporter{}

	err := New(10, time.Second, store, rep).process(context.Background())

	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error to wrap %v, got %v", expectedErr, err)
	}
	if rep.reportCalls != 0 {
		t.Errorf("expected 0 report calls, got %d", rep.reportCalls)
	}
}

func TestProcess_ReportErrorReschedules(t *testing.T) {
	store := &mockStore{
		claimDueFunc: func(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
			return entries("gen_a1", "gen_b2", "gen_c3"), nil
		},
	}
	rep := &mockReporter{
		reportFunc: func(ctx context.Context, result domain.PublishResult) error {
			if result.DraftID == "gen_b2" {
				return errors.New("backend unavailable")
			}
			return nil
		},
	}
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	runner := New(10, time.Second, store, rep)
	runner.now = func() time.Time { return now }
	if err := runner.process(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if rep.reportCalls != 3 {
		t.Errorf("expected 3 report calls, got %d", rep.reportCalls)
	}
	if store.deleteCalls != 2 {
		t.Errorf("expected 2 delete calls, got %d", store.deleteCalls)
	}
	if len(store.rescheduledItems) != 1 {
		t.Fatalf("expected 1 reschedule, got %d", len(store.rescheduledItems))
	}
	got := store.rescheduledItems[0]
	if got.ID != 2 || got.Attempts != 1 || got.LastError != "backend unavailable" {
		t.Errorf("unexpected rescheduled entry: %+v", got)
	}
	if got.Due.Before(now) || got.Due.After(now.Add(maxDelay)) {
		t.Errorf("due %s outside [%s, %s]", got.Due, now, now.Add(maxDelay))
	}
}

func TestProcess_RescheduleError(t *testing.T) {
	expectedErr := errors.New("update failed")
	store := &mockStore{
		claimDueFunc: func(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
			return entries("gen_a1", "gen_b2"), nil
		},
		rescheduleFunc: func(ctx context.Context, entry domain.OutboxEntry) error {
			return expectedErr
		},
	}
	rep := &mockReporter{
		reportFunc: func(ctx context.Context, result domain.PublishResult) error {
			return errors.New("backend unavailable")
		},
	}

	err := New(10, time.Second, store, rep).process(context.Background())

	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error to wrap %v, got %v", expectedErr, err)
	}
	if rep.reportCalls != 1 {
		t.Errorf("expected processing to stop after the first entry, got %d report calls", rep.reportCalls)
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	for attempts := uint16(0); attempts < 40; attempts++ {
		d := calculateBackoff(attempts, baseDelay, maxDelay)
		if d < 0 || d > maxDelay {
			t.Fatalf("attempt %d: backoff %s outside [0, %s]", attempts, d, maxDelay)
		}
	}
}
