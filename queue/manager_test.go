package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ecociel/autopublish/domain"
)

type mockBackend struct {
	mu         sync.Mutex
	drafts     []domain.Draft
	fetchErr   error
	deleted    []string
	clearCalls int
}

func (m *mockBackend) FetchQueue(ctx context.Context) ([]domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]domain.Draft(nil), m.drafts...), nil
}

func (m *mockBackend) DeleteDraft(ctx context.Context, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, draftID)
	return nil
}

func (m *mockBackend) ClearQueue(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	return nil
}

func (m *mockBackend) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *mockBackend) clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearCalls
}

type mockDriver struct {
	mu          sync.Mutex
	publishFunc func(ctx context.Context, s domain.PublishSession) domain.PublishResult
	order       []string
	live        int
	maxLive     int
}

func (m *mockDriver) Publish(ctx context.Context, s domain.PublishSession) domain.PublishResult {
	m.mu.Lock()
	m.order = append(m.order, s.Draft.DraftID)
	m.live++
	if m.live > m.maxLive {
		m.maxLive = m.live
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.live--
		m.mu.Unlock()
	}()

	if m.publishFunc != nil {
		return m.publishFunc(ctx, s)
	}
	r := domain.NewPublishResult(s.Draft, time.Now())
	r.Success = true
	r.PostID = "s_" + s.Draft.DraftID[4:]
	r.PublishedURL = "https://sora.chatgpt.com/p/" + r.PostID
	return r
}

func (m *mockDriver) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

type mockReporter struct {
	mu      sync.Mutex
	results []domain.PublishResult
}

func (m *mockReporter) report(ctx context.Context, r domain.PublishResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *mockReporter) reported() []domain.PublishResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PublishResult(nil), m.results...)
}

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func drafts(ids ...string) []domain.Draft {
	out := make([]domain.Draft, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Draft{DraftID: id, DraftURL: domain.DraftURLPrefix + id})
	}
	return out
}

func newTestManager(b *mockBackend, d *mockDriver, r *mockReporter, opts ...Option) (*Manager, *sleepRecorder) {
	m := New(b, d, r.report, DefaultConfig(), opts...)
	rec := &sleepRecorder{}
	m.sleep = rec.sleep
	return m, rec
}

func TestPoll_PublishesInOrderWithCoolDown(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1", "gen_b2")}
	d := &mockDriver{}
	r := &mockReporter{}
	m, sleeps := newTestManager(b, d, r)

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	m.Wait()

	order := d.published()
	if len(order) != 2 || order[0] != "gen_a1" || order[1] != "gen_b2" {
		t.Fatalf("expected gen_a1 then gen_b2, got %v", order)
	}
	if len(sleeps.calls) != 1 || sleeps.calls[0] != 5*time.Second {
		t.Errorf("expected one 5s cool-down, got %v", sleeps.calls)
	}
	deleted := b.deletedIDs()
	if len(deleted) != 2 || deleted[0] != "gen_a1" || deleted[1] != "gen_b2" {
		t.Errorf("expected both drafts deleted once, got %v", deleted)
	}
	results := r.reported()
	if len(results) != 2 || !results[0].Success || !results[1].Success {
		t.Errorf("expected two successful reports, got %+v", results)
	}
	if b.clears() != 1 {
		t.Errorf("expected queue cleared once, got %d", b.clears())
	}
	s := m.Status()
	if s.State != domain.QueueIdle || s.QueueLength != 0 || s.IsProcessing {
		t.Errorf("expected idle empty queue, got %+v", s)
	}
}

func TestPoll_SaveFailureContinues(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1", "gen_b2")}
	d := &mockDriver{}
	d.publishFunc = func(ctx context.Context, s domain.PublishSession) domain.PublishResult {
		r := domain.NewPublishResult(s.Draft, time.Now())
		if s.Draft.DraftID == "gen_a1" {
			return r.Failed("save button not found")
		}
		r.Success = true
		return r
	}
	r := &mockReporter{}
	m, _ := newTestManager(b, d, r)

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	m.Wait()

	if deleted := b.deletedIDs(); len(deleted) != 1 || deleted[0] != "gen_b2" {
		t.Errorf("expected only gen_b2 deleted, got %v", deleted)
	}
	results := r.reported()
	if len(results) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(results))
	}
	if results[0].Success || results[0].Error != "save button not found" || results[0].DraftID != "gen_a1" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if !results[1].Success {
		t.Errorf("expected gen_b2 to succeed, got %+v", results[1])
	}
}

func TestPoll_Deduplicates(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1", "gen_b2")}
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	d := &mockDriver{}
	d.publishFunc = func(ctx context.Context, s domain.PublishSession) domain.PublishResult {
		entered <- struct{}{}
		<-release
		r := domain.NewPublishResult(s.Draft, time.Now())
		r.Success = true
		return r
	}
	r := &mockReporter{}
	m, _ := newTestManager(b, d, r)

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	<-entered

	b.mu.Lock()
	b.drafts = drafts("gen_a1", "gen_b2", "gen_b2", "gen_c3")
	b.mu.Unlock()
	n, err := m.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 2 {
		t.Errorf("expected queue length 2 (gen_b2, gen_c3), got %d", n)
	}
	if err := m.Start(); !errors.Is(err, ErrAlreadyProcessing) {
		t.Errorf("expected ErrAlreadyProcessing, got %v", err)
	}
	status := m.Status()
	if status.CurrentDraft == nil || status.CurrentDraft.DraftID != "gen_a1" || status.CurrentSession == "" {
		t.Errorf("unexpected status: %+v", status)
	}

	close(release)
	m.Wait()

	order := d.published()
	if len(order) != 3 || order[0] != "gen_a1" || order[1] != "gen_b2" || order[2] != "gen_c3" {
		t.Errorf("expected each draft published once in order, got %v", order)
	}
	if d.maxLive != 1 {
		t.Errorf("expected at most one live session, got %d", d.maxLive)
	}
}

func TestStop_DiscardsQueueAndResult(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1", "gen_b2")}
	entered := make(chan struct{}, 1)
	d := &mockDriver{}
	d.publishFunc = func(ctx context.Context, s domain.PublishSession) domain.PublishResult {
		entered <- struct{}{}
		<-ctx.Done()
		return domain.NewPublishResult(s.Draft, time.Now()).Failed("publish cancelled")
	}
	r := &mockReporter{}
	m, _ := newTestManager(b, d, r)

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	<-entered
	m.Stop()
	m.Wait()

	if len(r.reported()) != 0 {
		t.Errorf("expected no reports after stop, got %+v", r.reported())
	}
	if len(b.deletedIDs()) != 0 || b.clears() != 0 {
		t.Errorf("expected no backend mutations, got deletes %v, clears %d", b.deletedIDs(), b.clears())
	}
	s := m.Status()
	if s.State != domain.QueueIdle || s.QueueLength != 0 || s.CurrentDraft != nil {
		t.Errorf("expected idle empty queue, got %+v", s)
	}
	if order := d.published(); len(order) != 1 {
		t.Errorf("expected gen_b2 never started, got %v", order)
	}
}

func TestStart_EmptyQueue(t *testing.T) {
	m, _ := newTestManager(&mockBackend{}, &mockDriver{}, &mockReporter{})

	if err := m.Start(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	if m.Status().IsProcessing {
		t.Error("expected manager to stay idle")
	}
}

func TestPoll_FetchError(t *testing.T) {
	expectedErr := errors.New("backend unavailable")
	m, _ := newTestManager(&mockBackend{fetchErr: expectedErr}, &mockDriver{}, &mockReporter{})

	_, err := m.Poll(context.Background())

	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error to wrap %v, got %v", expectedErr, err)
	}
	if m.Status().State != domain.QueueIdle {
		t.Error("expected manager to stay idle")
	}
}

func TestPoll_LedgerShortCircuit(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1")}
	d := &mockDriver{}
	r := &mockReporter{}
	ledger := NewMemoryLedger()
	_ = ledger.MarkPublished(context.Background(), "gen_a1", "s_a1")
	m, _ := newTestManager(b, d, r, WithLedger(ledger))

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	m.Wait()

	if len(d.published()) != 0 {
		t.Errorf("expected no session for a published draft, got %v", d.published())
	}
	if deleted := b.deletedIDs(); len(deleted) != 1 || deleted[0] != "gen_a1" {
		t.Errorf("expected gen_a1 removed from the backend queue, got %v", deleted)
	}
	if len(r.reported()) != 0 {
		t.Errorf("expected no report, got %d", len(r.reported()))
	}
}

func TestPoll_SuccessMarksLedger(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1")}
	ledger := NewMemoryLedger()
	m, _ := newTestManager(b, &mockDriver{}, &mockReporter{}, WithLedger(ledger))

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	m.Wait()

	if ok, _ := ledger.IsPublished(context.Background(), "gen_a1"); !ok {
		t.Error("expected gen_a1 in the ledger")
	}
}

func TestHeartbeat_DoesNotMutate(t *testing.T) {
	b := &mockBackend{}
	m, _ := newTestManager(b, &mockDriver{}, &mockReporter{})
	before := m.Status()

	m.Heartbeat(context.Background())

	if after := m.Status(); after != before {
		t.Errorf("expected unchanged status, got %+v", after)
	}
	if b.clears() != 0 {
		t.Error("expected no backend calls")
	}
}

func TestSession_Deadline(t *testing.T) {
	b := &mockBackend{drafts: drafts("gen_a1")}
	var got domain.PublishSession
	d := &mockDriver{}
	d.publishFunc = func(ctx context.Context, s domain.PublishSession) domain.PublishResult {
		got = s
		return domain.NewPublishResult(s.Draft, time.Now()).Failed("x")
	}
	m, _ := newTestManager(b, d, &mockReporter{})

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	m.Wait()

	if got.ID == "" {
		t.Fatal("expected a session id")
	}
	if d := got.Deadline.Sub(got.StartedAt); d != 60*time.Second {
		t.Errorf("expected a 60s deadline, got %s", d)
	}
}
