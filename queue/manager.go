// Package queue owns the local publish queue and runs one publish session
// at a time against it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/ecociel/autopublish/metrics"
	"github.com/emicklei/go-restful/v3/log"
	"github.com/google/uuid"
)

var (
	ErrAlreadyProcessing = errors.New("already processing")
	ErrQueueEmpty        = errors.New("queue is empty")
)

const reportTimeout = 10 * time.Second

type Backend interface {
	FetchQueue(ctx context.Context) ([]domain.Draft, error)
	DeleteDraft(ctx context.Context, draftID string) error
	ClearQueue(ctx context.Context) error
}

type Driver interface {
	Publish(ctx context.Context, session domain.PublishSession) domain.PublishResult
}

// Reporter delivers a terminal result to the backend.
type Reporter = func(ctx context.Context, result domain.PublishResult) error

type Ledger interface {
	IsPublished(ctx context.Context, draftID string) (bool, error)
	MarkPublished(ctx context.Context, draftID, postID string) error
}

type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	CoolDown          time.Duration
	SessionTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      10 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		CoolDown:          5 * time.Second,
		SessionTimeout:    60 * time.Second,
	}
}

type Option func(*Manager)

func WithLedger(l Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

func WithMetrics(pm metrics.PublisherMetrics) Option {
	return func(m *Manager) { m.metrics = pm }
}

type Manager struct {
	backend Backend
	driver  Driver
	report  Reporter
	ledger  Ledger
	metrics metrics.PublisherMetrics
	cfg     Config
	now     func() time.Time
	newID   func() string
	sleep   func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	baseCtx    context.Context
	queue      []domain.Draft
	ids        map[string]struct{}
	processing bool
	session    *domain.PublishSession
	cancel     context.CancelFunc
	running    chan struct{}
	generation uint64

	wg sync.WaitGroup
}

func New(backend Backend, driver Driver, report Reporter, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		driver:  driver,
		report:  report,
		ledger:  NewMemoryLedger(),
		metrics: metrics.Nop{},
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		sleep:   sleep,
		baseCtx: context.Background(),
		ids:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls immediately and then every PollInterval, and emits a heartbeat
// every HeartbeatInterval. A live session is cancelled when ctx ends.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	m.poll(ctx)

	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Wait()
			return
		case <-poll.C:
			m.poll(ctx)
		case <-heartbeat.C:
			m.Heartbeat(ctx)
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	if _, err := m.Poll(ctx); err != nil && ctx.Err() == nil {
		log.Printf("poll queue: %v", err)
	}
}

// Poll merges the backend queue into the local one and starts processing
// when idle. It returns the local queue length.
func (m *Manager) Poll(ctx context.Context) (int, error) {
	drafts, err := m.backend.FetchQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("poll: %w", err)
	}
	m.metrics.DraftsPolled(len(drafts))

	m.mu.Lock()
	added := m.mergeLocked(drafts)
	if !m.processing && len(m.queue) > 0 {
		m.startLocked()
	}
	n := len(m.queue)
	m.mu.Unlock()

	m.metrics.QueueLength(n)
	if added > 0 {
		log.Printf("polled %d drafts, %d new, queue length %d", len(drafts), added, n)
	}
	return n, nil
}

// mergeLocked appends drafts whose id is neither queued nor in the live
// session, keeping arrival order.
func (m *Manager) mergeLocked(drafts []domain.Draft) int {
	added := 0
	for _, d := range drafts {
		if d.DraftID == "" {
			continue
		}
		if _, ok := m.ids[d.DraftID]; ok {
			continue
		}
		if m.session != nil && m.session.Draft.DraftID == d.DraftID {
			continue
		}
		m.ids[d.DraftID] = struct{}{}
		m.queue = append(m.queue, d)
		added++
	}
	return added
}

// Start begins processing the queued drafts.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing {
		return ErrAlreadyProcessing
	}
	if len(m.queue) == 0 {
		return ErrQueueEmpty
	}
	m.startLocked()
	return nil
}

// Stop discards the queue and cancels the live session. The cancelled
// session's result is not reported.
func (m *Manager) Stop() {
	m.mu.Lock()
	dropped := len(m.queue)
	live := m.session
	m.generation++
	m.queue = nil
	m.ids = make(map[string]struct{})
	m.processing = false
	m.session = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	m.metrics.QueueLength(0)
	if live != nil {
		log.Printf("stopped: cancelled session %s for %s, dropped %d drafts", live.ID, live.Draft.DraftID, dropped)
		return
	}
	log.Printf("stopped: dropped %d drafts", dropped)
}

func (m *Manager) Status() domain.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.QueueStatus{
		State:        domain.QueueIdle,
		QueueLength:  len(m.queue),
		IsProcessing: m.processing,
	}
	if m.processing {
		s.State = domain.QueueProcessing
	}
	if m.session != nil {
		d := m.session.Draft
		s.CurrentDraft = &d
		s.CurrentSession = m.session.ID
	}
	return s
}

// Heartbeat keeps the process visibly alive. It never changes the queue.
func (m *Manager) Heartbeat(ctx context.Context) {
	s := m.Status()
	m.metrics.Heartbeat()
	if s.CurrentSession != "" {
		log.Printf("heartbeat: %s, queue length %d, session %s for %s", s.State, s.QueueLength, s.CurrentSession, s.CurrentDraft.DraftID)
		return
	}
	log.Printf("heartbeat: %s, queue length %d", s.State, s.QueueLength)
}

// Wait blocks until no processing loop is running.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// startLocked launches the processing loop. A loop left over from before a
// Stop is awaited first so sessions never overlap.
func (m *Manager) startLocked() {
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancel = cancel
	m.processing = true
	gen := m.generation
	prev := m.running
	running := make(chan struct{})
	m.running = running

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(running)
		defer cancel()
		if prev != nil {
			<-prev
		}
		m.process(ctx, gen)
	}()
}

func (m *Manager) process(ctx context.Context, gen uint64) {
	for {
		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			m.idleLocked()
			m.mu.Unlock()
			return
		}
		if len(m.queue) == 0 {
			m.mu.Unlock()
			if err := m.backend.ClearQueue(ctx); err != nil {
				log.Printf("clear queue: %v", err)
			}
			m.mu.Lock()
			if gen == m.generation && len(m.queue) == 0 {
				m.idleLocked()
				m.mu.Unlock()
				log.Printf("queue drained, idle")
				return
			}
			m.mu.Unlock()
			continue
		}

		draft := m.queue[0]
		m.queue = m.queue[1:]
		delete(m.ids, draft.DraftID)
		now := m.now()
		session := domain.PublishSession{
			ID:        m.newID(),
			Draft:     draft,
			StartedAt: now,
			Deadline:  now.Add(m.cfg.SessionTimeout),
		}
		m.session = &session
		remaining := len(m.queue)
		m.mu.Unlock()

		m.metrics.QueueLength(remaining)
		m.drainOne(ctx, gen, session)

		m.mu.Lock()
		more := gen == m.generation && len(m.queue) > 0
		m.mu.Unlock()
		if more {
			if err := m.sleep(ctx, m.cfg.CoolDown); err != nil {
				continue
			}
		}
	}
}

func (m *Manager) idleLocked() {
	m.processing = false
	m.session = nil
	m.cancel = nil
}

// drainOne runs a single session and settles its result.
func (m *Manager) drainOne(ctx context.Context, gen uint64, session domain.PublishSession) {
	draft := session.Draft
	published, err := m.ledger.IsPublished(ctx, draft.DraftID)
	if err != nil {
		log.Printf("ledger lookup %s: %v", draft.DraftID, err)
	}
	if published {
		log.Printf("draft %s already published, removing it from the backend queue", draft.DraftID)
		m.clearSession(gen)
		if err := m.backend.DeleteDraft(ctx, draft.DraftID); err != nil {
			log.Printf("delete draft: %v", err)
		}
		return
	}

	log.Printf("session %s: publishing %s", session.ID, draft.DraftID)
	m.metrics.SessionStarted()
	result := m.driver.Publish(ctx, session)
	m.metrics.SessionLatency(m.now().Sub(session.StartedAt))

	if !m.clearSession(gen) {
		log.Printf("session %s: result for %s discarded after stop", session.ID, draft.DraftID)
		return
	}

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if result.Success {
		m.metrics.SessionSucceeded()
		if err := m.backend.DeleteDraft(settleCtx, draft.DraftID); err != nil {
			log.Printf("delete draft: %v", err)
		}
		if err := m.ledger.MarkPublished(settleCtx, draft.DraftID, result.PostID); err != nil {
			log.Printf("ledger mark %s: %v", draft.DraftID, err)
		}
	} else {
		m.metrics.SessionFailed()
		log.Printf("session %s: %s failed: %s", session.ID, draft.DraftID, result.Error)
	}
	if err := m.report(settleCtx, result); err != nil {
		log.Printf("report result of %s: %v", draft.DraftID, err)
	}
}

// clearSession drops the live session and reports whether gen is still
// current.
func (m *Manager) clearSession(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.session = nil
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
