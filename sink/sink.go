// Package sink aggregates classified traffic and page scans per page load
// and forwards them to the backend, the event stream and the snapshot store.
package sink

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
	"github.com/google/uuid"
)

const (
	sourceCapture   = "capture"
	sourceCollector = "collector"
)

type Backend interface {
	EnqueueDrafts(ctx context.Context, drafts []domain.Draft) error
	SendCapture(ctx context.Context, rec domain.ClassifiedRecord) error
	SendStats(ctx context.Context, stats domain.Stats) error
}

type EventPublisher interface {
	PublishSync(ctx context.Context, event domain.Event) error
}

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s domain.Snapshot) error
}

type Option func(*Sink)

func WithEvents(p EventPublisher) Option {
	return func(s *Sink) { s.events = p }
}

func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Sink) { s.store = store }
}

type Sink struct {
	backend Backend
	events  EventPublisher
	store   SnapshotStore
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	snap    domain.Snapshot
	user    *domain.UserInfo
	account *domain.Account
	token   *domain.AuthToken
}

func New(backend Backend, opts ...Option) *Sink {
	s := &Sink{
		backend: backend,
		events:  nopEvents{},
		store:   nopStore{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ResetPageLoad("")
	return s
}

// ResetPageLoad starts a new aggregate for a fresh load of url. The known
// user, account and token survive the reset.
func (s *Sink) ResetPageLoad(url string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = domain.Snapshot{
		PageLoadID: s.newID(),
		URL:        url,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Sink) SetAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = &a
}

func (s *Sink) SetToken(tok domain.AuthToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &tok
}

// Snapshot returns the current page load's aggregate.
func (s *Sink) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Accept filters rec by ownership and forwards what is kept, which it also
// returns. Failures of the downstream collaborators are logged only.
func (s *Sink) Accept(ctx context.Context, rec domain.ClassifiedRecord) (domain.ClassifiedRecord, bool) {
	if rec.Kind == domain.KindUnclassified {
		return rec, false
	}

	s.mu.Lock()
	rec, keep := s.filterLocked(rec)
	if !keep {
		s.mu.Unlock()
		return rec, false
	}
	s.applyLocked(rec)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if rec.Kind == domain.KindDraftsList {
		if drafts := rec.Drafts.Unpublished(); len(drafts) > 0 {
			if err := s.backend.EnqueueDrafts(ctx, drafts); err != nil {
				log.Printf("enqueue drafts: %v", err)
			} else {
				log.Printf("enqueued %d unpublished drafts", len(drafts))
			}
		}
	}
	if err := s.backend.SendCapture(ctx, rec); err != nil {
		log.Printf("forward %s: %v", rec.Kind, err)
	}
	s.publish(ctx, string(rec.Kind), sourceCapture, snap.PageLoadID, rec, rec.CapturedAt)
	s.persist(ctx, snap)
	return rec, true
}

// AcceptScan forwards a page scan as stats, with the session account.
func (s *Sink) AcceptScan(ctx context.Context, coll domain.VideoCollection) {
	s.mu.Lock()
	s.snap.Scan = &coll
	s.snap.UpdatedAt = s.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	stats := domain.NewStats(coll, snap.Account)
	if err := s.backend.SendStats(ctx, stats); err != nil {
		log.Printf("send stats: %v", err)
	}
	s.publish(ctx, domain.EventVideoStats, sourceCollector, snap.PageLoadID, stats, coll.CollectedAt)
	s.persist(ctx, snap)
}

func (s *Sink) filterLocked(rec domain.ClassifiedRecord) (domain.ClassifiedRecord, bool) {
	switch rec.Kind {
	case domain.KindUserInfo:
		if rec.UserInfo == nil {
			return rec, false
		}
		user := *rec.UserInfo
		s.user = &user
	case domain.KindVideoDetail:
		if s.user == nil || s.user.UserID == "" {
			return rec, false
		}
		var owned []domain.VideoDetail
		for _, v := range rec.Videos {
			if v.OwnerUserID == s.user.UserID {
				owned = append(owned, v)
			}
		}
		if len(owned) == 0 {
			return rec, false
		}
		rec.Videos = owned
	case domain.KindPublishedList:
		var owned []domain.PublishedPost
		for _, p := range rec.Published {
			if p.IsOwner {
				owned = append(owned, p)
			}
		}
		if len(owned) == 0 {
			return rec, false
		}
		rec.Published = owned
	case domain.KindQuota:
		if rec.Quota == nil {
			return rec, false
		}
		q := *rec.Quota
		switch {
		case s.user != nil:
			q.UserID, q.AccountEmail = s.user.UserID, s.user.Email
		case s.account != nil:
			q.UserID, q.AccountEmail = s.account.ID, s.account.Email
		}
		rec.Quota = &q
	case domain.KindDraftsList:
		if rec.Drafts == nil {
			return rec, false
		}
	}
	return rec, true
}

func (s *Sink) applyLocked(rec domain.ClassifiedRecord) {
	switch rec.Kind {
	case domain.KindUserInfo:
		s.snap.UserInfo = rec.UserInfo
	case domain.KindQuota:
		s.snap.Quota = rec.Quota
	case domain.KindCreateVideo:
		if rec.Create != nil {
			s.snap.Created = append(s.snap.Created, *rec.Create)
		}
	case domain.KindVideoProgress:
		s.snap.Progress = rec.Progress
	case domain.KindDraftsList:
		s.snap.Drafts = rec.Drafts.Unpublished()
	case domain.KindPublishedList:
		s.snap.Published = rec.Published
	case domain.KindVideoDetail:
		s.snap.Videos = mergeVideos(s.snap.Videos, rec.Videos)
	}
	s.snap.UpdatedAt = s.now()
}

// mergeVideos returns a new slice; earlier snapshots may still be read
// outside the lock.
func mergeVideos(prev, add []domain.VideoDetail) []domain.VideoDetail {
	have := append([]domain.VideoDetail(nil), prev...)
	for _, v := range add {
		replaced := false
		for i := range have {
			if have[i].PostID == v.PostID {
				have[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			have = append(have, v)
		}
	}
	return have
}

func (s *Sink) snapshotLocked() domain.Snapshot {
	snap := s.snap
	snap.Account = s.account
	snap.Token = s.token
	if snap.UserInfo == nil {
		snap.UserInfo = s.user
	}
	return snap
}

func (s *Sink) publish(ctx context.Context, kind, source, key string, payload any, at time.Time) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("encode %s event: %v", kind, err)
		return
	}
	event := domain.Event{Kind: kind, Key: key, Source: source, Payload: b, At: at}
	if err := s.events.PublishSync(ctx, event); err != nil {
		log.Printf("publish %s event: %v", kind, err)
	}
}

func (s *Sink) persist(ctx context.Context, snap domain.Snapshot) {
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("save snapshot %s: %v", snap.PageLoadID, err)
	}
}

type nopEvents struct{}

func (nopEvents) PublishSync(context.Context, domain.Event) error { return nil }

type nopStore struct{}

func (nopStore) SaveSnapshot(context.Context, domain.Snapshot) error { return nil }
