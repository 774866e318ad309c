package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

// mockClient mocks kgo.Client for testing
type mockClient struct {
	produceErr   error
	lastRecord   *kgo.Record
	produceCalls int
}

func (m *mockClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	m.produceCalls++
	if len(rs) > 0 {
		m.lastRecord = rs[0]
	}
	if m.produceErr != nil {
		return kgo.ProduceResults{{Err: m.produceErr}}
	}
	return kgo.ProduceResults{}
}

var eventTime = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func TestPublishSync_Success(t *testing.T) {
	mock := &mockClient{}
	pub := NewPublisher(mock, "autopublish.events")

	event := domain.Event{
		Kind:    string(domain.KindDraftsList),
		Key:     "page-1",
		Payload: []byte(`{"items":[]}`),
		At:      eventTime,
	}

	if err := pub.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if mock.produceCalls != 1 {
		t.Fatalf("expected 1 produce call, got: %d", mock.produceCalls)
	}

	rec := mock.lastRecord
	if rec.Topic != "autopublish.events" {
		t.Errorf("expected topic autopublish.events, got %s", rec.Topic)
	}
	if string(rec.Key) != event.Key {
		t.Errorf("expected key %s, got %s", event.Key, string(rec.Key))
	}
	if string(rec.Value) != string(event.Payload) {
		t.Errorf("expected value %s, got %s", string(event.Payload), string(rec.Value))
	}
	if len(rec.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(rec.Headers))
	}
}

func TestPublishSync_Error(t *testing.T) {
	expectedErr := errors.New("kafka connection failed")
	mock := &mockClient{produceErr: expectedErr}
	pub := NewPublisher(mock, "autopublish.events")

	err := pub.PublishSync(context.Background(), domain.Event{Kind: domain.EventPublishResult})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error to be %v, got %v", expectedErr, err)
	}
}

func TestEventToRec_WithSource(t *testing.T) {
	event := domain.Event{
		Kind:    domain.EventVideoStats,
		Key:     "drafts",
		Source:  "collector",
		Payload: []byte(`{}`),
		At:      eventTime,
	}

	rec := eventToRec(event)

	headerMap := make(map[string][]byte)
	for _, h := range rec.Headers {
		headerMap[h.Key] = h.Value
	}
	if string(headerMap[domain.HeaderKind]) != domain.EventVideoStats {
		t.Errorf("expected kind %s, got %s", domain.EventVideoStats, headerMap[domain.HeaderKind])
	}
	if string(headerMap[domain.HeaderSource]) != "collector" {
		t.Errorf("expected source collector, got %s", headerMap[domain.HeaderSource])
	}
	at, err := time.Parse(time.RFC3339Nano, string(headerMap[domain.HeaderCapturedAt]))
	if err != nil || !at.Equal(eventTime) {
		t.Errorf("expected captured_at %s, got %s (%v)", eventTime, headerMap[domain.HeaderCapturedAt], err)
	}
	if !rec.Timestamp.Equal(eventTime) {
		t.Errorf("expected record timestamp %s, got %s", eventTime, rec.Timestamp)
	}
}
