package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer defines the interface for producing messages to Kafka
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	client Producer
	topic  string
}

func NewPublisher(client Producer, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) PublishSync(ctx context.Context, event domain.Event) error {
	record := eventToRec(event)
	record.Topic = p.topic
	if err := p.client.ProduceSync(ctx, &record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Kind, err)
	}
	return nil
}

func eventToRec(event domain.Event) (rec kgo.Record) {
	capacity := 2
	if event.Source != "" {
		capacity = 3
	}
	headers := make([]kgo.RecordHeader, 0, capacity)
	headers = append(headers, kgo.RecordHeader{Key: domain.HeaderKind, Value: []byte(event.Kind)})
	headers = append(headers, kgo.RecordHeader{Key: domain.HeaderCapturedAt, Value: []byte(event.At.UTC().Format(time.RFC3339Nano))})
	if event.Source != "" {
		headers = append(headers, kgo.RecordHeader{Key: domain.HeaderSource, Value: []byte(event.Source)})
	}

	rec.Key = []byte(event.Key)
	rec.Value = event.Payload
	rec.Headers = headers
	rec.Timestamp = event.At
	return
}
