package uc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
)

// ResultSink stores or delivers a terminal publish result. It is either the
// outbox repository or the backend client itself.
type ResultSink = func(ctx context.Context, result domain.PublishResult) error

type EventPublisher interface {
	PublishSync(ctx context.Context, event domain.Event) error
}

type ReportResultUseCase = func(ctx context.Context, result domain.PublishResult) error

// MakeReportResultUseCase hands the result to sink and mirrors it on the
// event stream. Only the sink decides success.
func MakeReportResultUseCase(sink ResultSink, publisher EventPublisher) ReportResultUseCase {
	return func(ctx context.Context, result domain.PublishResult) error {
		if err := sink(ctx, result); err != nil {
			return fmt.Errorf("report result of %s: %w", result.DraftID, err)
		}
		log.Printf("reported %s: success=%v", result.DraftID, result.Success)

		if publisher == nil {
			return nil
		}
		payload, err := json.Marshal(result)
		if err != nil {
			log.Printf("encode result event of %s: %v", result.DraftID, err)
			return nil
		}
		event := domain.Event{
			Kind:    domain.EventPublishResult,
			Key:     result.DraftID,
			Source:  "queue",
			Payload: payload,
			At:      result.Timestamp,
		}
		if err := publisher.PublishSync(ctx, event); err != nil {
			log.Printf("publish result event of %s: %v", result.DraftID, err)
		}
		return nil
	}
}
