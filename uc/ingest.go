package uc

import (
	"context"

	"github.com/ecociel/autopublish/classify"
	"github.com/ecociel/autopublish/domain"
)

type RecordSink interface {
	Accept(ctx context.Context, rec domain.ClassifiedRecord) (domain.ClassifiedRecord, bool)
}

type RecordMerger interface {
	Merge(rec domain.ClassifiedRecord)
}

type IngestUseCase = func(ctx context.Context, c domain.Capture) domain.RecordKind

// MakeIngestUseCase classifies a captured payload, hands it to the sink and
// lets the collector pick up published videos from what the sink kept.
func MakeIngestUseCase(sink RecordSink, merger RecordMerger) IngestUseCase {
	return func(ctx context.Context, c domain.Capture) domain.RecordKind {
		rec := classify.Classify(c)
		if rec.Kind == domain.KindUnclassified {
			return rec.Kind
		}
		kept, ok := sink.Accept(ctx, rec)
		if ok && merger != nil {
			merger.Merge(kept)
		}
		return rec.Kind
	}
}
