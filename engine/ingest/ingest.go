// Package ingest consumes segment events from NATS and indexes them into the
// vector store: validate, embed the caption, upsert. Failed segments go to a
// dead-letter subject after retries so a bad message never wedges the queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/heimdex/heimdex-engine/engine/domain"
	"github.com/heimdex/heimdex-engine/engine/semantic"
	"github.com/heimdex/heimdex-engine/pkg/embed"
	"github.com/heimdex/heimdex-engine/pkg/fn"
	"github.com/heimdex/heimdex-engine/pkg/metrics"
	"github.com/heimdex/heimdex-engine/pkg/natsutil"
)

// NATS subjects and consumer settings.
const (
	SubjectSegments     = "engine.segments"
	SubjectSegmentsDLQ  = "engine.segments.dlq"
	SubjectVideoDeleted = "engine.videos.deleted"
	QueueGroup          = "segment-indexers"
	MaxRetries          = 3
)

// pointNamespace seeds deterministic point IDs so re-delivered segments
// overwrite their existing point instead of duplicating it.
var pointNamespace = uuid.MustParse("7f1c61ba-94cd-4a6e-9f0e-2d5b8c3a41d0")

// VideoDeleted announces that a video and all its segments left the library.
type VideoDeleted struct {
	VideoID string `json:"video_id"`
	OwnerID string `json:"owner_id"`
}

// DeadLetter wraps a segment that exhausted its retries.
type DeadLetter struct {
	Segment  domain.Segment `json:"segment"`
	Error    string         `json:"error"`
	Attempts int            `json:"attempts"`
}

// VectorWriter is the slice of the vector store the indexer needs.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByVideoID(ctx context.Context, videoID string) error
}

// job carries one segment through the pipeline stages.
type job struct {
	segment domain.Segment
	vector  []float32
}

// Indexer turns segment events into vector-store points.
type Indexer struct {
	embedder embed.Embedder
	store    VectorWriter
	logger   *slog.Logger
	pipeline fn.Stage[job, job]

	indexed *metrics.Counter
	failed  *metrics.Counter
	latency *metrics.Histogram
}

// New creates an Indexer.
func New(embedder embed.Embedder, store VectorWriter, registry *metrics.Registry, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = metrics.New()
	}
	i := &Indexer{
		embedder: embedder,
		store:    store,
		logger:   logger,
		indexed:  registry.Counter("ingest_segments_indexed_total", "Segments successfully indexed."),
		failed:   registry.Counter("ingest_segments_failed_total", "Segments that exhausted retries."),
		latency:  registry.Histogram("ingest_segment_seconds", "Per-segment indexing latency.", nil),
	}
	i.pipeline = fn.Pipeline(
		fn.TracedStage("ingest.validate", i.validate),
		fn.TracedStage("ingest.embed", i.embedCaption),
		fn.TracedStage("ingest.store", i.upsert),
	)
	return i
}

// Run subscribes the indexer to its subjects. Workers share the queue group so
// horizontal scaling does not duplicate work. Subscriptions live until the
// connection closes.
func (i *Indexer) Run(nc *nats.Conn) error {
	_, err := natsutil.QueueSubscribe(nc, SubjectSegments, QueueGroup, func(ctx context.Context, seg domain.Segment) {
		if err := i.Process(ctx, seg); err != nil {
			i.deadLetter(ctx, nc, seg, err)
		}
	})
	if err != nil {
		return fmt.Errorf("ingest: subscribe %s: %w", SubjectSegments, err)
	}

	_, err = natsutil.QueueSubscribe(nc, SubjectVideoDeleted, QueueGroup, func(ctx context.Context, ev VideoDeleted) {
		if err := i.store.DeleteByVideoID(ctx, ev.VideoID); err != nil {
			i.logger.Error("delete video segments", "video", ev.VideoID, "err", err)
			return
		}
		i.logger.Info("video segments removed", "video", ev.VideoID, "owner", ev.OwnerID)
	})
	if err != nil {
		return fmt.Errorf("ingest: subscribe %s: %w", SubjectVideoDeleted, err)
	}
	return nil
}

// Process indexes one segment, retrying transient failures. Validation errors
// are terminal on the first attempt.
func (i *Indexer) Process(ctx context.Context, seg domain.Segment) error {
	start := time.Now()
	defer i.latency.Since(start)

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		r := i.pipeline(ctx, job{segment: seg})
		if r.IsOk() {
			i.indexed.Inc()
			return nil
		}
		_, lastErr = r.Unwrap()

		var verr *domain.ValidationError
		if errors.As(lastErr, &verr) {
			break // malformed input never heals on retry
		}
		if attempt < MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	i.failed.Inc()
	return fmt.Errorf("ingest: segment %s: %w", seg.ID, lastErr)
}

func (i *Indexer) validate(_ context.Context, j job) fn.Result[job] {
	if err := domain.ValidateSegment(j.segment); err != nil {
		return fn.Err[job](err)
	}
	return fn.Ok(j)
}

func (i *Indexer) embedCaption(ctx context.Context, j job) fn.Result[job] {
	vec, err := i.embedder.Embed(ctx, j.segment.Caption)
	if err != nil {
		return fn.Errf[job]("embed caption: %w", err)
	}
	j.vector = vec
	return fn.Ok(j)
}

func (i *Indexer) upsert(ctx context.Context, j job) fn.Result[job] {
	if err := i.store.Upsert(ctx, []semantic.VectorRecord{recordFor(j.segment, j.vector)}); err != nil {
		return fn.Err[job](err)
	}
	return fn.Ok(j)
}

func (i *Indexer) deadLetter(ctx context.Context, nc *nats.Conn, seg domain.Segment, cause error) {
	i.logger.Error("segment dead-lettered", "segment", seg.ID, "video", seg.VideoID, "err", cause)
	dl := DeadLetter{Segment: seg, Error: cause.Error(), Attempts: MaxRetries}
	if err := natsutil.Publish(ctx, nc, SubjectSegmentsDLQ, dl); err != nil {
		i.logger.Error("dead-letter publish failed", "segment", seg.ID, "err", err)
	}
}

// recordFor builds the vector-store record for a segment. The point ID is a
// UUIDv5 of owner and segment IDs, stable across redeliveries.
func recordFor(seg domain.Segment, vector []float32) semantic.VectorRecord {
	id := uuid.NewSHA1(pointNamespace, []byte(seg.OwnerID+"/"+seg.ID))
	return semantic.VectorRecord{
		ID:        id.String(),
		Embedding: vector,
		Payload: map[string]any{
			"segment_id": seg.ID,
			"video_id":   seg.VideoID,
			"owner_id":   seg.OwnerID,
			"content":    seg.Caption,
			"start_ms":   seg.StartMS,
			"end_ms":     seg.EndMS,
		},
	}
}
