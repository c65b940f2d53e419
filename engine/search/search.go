// Package search orchestrates the query pipeline: parse the person reference,
// classify intent, route visual retrieval, invoke the retrieval channels, fuse
// their rankings, and calibrate the fused scores for display.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heimdex/heimdex-engine/engine/calibrate"
	"github.com/heimdex/heimdex-engine/engine/domain"
	"github.com/heimdex/heimdex-engine/engine/intent"
	"github.com/heimdex/heimdex-engine/engine/lexical"
	"github.com/heimdex/heimdex-engine/engine/person"
	"github.com/heimdex/heimdex-engine/engine/semantic"
	"github.com/heimdex/heimdex-engine/engine/visual"
	"github.com/heimdex/heimdex-engine/pkg/embed"
	"github.com/heimdex/heimdex-engine/pkg/metrics"
	"github.com/heimdex/heimdex-engine/pkg/resilience"
)

// PersonSource supplies per-owner person listings for directory construction.
type PersonSource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Person, error)
}

// VectorSearcher abstracts the segment vector index.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]semantic.SegmentHit, error)
}

// TranscriptSearcher abstracts the external transcript (speech) index.
type TranscriptSearcher interface {
	Search(ctx context.Context, ownerID, query string, topK int) ([]lexical.Hit, error)
}

// VisualHit is one match from the visual-retrieval service.
type VisualHit struct {
	SegmentID string  `json:"segment_id"`
	VideoID   string  `json:"video_id"`
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Score     float32 `json:"score"`
}

// VisualSearcher abstracts the expensive frame-level visual retrieval service.
type VisualSearcher interface {
	Search(ctx context.Context, ownerID, query string, topK int) ([]VisualHit, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK           int
	ChannelTimeout time.Duration
	Calibration    calibrate.Config
	// RRFK is the reciprocal-rank-fusion rank constant.
	RRFK float64
	// RerankWeight scales the visual channel's fusion weight in rerank mode,
	// so it re-scores candidates without dominating first-pass recall.
	RerankWeight float64
	Registry     *metrics.Registry
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:           domain.DefaultTopK,
		ChannelTimeout: 5 * time.Second,
		Calibration:    calibrate.DefaultConfig(),
		RRFK:           60,
		RerankWeight:   0.4,
	}
}

// Service runs the query pipeline. All per-request state is local; one
// Service may serve concurrent requests.
type Service struct {
	people     PersonSource
	embedder   embed.Embedder
	vector     VectorSearcher
	transcript TranscriptSearcher
	visual     VisualSearcher
	breaker    *resilience.Breaker
	opts       Options
	logger     *slog.Logger

	requests  *metrics.Counter
	durations *metrics.Histogram
}

// New creates a search Service. transcript and visualSearcher may be nil when
// the deployment runs without those channels.
func New(people PersonSource, embedder embed.Embedder, vector VectorSearcher, transcript TranscriptSearcher, visualSearcher VisualSearcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = metrics.New()
	}
	return &Service{
		people:     people,
		embedder:   embedder,
		vector:     vector,
		transcript: transcript,
		visual:     visualSearcher,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:       opts,
		logger:     logger,
		requests:   opts.Registry.Counter("search_requests_total", "Total search requests."),
		durations:  opts.Registry.Histogram("search_duration_seconds", "End-to-end search latency.", nil),
	}
}

// Metrics exposes the registry for the /metrics endpoint.
func (s *Service) Metrics() *metrics.Registry { return s.opts.Registry }

// Response is the structured result of one search.
type Response struct {
	Hits     []domain.Hit    `json:"hits"`
	Intent   intent.Intent   `json:"intent"`
	PersonID string          `json:"person_id,omitempty"`
	Visual   visual.Analysis `json:"visual"`
}

// Search runs the full pipeline for one request.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (*Response, error) {
	start := time.Now()
	s.requests.Inc()
	defer s.durations.Since(start)

	if err := domain.ValidateSearchRequest(req); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.opts.TopK
	}

	// 1. Resolve the person reference. Directory failures degrade to "no
	// person": the query is still answerable.
	parsed := s.parsePerson(ctx, req)

	// 2. Understand the remaining text.
	qIntent := intent.Classify(parsed.Remainder)
	analysis := visual.Analyze(parsed.Remainder)
	s.logger.Info("query understood",
		"owner", req.OwnerID,
		"intent", qIntent,
		"person_found", parsed.Found(),
		"visual_mode", analysis.SuggestedMode,
	)

	// 3. Invoke retrieval channels and fuse their rankings.
	rankings := s.retrieve(ctx, req.OwnerID, parsed, qIntent, analysis, topK)
	fused := fuse(rankings, s.opts.RRFK)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	// 4. Calibrate for display. The fused order is final; calibration maps
	// scores onto [0, MaxCap] without touching rank.
	raw := make([]float64, len(fused))
	for i, f := range fused {
		raw[i] = f.score
	}
	display, err := calibrate.Calibrate(raw, s.opts.Calibration)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]domain.Hit, len(fused))
	for i, f := range fused {
		hits[i] = f.hit
		hits[i].Score = f.score
		hits[i].Display = display[i]
	}

	return &Response{
		Hits:     hits,
		Intent:   qIntent,
		PersonID: parsed.PersonID,
		Visual:   analysis,
	}, nil
}

// parsePerson builds the per-owner directory and extracts a person reference.
func (s *Service) parsePerson(ctx context.Context, req domain.SearchRequest) person.ParseResult {
	persons, err := s.people.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		s.logger.Warn("person directory unavailable, continuing without", "owner", req.OwnerID, "err", err)
		return person.ParseResult{Remainder: req.Query}
	}
	return person.NewParser(persons).Parse(req.Query)
}

// retrieve runs every authorized channel and collects their rankings.
func (s *Service) retrieve(ctx context.Context, ownerID string, parsed person.ParseResult, qIntent intent.Intent, analysis visual.Analysis, topK int) []ranking {
	var rankings []ranking

	if r, ok := s.vectorChannel(ctx, ownerID, parsed, topK); ok {
		rankings = append(rankings, r)
	}
	if r, ok := s.transcriptChannel(ctx, ownerID, parsed.Remainder, qIntent, topK); ok {
		rankings = append(rankings, r)
	}
	if r, ok := s.visualChannel(ctx, ownerID, parsed.Remainder, analysis, topK); ok {
		rankings = append(rankings, r)
	}
	return rankings
}

// vectorChannel embeds the remaining text (or falls back to the person's
// precomputed embedding for pure name queries) and searches the vector index.
func (s *Service) vectorChannel(ctx context.Context, ownerID string, parsed person.ParseResult, topK int) (ranking, bool) {
	var (
		vec []float32
		err error
	)
	switch {
	case parsed.Remainder != "":
		ctx, cancel := context.WithTimeout(ctx, s.opts.ChannelTimeout)
		defer cancel()
		vec, err = s.embedder.Embed(ctx, parsed.Remainder)
		if err != nil {
			s.logger.Warn("embed failed, vector channel skipped", "err", err)
			return ranking{}, false
		}
	case parsed.Embedding != nil:
		vec = parsed.Embedding
	default:
		return ranking{}, false
	}

	filters := map[string]string{"owner_id": ownerID}
	if parsed.PersonID != "" {
		filters["person_id"] = parsed.PersonID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ChannelTimeout)
	defer cancel()
	hits, err := s.vector.Search(ctx, vec, topK, filters)
	if err != nil {
		s.logger.Warn("vector channel failed", "err", err)
		return ranking{}, false
	}

	r := ranking{channel: domain.ChannelVector, weight: 1.0}
	for _, h := range hits {
		r.entries = append(r.entries, domain.Hit{
			SegmentID: h.SegmentID,
			VideoID:   h.VideoID,
			Content:   h.Content,
			StartMS:   h.StartMS,
			EndMS:     h.EndMS,
		})
	}
	return r, len(r.entries) > 0
}

// transcriptChannel queries the speech index. Lookup queries weight it up:
// names and titles are far likelier to be spoken than described.
func (s *Service) transcriptChannel(ctx context.Context, ownerID, text string, qIntent intent.Intent, topK int) (ranking, bool) {
	if s.transcript == nil || text == "" {
		return ranking{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ChannelTimeout)
	defer cancel()
	hits, err := s.transcript.Search(ctx, ownerID, text, topK)
	if err != nil {
		s.logger.Warn("transcript channel failed", "err", err)
		return ranking{}, false
	}

	weight := 1.0
	if qIntent == intent.Lookup {
		weight = 1.5
	}
	r := ranking{channel: domain.ChannelTranscript, weight: weight}
	for _, h := range hits {
		r.entries = append(r.entries, domain.Hit{
			SegmentID: h.SegmentID,
			VideoID:   h.VideoID,
			Content:   h.Content,
			StartMS:   h.StartMS,
			EndMS:     h.EndMS,
		})
	}
	return r, len(r.entries) > 0
}

// visualChannel invokes visual retrieval only when the router authorized it,
// through a circuit breaker: the service is expensive and optional.
func (s *Service) visualChannel(ctx context.Context, ownerID, text string, analysis visual.Analysis, topK int) (ranking, bool) {
	if s.visual == nil || analysis.SuggestedMode == visual.ModeSkip {
		return ranking{}, false
	}

	weight := 1.0
	if analysis.SuggestedMode == visual.ModeRerank {
		weight = s.opts.RerankWeight
	}

	var hits []VisualHit
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.opts.ChannelTimeout)
		defer cancel()
		var err error
		hits, err = s.visual.Search(ctx, ownerID, text, topK)
		return err
	})
	if err != nil {
		s.logger.Warn("visual channel unavailable", "mode", analysis.SuggestedMode, "err", err)
		return ranking{}, false
	}

	r := ranking{channel: domain.ChannelVisual, weight: weight}
	for _, h := range hits {
		r.entries = append(r.entries, domain.Hit{
			SegmentID: h.SegmentID,
			VideoID:   h.VideoID,
			StartMS:   h.StartMS,
			EndMS:     h.EndMS,
		})
	}
	return r, len(r.entries) > 0
}
