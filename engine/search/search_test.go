package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/heimdex/heimdex-engine/engine/domain"
	"github.com/heimdex/heimdex-engine/engine/lexical"
	"github.com/heimdex/heimdex-engine/engine/semantic"
)

type fakePeople struct {
	persons []domain.Person
	err     error
}

func (f *fakePeople) ListByOwner(context.Context, string) ([]domain.Person, error) {
	return f.persons, f.err
}

type fakeEmbedder struct {
	vec  []float32
	err  error
	last string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.last = text
	return f.vec, f.err
}

type fakeVector struct {
	hits    []semantic.SegmentHit
	err     error
	filters map[string]string
	vec     []float32
	calls   int
}

func (f *fakeVector) Search(_ context.Context, embedding []float32, _ int, filters map[string]string) ([]semantic.SegmentHit, error) {
	f.calls++
	f.vec = embedding
	f.filters = filters
	return f.hits, f.err
}

type fakeTranscript struct {
	hits  []lexical.Hit
	err   error
	calls int
}

func (f *fakeTranscript) Search(context.Context, string, string, int) ([]lexical.Hit, error) {
	f.calls++
	return f.hits, f.err
}

type fakeVisual struct {
	hits  []VisualHit
	err   error
	calls int
}

func (f *fakeVisual) Search(context.Context, string, string, int) ([]VisualHit, error) {
	f.calls++
	return f.hits, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(p *fakePeople, e *fakeEmbedder, v *fakeVector, tr *fakeTranscript, vis *fakeVisual) *Service {
	return New(p, e, v, tr, vis, DefaultOptions(), discard())
}

func TestFuseOverlapRanksFirst(t *testing.T) {
	rankings := []ranking{
		{channel: domain.ChannelVector, weight: 1.0, entries: []domain.Hit{
			{SegmentID: "a", Content: "caption a"}, {SegmentID: "b"},
		}},
		{channel: domain.ChannelTranscript, weight: 1.0, entries: []domain.Hit{
			{SegmentID: "c"}, {SegmentID: "a"},
		}},
	}

	fused := fuse(rankings, 60)
	if len(fused) != 3 {
		t.Fatalf("len = %d, want 3", len(fused))
	}
	if fused[0].hit.SegmentID != "a" {
		t.Errorf("top = %s, want a (present in both channels)", fused[0].hit.SegmentID)
	}
	if fused[0].hit.Content != "caption a" {
		t.Errorf("content = %q, want caption preserved", fused[0].hit.Content)
	}
	for i := 1; i < len(fused); i++ {
		if fused[i].score > fused[i-1].score {
			t.Errorf("fused not sorted at %d", i)
		}
	}
}

func TestFuseTieBreaksOnSegmentID(t *testing.T) {
	rankings := []ranking{
		{channel: domain.ChannelVector, weight: 1.0, entries: []domain.Hit{{SegmentID: "z"}}},
		{channel: domain.ChannelTranscript, weight: 1.0, entries: []domain.Hit{{SegmentID: "a"}}},
	}
	fused := fuse(rankings, 60)
	if fused[0].hit.SegmentID != "a" || fused[1].hit.SegmentID != "z" {
		t.Errorf("tie order = %s, %s", fused[0].hit.SegmentID, fused[1].hit.SegmentID)
	}
}

func TestFuseWeightShiftsOrder(t *testing.T) {
	rankings := []ranking{
		{channel: domain.ChannelVector, weight: 1.0, entries: []domain.Hit{{SegmentID: "v"}}},
		{channel: domain.ChannelTranscript, weight: 2.0, entries: []domain.Hit{{SegmentID: "t"}}},
	}
	fused := fuse(rankings, 60)
	if fused[0].hit.SegmentID != "t" {
		t.Errorf("top = %s, want heavier channel's candidate", fused[0].hit.SegmentID)
	}
}

func TestSearchVisualQueryInvokesVisualChannel(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{
		{SegmentID: "s1", VideoID: "v1", Content: "a red car at sunset"},
	}}
	vis := &fakeVisual{hits: []VisualHit{{SegmentID: "s2", VideoID: "v1"}}}
	svc := newService(&fakePeople{}, &fakeEmbedder{vec: []float32{0.1}}, vec, &fakeTranscript{}, vis)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "red car sunset",
	})
	if err != nil {
		t.Fatal(err)
	}
	if vis.calls != 1 {
		t.Errorf("visual calls = %d, want 1", vis.calls)
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("hits = %d, want 2 (vector + visual candidates)", len(resp.Hits))
	}
}

func TestSearchSpeechQuerySkipsVisualChannel(t *testing.T) {
	vis := &fakeVisual{}
	tr := &fakeTranscript{hits: []lexical.Hit{{SegmentID: "s1", Content: "she said we would travel"}}}
	svc := newService(&fakePeople{}, &fakeEmbedder{vec: []float32{0.1}}, &fakeVector{}, tr, vis)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "the part where she said we would travel",
	})
	if err != nil {
		t.Fatal(err)
	}
	if vis.calls != 0 {
		t.Errorf("visual calls = %d, want 0 in skip mode", vis.calls)
	}
	if tr.calls != 1 {
		t.Errorf("transcript calls = %d, want 1", tr.calls)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].SegmentID != "s1" {
		t.Errorf("hits = %+v", resp.Hits)
	}
}

func TestSearchPersonReferenceFiltersVector(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{{SegmentID: "s1"}}}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := newService(&fakePeople{persons: []domain.Person{
		{ID: "p1", OwnerID: "o1", Name: "김철수"},
	}}, emb, vec, &fakeTranscript{}, &fakeVisual{})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "김철수 walking",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.PersonID != "p1" {
		t.Errorf("person = %q, want p1", resp.PersonID)
	}
	if emb.last != "walking" {
		t.Errorf("embedded text = %q, want remainder only", emb.last)
	}
	if vec.filters["person_id"] != "p1" || vec.filters["owner_id"] != "o1" {
		t.Errorf("filters = %v", vec.filters)
	}
}

func TestSearchPureNameQueryUsesPersonEmbedding(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{{SegmentID: "s1"}}}
	tr := &fakeTranscript{}
	svc := newService(&fakePeople{persons: []domain.Person{
		{ID: "p1", OwnerID: "o1", Name: "Jane", Embedding: []float32{0.7, 0.3}},
	}}, &fakeEmbedder{err: errors.New("must not embed")}, vec, tr, &fakeVisual{})

	if _, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "Jane",
	}); err != nil {
		t.Fatal(err)
	}
	if len(vec.vec) != 2 || vec.vec[0] != 0.7 {
		t.Errorf("vector query = %v, want the person's embedding", vec.vec)
	}
	if tr.calls != 0 {
		t.Errorf("transcript calls = %d, want 0 with empty remainder", tr.calls)
	}
}

func TestSearchDegradesWhenDirectoryDown(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{{SegmentID: "s1"}}}
	svc := newService(&fakePeople{err: errors.New("neo4j down")}, &fakeEmbedder{vec: []float32{0.1}}, vec, &fakeTranscript{}, &fakeVisual{})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "sunset over the water",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.PersonID != "" {
		t.Errorf("person = %q, want none", resp.PersonID)
	}
	if len(resp.Hits) == 0 {
		t.Error("expected hits despite directory failure")
	}
}

func TestSearchDegradesWhenChannelsFail(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{{SegmentID: "s1"}}}
	tr := &fakeTranscript{err: errors.New("index down")}
	svc := newService(&fakePeople{}, &fakeEmbedder{vec: []float32{0.1}}, vec, tr, &fakeVisual{err: errors.New("gpu pool down")})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "red car sunset",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].SegmentID != "s1" {
		t.Errorf("hits = %+v, want the surviving vector channel's hit", resp.Hits)
	}
}

func TestSearchRejectsInvalidRequest(t *testing.T) {
	svc := newService(&fakePeople{}, &fakeEmbedder{}, &fakeVector{}, &fakeTranscript{}, &fakeVisual{})
	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "x"})
	if !errors.Is(err, domain.ErrMissingOwner) {
		t.Errorf("err = %v, want ErrMissingOwner", err)
	}
}

func TestSearchDisplayScoresCalibrated(t *testing.T) {
	vec := &fakeVector{hits: []semantic.SegmentHit{
		{SegmentID: "s1"}, {SegmentID: "s2"}, {SegmentID: "s3"},
	}}
	tr := &fakeTranscript{hits: []lexical.Hit{{SegmentID: "s1"}, {SegmentID: "s3"}}}
	svc := newService(&fakePeople{}, &fakeEmbedder{vec: []float32{0.1}}, vec, tr, &fakeVisual{})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "mountain cabin in winter",
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range resp.Hits {
		if h.Display < 0 || h.Display > 0.97 {
			t.Errorf("hit %d display = %v, out of range", i, h.Display)
		}
		if i > 0 && resp.Hits[i].Display > resp.Hits[i-1].Display {
			t.Errorf("display not rank-consistent at %d", i)
		}
		if i > 0 && resp.Hits[i].Score > resp.Hits[i-1].Score {
			t.Errorf("raw scores not descending at %d", i)
		}
	}
}

func TestSearchRespectsTopK(t *testing.T) {
	var hits []semantic.SegmentHit
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		hits = append(hits, semantic.SegmentHit{SegmentID: id})
	}
	svc := newService(&fakePeople{}, &fakeEmbedder{vec: []float32{0.1}}, &fakeVector{hits: hits}, &fakeTranscript{}, &fakeVisual{})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{
		OwnerID: "o1", Query: "sunset over the water", TopK: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 3 {
		t.Errorf("hits = %d, want 3", len(resp.Hits))
	}
}
