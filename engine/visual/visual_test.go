package visual

import (
	"reflect"
	"testing"
)

func TestAnalyzeEmpty(t *testing.T) {
	got := Analyze("")
	want := Analysis{SuggestedMode: ModeSkip}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze(\"\") = %+v, want %+v", got, want)
	}
	if got.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", got.Confidence)
	}
}

func TestAnalyzeModes(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMode   Mode
		wantVisual bool
		wantSpeech bool
	}{
		{"color plus object recalls", "red car on the road", ModeRecall, true, false},
		{"single weak visual reranks", "something blue", ModeRerank, true, false},
		{"korean visual", "강아지 뛰는 영상", ModeRecall, true, false},
		{"speech only skips", `"hello world" in speech`, ModeSkip, false, true},
		{"reported speech skips", "what she said about the trip", ModeSkip, false, true},
		{"korean reported speech", "고맙다라고 말했어", ModeSkip, false, true},
		{"mixed weak skips", `the word "dog" spoken aloud`, ModeSkip, true, true},
		{"mixed strong reranks", `"hello" red car dancing`, ModeRerank, true, true},
		{"neither skips", "miscellaneous footage", ModeSkip, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.query)
			if got.SuggestedMode != tt.wantMode {
				t.Errorf("SuggestedMode = %q, want %q (analysis %+v)", got.SuggestedMode, tt.wantMode, got)
			}
			if got.HasVisualIntent != tt.wantVisual {
				t.Errorf("HasVisualIntent = %v, want %v", got.HasVisualIntent, tt.wantVisual)
			}
			if got.HasSpeechIntent != tt.wantSpeech {
				t.Errorf("HasSpeechIntent = %v, want %v", got.HasSpeechIntent, tt.wantSpeech)
			}
		})
	}
}

func TestAnalyzeQuoteDetection(t *testing.T) {
	queries := []string{
		`"hello world" in speech`,
		`find '안녕하세요' somewhere`,
		"「こんにちは」 부분",
		"“double curly” quotes",
	}
	for _, q := range queries {
		got := Analyze(q)
		if !got.HasSpeechIntent {
			t.Errorf("Analyze(%q): HasSpeechIntent = false, want true", q)
			continue
		}
		found := false
		for _, term := range got.MatchedSpeechTerms {
			if term == patternQuote {
				found = true
			}
		}
		if !found {
			t.Errorf("Analyze(%q): matched speech terms %v missing %q", q, got.MatchedSpeechTerms, patternQuote)
		}
	}

	// A lone apostrophe is a contraction, not a quote.
	if got := Analyze("don't skip this mountain sunset"); got.HasSpeechIntent {
		t.Errorf("contraction treated as quote: %+v", got)
	}
}

func TestAnalyzeLongInterrogative(t *testing.T) {
	got := Analyze("뭐라고 대답했는지 알려줄 수 있어?")
	if !got.HasSpeechIntent {
		t.Fatalf("expected speech intent, got %+v", got)
	}

	// Short trailing "?" stays a lookup-ish query, not speech.
	if got := Analyze("cat?"); got.HasSpeechIntent {
		t.Errorf("short question marked as speech: %+v", got)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	const q = `"hello" red car dancing close-up`
	first := Analyze(q)
	for i := 0; i < 3; i++ {
		if got := Analyze(q); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs:\n got %+v\nwant %+v", i, got, first)
		}
	}
}

func TestConfidenceMonotone(t *testing.T) {
	queries := []string{
		"something blue",              // 1 match, 1 category
		"blue car",                    // 2 matches, 2 categories
		"blue car dancing",            // 3 matches, 3 categories
		"blue red car dog dancing",    // more matches, same categories
	}
	prev := -1.0
	for _, q := range queries {
		got := Analyze(q)
		if got.Confidence < prev {
			t.Errorf("Analyze(%q).Confidence = %v, decreased from %v", q, got.Confidence, prev)
		}
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("Analyze(%q).Confidence = %v outside [0,1]", q, got.Confidence)
		}
		prev = got.Confidence
	}
}

func TestConfidenceFormula(t *testing.T) {
	tests := []struct {
		matches, categories int
		want                float64
	}{
		{0, 0, 0},
		{1, 1, 0.3},
		{2, 2, 0.5},
		{3, 2, 0.55},
		{20, 4, 1.0}, // clamped
	}
	for _, tt := range tests {
		if got := confidence(tt.matches, tt.categories); got != tt.want {
			t.Errorf("confidence(%d, %d) = %v, want %v", tt.matches, tt.categories, got, tt.want)
		}
	}
}
