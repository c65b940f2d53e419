package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns — query fragments that should never be forwarded to the
// lexical search backend.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

// ValidateSearchRequest validates a SearchRequest at pipeline entry.
func ValidateSearchRequest(r SearchRequest) error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return NewValidationError("owner_id", r.OwnerID, ErrMissingOwner)
	}

	text := strings.TrimSpace(r.Query)
	if text == "" {
		return NewValidationError("query", r.Query, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return NewValidationError("query", text[:32]+"...", ErrQueryTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("query", text, ErrQueryInjection)
		}
	}

	if r.TopK < 0 || r.TopK > MaxTopK {
		return NewValidationError("top_k", fmt.Sprintf("%d", r.TopK), ErrTopKOutOfRange)
	}
	return nil
}

// ValidateSegment validates a Segment before indexing.
func ValidateSegment(s Segment) error {
	if strings.TrimSpace(s.ID) == "" {
		return NewValidationError("id", s.ID, ErrInvalidSegment)
	}
	if strings.TrimSpace(s.OwnerID) == "" {
		return NewValidationError("owner_id", s.OwnerID, ErrMissingOwner)
	}
	if strings.TrimSpace(s.VideoID) == "" {
		return NewValidationError("video_id", s.VideoID, ErrMissingVideoID)
	}
	if strings.TrimSpace(s.Caption) == "" {
		return NewValidationError("caption", s.Caption, ErrEmptyCaption)
	}
	if s.EndMS < s.StartMS {
		return NewValidationError("end_ms", fmt.Sprintf("%d", s.EndMS), ErrBadSegmentSpan)
	}
	return nil
}
