// Package domain defines core domain types, constants, and validation for the
// Heimdex search pipeline. It acts as the validation gate at pipeline entry points.
package domain

// Person is a known person within one owner's video library.
type Person struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding,omitempty"` // optional precomputed query embedding
}

// Segment is an indexed slice of a video.
type Segment struct {
	ID         string `json:"id"`
	VideoID    string `json:"video_id"`
	OwnerID    string `json:"owner_id"`
	Caption    string `json:"caption"`
	Transcript string `json:"transcript,omitempty"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
}

// SearchRequest is a user search over one owner's library.
type SearchRequest struct {
	OwnerID string `json:"owner_id"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k,omitempty"`
}

// Hit is one ranked search result. Score is the raw fused relevance value and
// encodes rank only; Display is the calibrated confidence shown to users.
type Hit struct {
	SegmentID string  `json:"segment_id"`
	VideoID   string  `json:"video_id"`
	Content   string  `json:"content"`
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Score     float64 `json:"score"`
	Display   float64 `json:"display"`
}

// RetrievalChannel identifies one retrieval source feeding fusion.
type RetrievalChannel string

const (
	ChannelVector     RetrievalChannel = "vector"
	ChannelTranscript RetrievalChannel = "transcript"
	ChannelVisual     RetrievalChannel = "visual"
)

// ValidChannels is the set of recognised retrieval channels.
var ValidChannels = map[RetrievalChannel]bool{
	ChannelVector: true, ChannelTranscript: true, ChannelVisual: true,
}

const (
	// MaxQueryLength bounds a search query in runes.
	MaxQueryLength = 500
	// DefaultTopK is used when a request does not set TopK.
	DefaultTopK = 20
	// MaxTopK bounds the result count a single request may ask for.
	MaxTopK = 100
)
