package semantic

// SegmentHit represents a single vector search hit.
type SegmentHit struct {
	SegmentID string  `json:"segment_id"`
	VideoID   string  `json:"video_id"`
	OwnerID   string  `json:"owner_id"`
	Content   string  `json:"content"`
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Score     float32 `json:"score"`
}

// VectorRecord represents a single segment vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // segment_id, video_id, owner_id, content, start_ms, end_ms, person_id
}
