// Package lexical is the HTTP client for the external transcript search
// service (speech-to-text index). The engine treats it as one retrieval
// channel; index internals live on the service side.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Hit is one transcript match.
type Hit struct {
	SegmentID string  `json:"segment_id"`
	VideoID   string  `json:"video_id"`
	Content   string  `json:"content"`
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Score     float32 `json:"score"`
}

type searchResponse struct {
	Hits []Hit `json:"hits"`
}

// Client queries the transcript search service, QPS-limited so a burst of
// search traffic cannot overwhelm the shared index.
type Client struct {
	baseURL     string
	rateLimiter *rate.Limiter
	httpClient  *http.Client
}

// NewClient creates a transcript search client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Search returns transcript matches for query within one owner's library.
func (c *Client) Search(ctx context.Context, ownerID, query string, topK int) ([]Hit, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("lexical: rate wait: %w", err)
	}

	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(topK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transcripts/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lexical: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lexical: search status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("lexical: decode: %w", err)
	}
	return body.Hits, nil
}
