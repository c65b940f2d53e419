// Package main implements the Heimdex search API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/heimdex/heimdex-engine/engine/domain"
	"github.com/heimdex/heimdex-engine/engine/lexical"
	"github.com/heimdex/heimdex-engine/engine/people"
	"github.com/heimdex/heimdex-engine/engine/search"
	"github.com/heimdex/heimdex-engine/engine/semantic"
	"github.com/heimdex/heimdex-engine/pkg/embed"
	"github.com/heimdex/heimdex-engine/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	EmbedURL      string
	EmbedModel    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	QdrantURL     string
	Collection    string
	TranscriptURL string
	VisualURL     string
	CORSOrigin    string
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		EmbedURL:      envOr("EMBED_URL", "http://localhost:11434"),
		EmbedModel:    envOr("EMBED_MODEL", "nomic-embed-text"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "heimdex-segments"),
		TranscriptURL: envOr("TRANSCRIPT_URL", ""),
		VisualURL:     envOr("VISUAL_URL", ""),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	personStore := people.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Embedding service ---
	embedder := embed.NewClient(cfg.EmbedURL, cfg.EmbedModel)

	// --- Optional retrieval channels ---
	var transcript search.TranscriptSearcher
	if cfg.TranscriptURL != "" {
		transcript = lexical.NewClient(cfg.TranscriptURL)
	}
	var visualSvc search.VisualSearcher
	if cfg.VisualURL != "" {
		visualSvc = &visualClient{baseURL: cfg.VisualURL, client: &http.Client{Timeout: 15 * time.Second}}
	}

	// --- Build search service ---
	svc := search.New(personStore, embedder, vectorStore, transcript, visualSvc, search.DefaultOptions(), logger)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("POST /v1/search", handleSearch(svc, logger))
	mux.Handle("GET /metrics", svc.Metrics().Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// searcher is the slice of search.Service the handler needs.
type searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*search.Response, error)
}

func handleSearch(svc searcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		resp, err := svc.Search(r.Context(), req)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, verr.Error()), http.StatusBadRequest)
				return
			}
			logger.Error("search failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// --- Adapters ---

// visualClient adapts the external visual-retrieval HTTP service to the
// search.VisualSearcher interface.
type visualClient struct {
	baseURL string
	client  *http.Client
}

func (c *visualClient) Search(ctx context.Context, ownerID, query string, topK int) ([]search.VisualHit, error) {
	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(topK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/visual/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("visual search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("visual search status %d", resp.StatusCode)
	}

	var body struct {
		Hits []search.VisualHit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("visual search decode: %w", err)
	}
	return body.Hits, nil
}
