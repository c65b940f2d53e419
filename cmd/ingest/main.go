// Command ingest runs the segment indexing worker: it consumes segment events
// from NATS, embeds captions, and writes vectors into Qdrant.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/heimdex/heimdex-engine/engine/ingest"
	"github.com/heimdex/heimdex-engine/engine/semantic"
	"github.com/heimdex/heimdex-engine/pkg/embed"
	"github.com/heimdex/heimdex-engine/pkg/metrics"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL     string
	EmbedURL    string
	EmbedModel  string
	QdrantURL   string
	Collection  string
	VectorDims  int
	MetricsPort string
}

func loadConfig() Config {
	return Config{
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		EmbedURL:    envOr("EMBED_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", "nomic-embed-text"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "heimdex-segments"),
		VectorDims:  768, // nomic-embed-text
		MetricsPort: envOr("METRICS_PORT", "9091"),
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

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, cfg.VectorDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	logger.Info("connected to qdrant", "collection", cfg.Collection, "dims", cfg.VectorDims)

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()
	logger.Info("connected to nats", "url", cfg.NATSURL)

	// --- Start the indexer ---
	registry := metrics.New()
	embedder := embed.NewClient(cfg.EmbedURL, cfg.EmbedModel)
	indexer := ingest.New(embedder, vectorStore, registry, logger)
	if err := indexer.Run(nc); err != nil {
		return err
	}
	logger.Info("indexer subscribed", "subject", ingest.SubjectSegments, "queue", ingest.QueueGroup)

	// --- Metrics endpoint ---
	msrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: registry.Handler(),
	}
	go func() {
		if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return msrv.Shutdown(shutCtx)
}
