// Command backfill re-indexes segments from a JSONL export. It runs each
// segment through the same validate/embed/upsert pipeline as the NATS worker,
// so a rebuilt collection ends up identical to one populated live.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/heimdex/heimdex-engine/engine/domain"
	"github.com/heimdex/heimdex-engine/engine/ingest"
	"github.com/heimdex/heimdex-engine/engine/semantic"
	"github.com/heimdex/heimdex-engine/pkg/embed"
)

func main() {
	var (
		file       = flag.String("file", "", "segments JSONL file (one segment per line)")
		embedURL   = flag.String("embed", "http://localhost:11434", "embedding service base URL")
		embedModel = flag.String("model", "nomic-embed-text", "embedding model")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "heimdex-segments", "Qdrant collection name")
		dims       = flag.Int("dims", 768, "embedding dimensions")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if *file == "" {
		logger.Error("missing -file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vectorStore, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect", "err", err)
		os.Exit(1)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, *dims); err != nil {
		logger.Error("ensure collection", "err", err)
		os.Exit(1)
	}

	indexer := ingest.New(embed.NewClient(*embedURL, *embedModel), vectorStore, nil, logger)

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open file", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	var indexed, failed, malformed int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var seg domain.Segment
		if err := json.Unmarshal(line, &seg); err != nil {
			malformed++
			continue
		}
		if err := indexer.Process(ctx, seg); err != nil {
			logger.Error("segment failed", "segment", seg.ID, "err", err)
			failed++
			continue
		}
		indexed++
		if indexed%500 == 0 {
			logger.Info("progress", "indexed", indexed, "failed", failed)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read file", "err", err)
		os.Exit(1)
	}

	logger.Info("backfill done", "indexed", indexed, "failed", failed, "malformed", malformed)
}
