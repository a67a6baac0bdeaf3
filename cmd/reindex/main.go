// Command reindex bulk-imports artists into the search index from a text
// file of names, one per line. Touched terms are published to the
// compaction feed and the query cache is invalidated afterwards so stale
// results never outlive the import.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	pgstore "github.com/openradio/librarysearch/internal/index/store/postgres"
	"github.com/openradio/librarysearch/internal/indexer"
	"github.com/openradio/librarysearch/internal/optimizer"
	"github.com/openradio/librarysearch/internal/searcher/cache"
	"github.com/openradio/librarysearch/pkg/config"
	"github.com/openradio/librarysearch/pkg/kafka"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/postgres"
	"github.com/openradio/librarysearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	artistsPath := flag.String("artists", "", "file of artist names, one per line")
	flag.Parse()

	if *artistsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: reindex -artists <file> [-config <file>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	names, err := readNames(*artistsPath)
	if err != nil {
		slog.Error("failed to read artist file", "path", *artistsPath, "error", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		slog.Info("no artist names to import")
		return
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TermsTouched)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := pgstore.New(db)
	artists, err := indexer.CreateArtists(ctx, store, cfg.Index.Generation, names,
		indexer.WithTermNotifier(optimizer.NewKafkaNotifier(producer)),
	)
	if err != nil {
		slog.Error("artist import failed", "error", err)
		os.Exit(1)
	}
	slog.Info("artists indexed", "count", len(artists))

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		// The index is already written; a cold cache is the worst case.
		slog.Warn("skipping cache invalidation, redis unavailable", "error", err)
		return
	}
	defer rdb.Close()
	if err := cache.New(rdb, cfg.Redis, nil).Invalidate(ctx); err != nil {
		slog.Warn("cache invalidation failed", "error", err)
	}
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	return names, scanner.Err()
}
