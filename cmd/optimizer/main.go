package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pgstore "github.com/openradio/librarysearch/internal/index/store/postgres"
	"github.com/openradio/librarysearch/internal/optimizer"
	"github.com/openradio/librarysearch/pkg/config"
	"github.com/openradio/librarysearch/pkg/kafka"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/metrics"
	"github.com/openradio/librarysearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	oneShotTerm := flag.String("term", "", "compact a single term and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index optimizer service",
		"generation", cfg.Index.Generation,
		"workers", cfg.Optimizer.Workers,
	)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	store := pgstore.New(db)
	opt := optimizer.New(store, cfg.Index, cfg.Optimizer.Workers, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *oneShotTerm != "" {
		removed, err := opt.OptimizeTerm(ctx, *oneShotTerm)
		if err != nil {
			slog.Error("one-shot optimization failed", "term", *oneShotTerm, "error", err)
			os.Exit(1)
		}
		slog.Info("one-shot optimization complete",
			"term", *oneShotTerm,
			"records_removed", removed,
		)
		return
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TermsTouched, opt.Handler())
	slog.Info("optimizer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.TermsTouched,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("optimizer service stopped")
}
