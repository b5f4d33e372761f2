package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/config"
	"github.com/maltedev/outlet-scraper/internal/database"
	"github.com/maltedev/outlet-scraper/internal/events"
	"github.com/maltedev/outlet-scraper/internal/scraper"
	"github.com/maltedev/outlet-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

var errNoRowSink = errors.New("--persist needs a sqlite or postgres sink in SINK_TYPES")

// hasRowSink reports whether a sink that stores runs outside the output
// directory is configured.
func (a *app) hasRowSink() bool {
	return a.cfg.HasSink(config.SinkSQLite) || a.cfg.HasSink(config.SinkPostgres)
}

// buildSink assembles the configured sinks. includeFiles controls the file
// sink.
func (a *app) buildSink(ctx context.Context, includeFiles bool) (*storage.MultiSink, error) {
	sink := storage.NewMultiSink()
	cfg := a.cfg

	if includeFiles && cfg.HasSink(config.SinkFile) {
		fs, err := storage.NewFileSink(cfg.Target.OutputDir)
		if err != nil {
			return nil, err
		}
		sink.Add(fs)
	}

	if cfg.HasSink(config.SinkSQLite) {
		ss, err := storage.NewSQLiteSink(ctx, cfg.Storage.SQLiteDSN)
		if err != nil {
			sink.Close()
			return nil, err
		}
		sink.Add(ss)
	}

	if cfg.HasSink(config.SinkPostgres) {
		db, err := database.New(ctx, database.ConfigFrom(cfg.Database))
		if err != nil {
			sink.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := database.NewRecordRepository(db, a.logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			sink.Close()
			return nil, err
		}
		sink.Add(repo)
	}

	return sink, nil
}

// storeOptions builds the sinks and, when redis is configured, the run event
// publisher. The publisher is kept out of the sink fan-out so a run is only
// announced after every sink stored it.
func (a *app) storeOptions(ctx context.Context, includeFiles bool) ([]scraper.Option, *storage.MultiSink, error) {
	sink, err := a.buildSink(ctx, includeFiles)
	if err != nil {
		return nil, nil, err
	}
	opts := []scraper.Option{scraper.WithSink(sink)}

	cfg := a.cfg.Redis
	if cfg.Addr == "" {
		return opts, sink, nil
	}

	pub, err := events.NewRedisPublisher(ctx, &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, cfg.Stream, a.logger)
	if err != nil {
		sink.Close()
		return nil, nil, err
	}
	return append(opts, scraper.WithNotifier(pub)), sink, nil
}

func (a *app) normalizer() *charset.Normalizer {
	return charset.NewNormalizer(a.logger, a.cfg.Target.LegacyMarkers...)
}
