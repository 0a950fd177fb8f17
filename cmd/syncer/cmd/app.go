package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"notion_sync/internal/config"
	"notion_sync/internal/content"
	"notion_sync/internal/converter"
	"notion_sync/internal/media"
	"notion_sync/internal/publisher"
	"notion_sync/internal/service"
	"notion_sync/internal/source/notion"
	"notion_sync/internal/storage/filesystem"
	"notion_sync/internal/storage/postgres"
	"notion_sync/internal/storage/statefile"
	"notion_sync/internal/taxonomy"
)

// app holds the wired pipeline and the connections it has to release.
type app struct {
	sync      *service.SyncService
	db        *sqlx.DB
	publisher *publisher.RabbitMQ
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	source := notion.New(notion.Config{
		BaseURL:        cfg.Notion.BaseURL,
		Token:          cfg.Notion.Token,
		DatabaseID:     cfg.Notion.DatabaseID,
		Version:        cfg.Notion.Version,
		PageSize:       cfg.Notion.PageSize,
		Timeout:        cfg.Notion.Timeout,
		MaxAttempts:    cfg.Notion.Retry.MaxAttempts,
		InitialBackoff: cfg.Notion.Retry.InitialBackoff,
		MaxBackoff:     cfg.Notion.Retry.MaxBackoff,
		DateProperty:   cfg.Notion.DateProperty,
		AuthorProperty: cfg.Notion.AuthorProperty,
		TagsProperty:   cfg.Notion.TagsProperty,
	}, logger)

	stopWords := cfg.Content.StopWords
	if len(stopWords) == 0 {
		stopWords = content.DefaultStopWords
	}

	rules := cfg.Categories.Rules
	if len(rules) == 0 {
		rules = taxonomy.DefaultRules()
	}
	fallback := taxonomy.DefaultFallback()
	if cfg.Categories.Default != nil {
		fallback = *cfg.Categories.Default
	}

	relocator := media.New(media.Config{
		Dir:          cfg.Content.Path(cfg.Content.MediaDir),
		URLPrefix:    cfg.Content.MediaURLPrefix,
		Hosts:        cfg.Content.RelocatableHosts,
		MaxRedirects: cfg.Content.MaxRedirects,
		Timeout:      cfg.Content.MediaTimeout,
	}, logger)

	conv := converter.New(
		source,
		content.NewSanitizer(nil),
		content.NewSlugger(stopWords),
		relocator,
		taxonomy.New(rules, fallback),
		converter.Config{Author: cfg.Content.Author, Extension: cfg.Content.Extension},
		logger,
	)

	store := filesystem.New(filesystem.Config{
		ContentDir: cfg.Content.Path(cfg.Content.ContentDir),
		Extension:  cfg.Content.Extension,
	}, logger)

	var (
		state    service.StateStore = statefile.New(cfg.Content.Path(cfg.Content.StateFile))
		recorder service.RunRecorder
		events   service.Publisher
	)

	if cfg.Database.Enabled {
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.db = db

		recorder = postgres.NewRunStore(db, postgres.NewTransactionManager(db))
		if cfg.Database.StoreState {
			state = postgres.NewSyncStateStore(db, cfg.Notion.DatabaseID)
		}
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := newPublisher(cfg.RabbitMQ, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		events = pub
	}

	a.sync = service.NewSyncService(source, conv, store, state, recorder, events, logger, cfg.Sync)
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}

func newPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (*publisher.RabbitMQ, error) {
	return publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}, logger)
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
