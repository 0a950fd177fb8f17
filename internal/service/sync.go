package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notion_sync/internal/config"
	"notion_sync/internal/domain"
	"notion_sync/internal/source/notion"
)

// Options tune a single run.
type Options struct {
	DryRun bool
	Force  bool
	Limit  int
	From   *time.Time // candidates created before this date are excluded
}

type SyncService struct {
	source    Source
	converter Converter
	content   ContentStore
	state     StateStore
	recorder  RunRecorder
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
}

// NewSyncService wires the orchestrator. recorder and publisher may be nil.
func NewSyncService(
	source Source,
	converter Converter,
	content ContentStore,
	state StateStore,
	recorder RunRecorder,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:    source,
		converter: converter,
		content:   content,
		state:     state,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		config:    cfg,
	}
}

// Sync runs one pass: enumerate, filter, convert and write, then checkpoint.
// Per-document failures end up in the report; only enumeration, content
// indexing and the state write abort the run.
func (s *SyncService) Sync(ctx context.Context, opts Options) (*domain.SyncReport, error) {
	startTime := time.Now()
	report := &domain.SyncReport{
		DryRun:    opts.DryRun,
		Force:     opts.Force,
		StartedAt: startTime,
	}

	state, err := s.state.Load(ctx)
	if err != nil {
		s.logger.Warn("could not load sync state, continuing without it", "error", err)
		state = &domain.SyncState{}
	}
	report.PreviousSync = state.LastSyncTimestamp

	s.logger.Info("starting sync",
		"dry_run", opts.DryRun,
		"force", opts.Force,
		"limit", opts.Limit,
		"last_sync", state.LastSyncTimestamp,
	)

	docs, err := s.source.ListDocuments(ctx, notion.ListOptions{Limit: opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("enumerate documents: %w", err)
	}
	report.Fetched = len(docs)
	s.logger.Info("fetched documents from source", "count", len(docs))

	if err := s.content.Scan(ctx); err != nil {
		return nil, fmt.Errorf("index content store: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(startTime)
			return report, fmt.Errorf("sync interrupted: %w", err)
		}
		report.Record(s.process(ctx, doc, opts, report))
	}

	if !opts.DryRun {
		now := time.Now().UTC()
		if err := s.state.Save(ctx, &domain.SyncState{LastSyncTimestamp: now, UpdatedAt: now}); err != nil {
			report.Duration = time.Since(startTime)
			return report, fmt.Errorf("save sync state: %w", err)
		}
	}

	report.Duration = time.Since(startTime)
	s.recordRun(ctx, report)

	s.logger.Info("sync completed",
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"excluded", report.Excluded,
		"failed", report.Failed,
		"published", report.Published,
		"images_downloaded", report.Media.Downloaded,
		"images_failed", report.Media.Failed,
		"duration", report.Duration,
	)

	return report, nil
}

func (s *SyncService) process(ctx context.Context, doc domain.ExternalDocument, opts Options, report *domain.SyncReport) domain.ItemResult {
	item := domain.ItemResult{ExternalID: doc.ID, Title: doc.Title}
	logger := s.logger.With("document_id", doc.ID, "title", doc.Title)

	if doc.MetadataError != "" {
		item.Action = domain.ActionFailed
		item.Error = "read page metadata: " + doc.MetadataError
		logger.Error("unreadable page metadata", "error", doc.MetadataError)
		return item
	}

	if opts.From != nil && doc.CreatedTime.Before(*opts.From) {
		item.Action = domain.ActionExclude
		item.Reason = "created before " + opts.From.Format(domain.DateLayout)
		logger.Info("skipped", "reason", item.Reason)
		return item
	}

	entry, exists := s.content.Lookup(doc.ID, s.converter.FileName(doc))
	if exists && !opts.Force && !entry.LastEditedTime.Before(doc.LastEditedTime) {
		item.Action = domain.ActionSkip
		item.Path = entry.Path
		item.Reason = "unchanged"
		logger.Info("skipped, unchanged", "path", entry.Path)
		return item
	}

	action := domain.ActionCreate
	if exists {
		action = domain.ActionUpdate
		item.Path = entry.Path
	}

	if opts.DryRun {
		item.Action = action
		item.Reason = "dry run"
		logger.Info("dry run, not converting", "action", action)
		return item
	}

	defer s.pace(ctx)

	converted, err := s.converter.Convert(ctx, doc)
	if err != nil {
		item.Action = domain.ActionFailed
		item.Error = err.Error()
		logger.Error("conversion failed", "error", err)
		return item
	}
	report.Media.Add(converted.Media)

	path, err := s.content.Write(ctx, converted)
	if err != nil {
		item.Action = domain.ActionFailed
		item.Error = fmt.Sprintf("write content file: %v", err)
		logger.Error("write failed", "error", err)
		return item
	}

	item.Action = action
	item.Path = path
	logger.Info("document written", "action", action, "path", path)

	s.publish(ctx, converted, path, action == domain.ActionCreate, report)
	return item
}

func (s *SyncService) publish(ctx context.Context, doc *domain.ConvertedDocument, path string, isNew bool, report *domain.SyncReport) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, doc, path, isNew); err != nil {
		report.PublishErrors++
		s.logger.Warn("failed to publish content event",
			"document_id", doc.ExternalID,
			"error", err,
		)
		return
	}
	report.Published++
}

func (s *SyncService) recordRun(ctx context.Context, report *domain.SyncReport) {
	if s.recorder == nil {
		return
	}
	id, err := s.recorder.Record(ctx, report)
	if err != nil {
		s.logger.Warn("failed to record sync run", "error", err)
		return
	}
	s.logger.Debug("sync run recorded", "run_id", id)
}

// pace is a fixed delay between converted documents, not a backoff.
func (s *SyncService) pace(ctx context.Context) {
	if s.config.Delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.config.Delay):
	}
}
