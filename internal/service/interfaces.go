package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"notion_sync/internal/domain"
	"notion_sync/internal/source/notion"
)

type Source interface {
	ListDocuments(ctx context.Context, opts notion.ListOptions) ([]domain.ExternalDocument, error)
}

type Converter interface {
	FileName(doc domain.ExternalDocument) string
	Convert(ctx context.Context, doc domain.ExternalDocument) (*domain.ConvertedDocument, error)
}

type ContentStore interface {
	Scan(ctx context.Context) error
	Lookup(externalID, fileName string) (domain.ContentEntry, bool)
	Write(ctx context.Context, doc *domain.ConvertedDocument) (string, error)
}

type StateStore interface {
	Load(ctx context.Context) (*domain.SyncState, error)
	Save(ctx context.Context, state *domain.SyncState) error
}

type RunRecorder interface {
	Record(ctx context.Context, report *domain.SyncReport) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, doc *domain.ConvertedDocument, path string, isNew bool) error
	Close() error
}
