package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"notion_sync/internal/content"
	"notion_sync/internal/domain"
	"notion_sync/internal/media"
	"notion_sync/internal/source/notion"
	"notion_sync/internal/taxonomy"
)

var errEmptyTitle = errors.New("document has no title")

// ConversionError wraps any failure while converting one document.
type ConversionError struct {
	DocumentID string
	Title      string
	Step       string
	Err        error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %q (%s) at %s: %v", e.Title, e.DocumentID, e.Step, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

type BlockFetcher interface {
	FetchBlocks(ctx context.Context, blockID string) ([]notion.Block, error)
}

type Relocator interface {
	Relocate(ctx context.Context, markdown, partitionKey string) media.Result
}

type Config struct {
	Author    string
	Extension string
}

// Converter turns one external document into a ConvertedDocument:
// blocks -> markdown -> sanitize -> format -> relocate media -> categorize -> slug.
type Converter struct {
	blocks      BlockFetcher
	sanitizer   *content.Sanitizer
	slugger     *content.Slugger
	relocator   Relocator
	categorizer *taxonomy.Categorizer
	author      string
	extension   string
	logger      *slog.Logger
}

func New(
	blocks BlockFetcher,
	sanitizer *content.Sanitizer,
	slugger *content.Slugger,
	relocator Relocator,
	categorizer *taxonomy.Categorizer,
	cfg Config,
	logger *slog.Logger,
) *Converter {
	if cfg.Extension == "" {
		cfg.Extension = "md"
	}
	return &Converter{
		blocks:      blocks,
		sanitizer:   sanitizer,
		slugger:     slugger,
		relocator:   relocator,
		categorizer: categorizer,
		author:      cfg.Author,
		extension:   strings.TrimPrefix(cfg.Extension, "."),
		logger:      logger.With("component", "converter"),
	}
}

// Slug is deterministic for a given title and publication date, so the
// orchestrator can compute the target file name without converting.
func (c *Converter) Slug(doc domain.ExternalDocument) string {
	return c.slugger.Slugify(doc.Title, doc.PublicationDate().Format(domain.DateLayout))
}

func (c *Converter) FileName(doc domain.ExternalDocument) string {
	return domain.FileName(doc.PublicationDate(), c.Slug(doc), c.extension)
}

func (c *Converter) Extension() string {
	return c.extension
}

// Convert fails fast: no partial document is returned.
func (c *Converter) Convert(ctx context.Context, doc domain.ExternalDocument) (*domain.ConvertedDocument, error) {
	fail := func(step string, err error) error {
		return &ConversionError{DocumentID: doc.ID, Title: doc.Title, Step: step, Err: err}
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return nil, fail("validate", errEmptyTitle)
	}

	blocks, err := c.blocks.FetchBlocks(ctx, doc.ID)
	if err != nil {
		return nil, fail("fetch blocks", err)
	}

	body := notion.RenderMarkdown(blocks)
	body = c.sanitizer.Sanitize(body)
	body = content.Format(body)

	relocated := c.relocator.Relocate(ctx, body, doc.CreatedTime.Format(domain.DateLayout))
	if err := ctx.Err(); err != nil {
		return nil, fail("relocate media", err)
	}
	body = relocated.Body

	tax, ruleTags := c.categorizer.Categorize(title, body)

	author := c.author
	if doc.Author != nil && strings.TrimSpace(*doc.Author) != "" {
		author = strings.TrimSpace(*doc.Author)
	}

	converted := &domain.ConvertedDocument{
		ExternalID:      doc.ID,
		Title:           title,
		Author:          author,
		PublicationDate: doc.PublicationDate(),
		LastEditedTime:  doc.LastEditedTime,
		Taxonomy:        tax,
		Tags:            taxonomy.MergeTags(ruleTags, doc.Tags),
		Slug:            c.Slug(doc),
		Body:            body,
		Media:           relocated.Stats,
	}

	c.logger.Debug("document converted",
		"document_id", doc.ID,
		"title", title,
		"taxonomy", tax.String(),
		"slug", converted.Slug,
		"images_downloaded", relocated.Stats.Downloaded,
		"images_failed", relocated.Stats.Failed,
	)

	return converted, nil
}
