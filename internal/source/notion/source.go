package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notion_sync/internal/domain"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	maxPageSize    = 100
)

var ErrUnauthorized = errors.New("notion: unauthorized")

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Config holds Notion source configuration.
type Config struct {
	BaseURL        string
	Token          string
	DatabaseID     string
	Version        string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DateProperty   string
	AuthorProperty string
	TagsProperty   string
}

// Source reads pages and block trees from a Notion database.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	databaseID     string
	version        string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	dateProperty   string
	authorProperty string
	tagsProperty   string
	logger         *slog.Logger
}

// ListOptions bounds enumeration.
type ListOptions struct {
	Limit int
}

func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		databaseID:     cfg.DatabaseID,
		version:        cfg.Version,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		dateProperty:   cfg.DateProperty,
		authorProperty: cfg.AuthorProperty,
		tagsProperty:   cfg.TagsProperty,
		logger:         logger.With("component", "notion"),
	}
}

// ListDocuments pages through the database in ascending last-edited order.
func (s *Source) ListDocuments(ctx context.Context, opts ListOptions) ([]domain.ExternalDocument, error) {
	var docs []domain.ExternalDocument
	cursor := ""

	for page := 0; ; page++ {
		resp, err := s.QueryDatabase(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("query database page %d: %w", page, err)
		}

		for _, p := range resp.Results {
			if p.Archived || p.InTrash {
				continue
			}
			doc, err := s.toDocument(p)
			if err != nil {
				s.logger.Warn("page has unreadable metadata",
					"page_id", p.ID,
					"error", err,
				)
				doc = domain.ExternalDocument{
					ID:            p.ID,
					URL:           p.URL,
					Title:         pageTitle(p),
					MetadataError: err.Error(),
				}
			}
			docs = append(docs, doc)
		}

		s.logger.Debug("fetched page",
			"page", page,
			"results", len(resp.Results),
			"total", len(docs),
		)

		if opts.Limit > 0 && len(docs) >= opts.Limit {
			return docs[:opts.Limit], nil
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return docs, nil
		}
		cursor = *resp.NextCursor
	}
}

// QueryDatabase fetches one page of results starting at cursor.
func (s *Source) QueryDatabase(ctx context.Context, cursor string) (*QueryResponse, error) {
	body := QueryRequest{
		Sorts:       []Sort{{Timestamp: "last_edited_time", Direction: "ascending"}},
		StartCursor: cursor,
		PageSize:    s.pageSize,
	}

	var resp QueryResponse
	endpoint := fmt.Sprintf("%s/databases/%s/query", s.baseURL, url.PathEscape(s.databaseID))
	if err := s.call(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchBlocks returns the full block tree of a page, children included.
func (s *Source) FetchBlocks(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""

	for {
		query := url.Values{}
		query.Set("page_size", fmt.Sprint(maxPageSize))
		if cursor != "" {
			query.Set("start_cursor", cursor)
		}
		endpoint := fmt.Sprintf("%s/blocks/%s/children?%s", s.baseURL, url.PathEscape(blockID), query.Encode())

		var resp BlockChildrenResponse
		if err := s.call(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch children of %s: %w", blockID, err)
		}
		blocks = append(blocks, resp.Results...)

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}

	for i := range blocks {
		if !blocks[i].HasChildren || blocks[i].Type == "child_page" || blocks[i].Type == "child_database" {
			continue
		}
		children, err := s.FetchBlocks(ctx, blocks[i].ID)
		if err != nil {
			return nil, err
		}
		blocks[i].Children = children
	}

	return blocks, nil
}

func (s *Source) call(ctx context.Context, method, endpoint string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.doRequest(ctx, method, endpoint, payload, out)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Notion-Version", s.version)
	req.Header.Set("User-Agent", "NotionSync/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(data, &apiErr) == nil {
			statusErr.Code = apiErr.Code
			statusErr.Message = apiErr.Message
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
