package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"notion_sync/internal/domain"
)

const DefaultMaxRedirects = 5

var ErrTooManyRedirects = errors.New("too many redirects")

// DefaultHosts are the remote storage hosts whose images are rehomed. Notion-hosted
// uploads expire, chat attachments disappear; decorative external images are left alone.
var DefaultHosts = []string{
	"*.amazonaws.com",
	"*.notion-static.com",
	"file.notion.so",
	"cdn.discordapp.com",
	"media.discordapp.net",
	"files.slack.com",
}

var (
	imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(\s+"[^"]*")?\)`)
	uuidPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	unsafeName   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

var knownExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".avif": true, ".bmp": true,
}

type Config struct {
	Dir          string
	URLPrefix    string
	Hosts        []string
	MaxRedirects int
	Timeout      time.Duration
}

// Relocator downloads remotely hosted images into a date-partitioned public
// directory and points the markdown at the local copy.
type Relocator struct {
	client       *http.Client
	dir          string
	urlPrefix    string
	hosts        []string
	maxRedirects int
	logger       *slog.Logger
}

// Result is the rewritten body plus per-image outcome counts.
type Result struct {
	Body  string
	Stats domain.MediaStats
}

func New(cfg Config, logger *slog.Logger) *Relocator {
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = DefaultHosts
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	hosts := make([]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hosts = append(hosts, strings.ToLower(strings.TrimSpace(h)))
	}

	return &Relocator{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dir:          cfg.Dir,
		urlPrefix:    "/" + strings.Trim(cfg.URLPrefix, "/"),
		hosts:        hosts,
		maxRedirects: cfg.MaxRedirects,
		logger:       logger.With("component", "media"),
	}
}

// Relocatable reports whether rawURL points at a known remote storage host.
func (r *Relocator) Relocatable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, pattern := range r.hosts {
		if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

// Relocate rewrites every relocatable image reference in markdown. A failed
// download leaves that one reference untouched; it never aborts the document.
func (r *Relocator) Relocate(ctx context.Context, markdown, partitionKey string) Result {
	res := Result{Body: markdown}

	matches := imagePattern.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return res
	}
	images := imageDestinations(markdown)

	relocated := make(map[string]string)
	var sb strings.Builder
	last := 0

	for _, m := range matches {
		raw := markdown[m[4]:m[5]]
		if _, ok := images[raw]; !ok || !r.Relocatable(raw) {
			continue
		}

		local, seen := relocated[raw]
		if !seen {
			local = r.relocateOne(ctx, raw, partitionKey, &res.Stats)
			relocated[raw] = local
		}
		if local == "" {
			continue
		}

		sb.WriteString(markdown[last:m[4]])
		sb.WriteString(local)
		last = m[5]
	}
	sb.WriteString(markdown[last:])
	res.Body = sb.String()

	return res
}

func (r *Relocator) relocateOne(ctx context.Context, raw, partitionKey string, stats *domain.MediaStats) string {
	logger := r.logger.With("url", raw)

	u, err := url.Parse(raw)
	if err != nil {
		stats.Failed++
		logger.Warn("invalid image url", "error", err)
		return ""
	}

	name := FileName(u)
	dir := filepath.Join(r.dir, partitionKey)
	target := filepath.Join(dir, name)
	local := path.Join(r.urlPrefix, partitionKey, name)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		stats.Reused++
		return local
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		stats.Failed++
		logger.Warn("failed to create media directory", "dir", dir, "error", err)
		return ""
	}

	if err := r.download(ctx, raw, target); err != nil {
		stats.Failed++
		logger.Warn("image download failed, keeping remote url", "error", err)
		return ""
	}

	stats.Downloaded++
	logger.Debug("image relocated", "path", local)
	return local
}

// download follows redirects itself so the hop count is bounded.
func (r *Relocator) download(ctx context.Context, rawURL, target string) error {
	current := rawURL
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", "NotionSync/1.0")

		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return fmt.Errorf("redirect %d without location", resp.StatusCode)
			}
			if hop >= r.maxRedirects {
				return fmt.Errorf("after %d hops: %w", hop, ErrTooManyRedirects)
			}
			next, err := req.URL.Parse(location)
			if err != nil {
				return fmt.Errorf("parse redirect location: %w", err)
			}
			current = next.String()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		err = writeFile(target, resp.Body)
		resp.Body.Close()
		return err
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func writeFile(target string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move image into place: %w", err)
	}
	return nil
}

// FileName derives a local file name for u. Every name identifies its source, so
// a file already on disk under that name can be reused: the last UUID in the path
// when there is one, otherwise the basename (or "image") with a short hash of the
// URL appended. Basename hashes cover host and path only, since chat CDNs sign
// their query strings per request.
func FileName(u *url.URL) string {
	ext := guessExtension(u.Path)

	ids := uuidPattern.FindAllString(u.Path, -1)
	for i := len(ids) - 1; i >= 0; i-- {
		if id, err := uuid.Parse(ids[i]); err == nil {
			return id.String() + ext
		}
	}

	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-.")
	baseExt := strings.ToLower(path.Ext(base))
	if stem := strings.Trim(strings.TrimSuffix(base, path.Ext(base)), "-."); stem != "" && knownExtensions[baseExt] {
		return fmt.Sprintf("%s-%s%s", stem, shortHash(strings.ToLower(u.Host)+u.Path), baseExt)
	}

	return fmt.Sprintf("image-%s%s", shortHash(u.String()), ext)
}

func shortHash(s string) string {
	sum := uuid.NewSHA1(uuid.NameSpaceURL, []byte(s))
	return strings.ReplaceAll(sum.String(), "-", "")[:10]
}

func guessExtension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if knownExtensions[ext] {
		return ext
	}
	return ".png"
}

// imageDestinations collects the destinations of real image nodes, so images
// shown inside code spans or fences are not touched.
func imageDestinations(markdown string) map[string]struct{} {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	dests := make(map[string]struct{})
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			dests[string(img.Destination)] = struct{}{}
		}
		return ast.WalkContinue, nil
	})
	return dests
}
