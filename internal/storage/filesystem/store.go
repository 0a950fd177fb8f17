package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"notion_sync/internal/domain"
)

type Config struct {
	ContentDir string
	Extension  string
}

// Store is the markdown content store of the site. Existing files are indexed by
// the Notion page id recorded in their frontmatter and by base name
// ("{date}-{slug}.{ext}"); the index is the only change-detection mechanism.
type Store struct {
	dir    string
	ext    string
	byID   map[string]domain.ContentEntry
	byName map[string]domain.ContentEntry
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Store {
	ext := strings.TrimPrefix(cfg.Extension, ".")
	if ext == "" {
		ext = "md"
	}
	return &Store{
		dir:    cfg.ContentDir,
		ext:    ext,
		byID:   make(map[string]domain.ContentEntry),
		byName: make(map[string]domain.ContentEntry),
		logger: logger.With("component", "content_store"),
	}
}

type storedMeta struct {
	NotionID       string `yaml:"notionId"`
	LastEditedTime string `yaml:"lastEditedTime"`
}

// Scan rebuilds the index from disk. A missing content directory is an empty index.
func (s *Store) Scan(ctx context.Context) error {
	byID := make(map[string]domain.ContentEntry)
	byName := make(map[string]domain.ContentEntry)

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dir && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || filepath.Ext(path) != "."+s.ext {
			return nil
		}

		entry, err := readEntry(path)
		if err != nil {
			s.logger.Warn("unreadable frontmatter, file will be treated as stale",
				"path", path,
				"error", err,
			)
		}

		name := filepath.Base(path)
		if prev, dup := byName[name]; dup {
			s.logger.Warn("duplicate file name in content dir", "name", name, "kept", prev.Path, "ignored", path)
			return nil
		}
		byName[name] = entry

		if entry.ExternalID != "" {
			if prev, dup := byID[entry.ExternalID]; dup {
				s.logger.Warn("two files claim the same page",
					"notion_id", entry.ExternalID,
					"kept", prev.Path,
					"ignored", path,
				)
				return nil
			}
			byID[entry.ExternalID] = entry
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan content dir %s: %w", s.dir, err)
	}

	s.byID = byID
	s.byName = byName
	s.logger.Debug("content index built", "files", len(byName), "pages", len(byID))
	return nil
}

// readEntry returns the entry for path. On a frontmatter error the entry still
// carries the path, with a zero edit time.
func readEntry(path string) (domain.ContentEntry, error) {
	entry := domain.ContentEntry{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return entry, err
	}
	defer f.Close()

	var meta storedMeta
	if _, err := frontmatter.Parse(f, &meta); err != nil {
		return entry, fmt.Errorf("parse frontmatter: %w", err)
	}
	entry.ExternalID = meta.NotionID

	if meta.LastEditedTime == "" {
		return entry, nil
	}
	t, err := time.Parse(time.RFC3339Nano, meta.LastEditedTime)
	if err != nil {
		return entry, fmt.Errorf("parse lastEditedTime %q: %w", meta.LastEditedTime, err)
	}
	entry.LastEditedTime = t
	return entry, nil
}

// Lookup finds the file written for a page. Files without a recorded id are
// matched by name so content from before ids were recorded is adopted, not duplicated.
func (s *Store) Lookup(externalID, fileName string) (domain.ContentEntry, bool) {
	if e, ok := s.byID[externalID]; ok {
		return e, true
	}
	if e, ok := s.byName[fileName]; ok && e.ExternalID == "" {
		return e, true
	}
	return domain.ContentEntry{}, false
}

// PathFor returns where doc is stored: its existing path when already indexed,
// otherwise a path under the taxonomy-derived directory. When another page owns
// the natural file name, the page id is appended to the slug.
func (s *Store) PathFor(doc *domain.ConvertedDocument) string {
	name := doc.FileName(s.ext)
	if e, ok := s.Lookup(doc.ExternalID, name); ok {
		return e.Path
	}

	for _, n := range []int{8, 32} {
		if _, taken := s.byName[name]; !taken {
			break
		}
		name = domain.FileName(doc.PublicationDate, doc.Slug+"-"+shortID(doc.ExternalID, n), s.ext)
	}
	return filepath.Join(s.dir, dirName(doc.Taxonomy.Primary), dirName(doc.Taxonomy.Secondary), name)
}

// shortID returns up to n lowercase characters of a page id, dashes removed.
func shortID(id string, n int) string {
	id = strings.ToLower(strings.ReplaceAll(id, "-", ""))
	if len(id) > n {
		return id[:n]
	}
	return id
}

// Write persists doc atomically and returns the path written.
func (s *Store) Write(ctx context.Context, doc *domain.ConvertedDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := Render(doc)
	if err != nil {
		return "", err
	}

	path := s.PathFor(doc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}

	entry := domain.ContentEntry{Path: path, ExternalID: doc.ExternalID, LastEditedTime: doc.LastEditedTime}
	s.byName[filepath.Base(path)] = entry
	if doc.ExternalID != "" {
		s.byID[doc.ExternalID] = entry
	}
	return path, nil
}

type frontMatter struct {
	Title          string   `yaml:"title"`
	Author         string   `yaml:"author"`
	PubDate        string   `yaml:"pubDate"`
	LastEditedTime string   `yaml:"lastEditedTime"`
	Categories     []string `yaml:"categories"`
	Tags           []string `yaml:"tags"`
	NotionID       string   `yaml:"notionId,omitempty"`
}

// Render produces the file contents: frontmatter, a blank line, then the body.
func Render(doc *domain.ConvertedDocument) ([]byte, error) {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	fm := frontMatter{
		Title:          doc.Title,
		Author:         doc.Author,
		PubDate:        doc.PublicationDate.Format(domain.DateLayout),
		LastEditedTime: doc.LastEditedTime.UTC().Format(time.RFC3339Nano),
		Categories:     doc.Taxonomy.Slice(),
		Tags:           tags,
		NotionID:       doc.ExternalID,
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimLeft(doc.Body, "\n"))
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to a temp file in the same directory and renames it
// over path, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func dirName(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimRight(sb.String(), "-")
	if name == "" {
		return "uncategorized"
	}
	return name
}
