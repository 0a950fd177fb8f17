package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date used for file names, media partitions and slug fallbacks.
const DateLayout = "2006-01-02"

// ExternalDocument is a Notion page as seen by the pipeline. It is read-only input.
type ExternalDocument struct {
	ID             string
	Title          string
	URL            string
	CreatedTime    time.Time
	LastEditedTime time.Time
	PublishedAt    *time.Time // explicit date property, if the page has one
	Author         *string
	Tags           []string

	// MetadataError is set when the page's properties could not be read. Such
	// documents carry only ID, URL and Title and are reported as failed.
	MetadataError string
}

// PublicationDate prefers the explicit date property over the creation time.
func (d ExternalDocument) PublicationDate() time.Time {
	if d.PublishedAt != nil && !d.PublishedAt.IsZero() {
		return *d.PublishedAt
	}
	return d.CreatedTime
}

// Taxonomy is the two-level category pair, e.g. ("Tech", "AI").
type Taxonomy struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

func (t Taxonomy) Slice() []string {
	return []string{t.Primary, t.Secondary}
}

func (t Taxonomy) String() string {
	return t.Primary + "/" + t.Secondary
}

// MediaStats counts the outcome of image relocation for one document or a whole run.
type MediaStats struct {
	Downloaded int
	Reused     int
	Failed     int
}

func (m *MediaStats) Add(other MediaStats) {
	m.Downloaded += other.Downloaded
	m.Reused += other.Reused
	m.Failed += other.Failed
}

// ConvertedDocument is the output unit of the converter.
type ConvertedDocument struct {
	ExternalID      string
	Title           string
	Author          string
	PublicationDate time.Time
	LastEditedTime  time.Time
	Taxonomy        Taxonomy
	Tags            []string
	Slug            string
	Body            string
	Media           MediaStats
}

// FileName returns "{YYYY-MM-DD}-{slug}.{ext}".
func (d *ConvertedDocument) FileName(ext string) string {
	return FileName(d.PublicationDate, d.Slug, ext)
}

func FileName(date time.Time, slug, ext string) string {
	return fmt.Sprintf("%s-%s.%s", date.Format(DateLayout), slug, ext)
}

// ContentEntry is an output file already present in the content store.
// ExternalID is empty for files written before the id was recorded.
type ContentEntry struct {
	Path           string
	ExternalID     string
	LastEditedTime time.Time
}
