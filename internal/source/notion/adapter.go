package notion

import (
	"fmt"
	"strings"
	"time"

	"notion_sync/internal/domain"
)

// toDocument is the single place where the loosely typed property bag of a page
// is mapped onto domain.ExternalDocument. Missing optional properties are nil.
func (s *Source) toDocument(p Page) (domain.ExternalDocument, error) {
	created, err := time.Parse(time.RFC3339, p.CreatedTime)
	if err != nil {
		return domain.ExternalDocument{}, fmt.Errorf("parse created_time %q: %w", p.CreatedTime, err)
	}
	edited, err := time.Parse(time.RFC3339, p.LastEditedTime)
	if err != nil {
		return domain.ExternalDocument{}, fmt.Errorf("parse last_edited_time %q: %w", p.LastEditedTime, err)
	}

	doc := domain.ExternalDocument{
		ID:             p.ID,
		URL:            p.URL,
		Title:          pageTitle(p),
		CreatedTime:    created,
		LastEditedTime: edited,
	}

	if prop, ok := p.Properties[s.dateProperty]; ok && prop.Type == "date" && prop.Date != nil {
		if published, err := parseDate(prop.Date.Start); err == nil {
			doc.PublishedAt = &published
		} else {
			s.logger.Warn("ignoring unparseable date property",
				"page_id", p.ID,
				"value", prop.Date.Start,
			)
		}
	}

	if prop, ok := p.Properties[s.authorProperty]; ok {
		if author := propertyText(prop); author != "" {
			doc.Author = &author
		}
	}

	if prop, ok := p.Properties[s.tagsProperty]; ok {
		switch prop.Type {
		case "multi_select":
			for _, opt := range prop.MultiSelect {
				doc.Tags = append(doc.Tags, opt.Name)
			}
		case "select":
			if prop.Select != nil {
				doc.Tags = append(doc.Tags, prop.Select.Name)
			}
		}
	}

	return doc, nil
}

func pageTitle(p Page) string {
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return strings.TrimSpace(PlainText(prop.Title))
		}
	}
	return ""
}

func propertyText(prop Property) string {
	switch prop.Type {
	case "rich_text":
		return strings.TrimSpace(PlainText(prop.RichText))
	case "title":
		return strings.TrimSpace(PlainText(prop.Title))
	case "select":
		if prop.Select != nil {
			return prop.Select.Name
		}
	case "people":
		names := make([]string, 0, len(prop.People))
		for _, person := range prop.People {
			if person.Name != "" {
				names = append(names, person.Name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// parseDate accepts both date-only and date-time values.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(domain.DateLayout, value)
}

// PlainText concatenates rich text without annotations.
func PlainText(parts []RichText) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.PlainText)
	}
	return sb.String()
}
