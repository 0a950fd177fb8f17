package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notion_sync/internal/domain"
)

func TestCategorize(t *testing.T) {
	c := New(DefaultRules(), DefaultFallback())

	tests := []struct {
		name     string
		title    string
		body     string
		want     domain.Taxonomy
		wantTags []string
	}{
		{
			name:     "collaboration beats ai in title",
			title:    "AI Hackathon Project",
			want:     domain.Taxonomy{Primary: "Project", Secondary: "Collaboration"},
			wantTags: []string{"collaboration", "project"},
		},
		{
			name:     "ai title",
			title:    "Trying Claude for code review",
			want:     domain.Taxonomy{Primary: "Tech", Secondary: "AI"},
			wantTags: []string{"ai", "machine-learning"},
		},
		{
			name:     "title wins over body",
			title:    "LLM notes",
			body:     "we did this as a team project",
			want:     domain.Taxonomy{Primary: "Tech", Secondary: "AI"},
			wantTags: []string{"ai", "machine-learning"},
		},
		{
			name:     "body used when title has no keyword",
			title:    "Weekly log",
			body:     "Spent the week on the hackathon.",
			want:     domain.Taxonomy{Primary: "Project", Secondary: "Collaboration"},
			wantTags: []string{"collaboration", "project"},
		},
		{
			name:     "korean keyword",
			title:    "인공지능 공부 기록",
			want:     domain.Taxonomy{Primary: "Tech", Secondary: "AI"},
			wantTags: []string{"ai", "machine-learning"},
		},
		{
			name:     "word boundary avoids false positive",
			title:    "He said it was fair",
			want:     domain.Taxonomy{Primary: "Tech", Secondary: "General"},
			wantTags: []string{"dev"},
		},
		{
			name:     "fallback",
			title:    "Morning routine",
			body:     "coffee and a walk",
			want:     domain.Taxonomy{Primary: "Tech", Secondary: "General"},
			wantTags: []string{"dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tags := c.Categorize(tt.title, tt.body)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestCategorize_SubstitutedTaxonomy(t *testing.T) {
	c := New([]Rule{{
		Name:     "cooking",
		Keywords: []string{"recipe"},
		Taxonomy: domain.Taxonomy{Primary: "Life", Secondary: "Food"},
		Tags:     []string{"Food", "food", " cooking "},
	}}, Rule{Taxonomy: domain.Taxonomy{Primary: "Misc", Secondary: "Other"}})

	got, tags := c.Categorize("A RECIPE for bread", "")
	assert.Equal(t, domain.Taxonomy{Primary: "Life", Secondary: "Food"}, got)
	assert.Equal(t, []string{"cooking", "food"}, tags)

	got, tags = c.Categorize("AI Hackathon Project", "")
	assert.Equal(t, domain.Taxonomy{Primary: "Misc", Secondary: "Other"}, got)
	assert.Empty(t, tags)
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"ai", "go", "notion"}, MergeTags([]string{"go", "AI"}, []string{"notion", "ai", ""}))
}
