package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDatabaseID = "1f2e3d4c5b6a47988a7b6c5d4e3f2a1b"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "secret_abc")
	t.Setenv("NOTION_DATABASE_ID", testDatabaseID)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "secret_abc", cfg.Notion.Token)
	assert.Equal(t, testDatabaseID, cfg.Notion.DatabaseID)
	assert.Equal(t, "https://api.notion.com/v1", cfg.Notion.BaseURL)
	assert.Equal(t, 100, cfg.Notion.PageSize)
	assert.Equal(t, 3, cfg.Notion.Retry.MaxAttempts)
	assert.Equal(t, "src/content/blog", cfg.Content.ContentDir)
	assert.Equal(t, "md", cfg.Content.Extension)
	assert.Equal(t, 5, cfg.Content.MaxRedirects)
	assert.Equal(t, 350*time.Millisecond, cfg.Sync.Delay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoad_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID", "")
	t.Setenv("BLOG_NOTION_TOKEN", "secret_from_env")

	path := writeConfig(t, `
notion:
  token: ${BLOG_NOTION_TOKEN}
  database_id: "`+testDatabaseID+`"
  page_size: 25
content:
  root: /srv/blog
  extension: .mdx
  author: Jane
  stop_words: [the, a]
categories:
  rules:
    - name: cooking
      keywords: [recipe]
      taxonomy: {primary: Life, secondary: Food}
      tags: [food]
  default:
    name: misc
    taxonomy: {primary: Life, secondary: Misc}
    tags: [misc]
sync:
  delay: 1s
log_level: debug
log_format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret_from_env", cfg.Notion.Token)
	assert.Equal(t, 25, cfg.Notion.PageSize)
	assert.Equal(t, "mdx", cfg.Content.Extension)
	assert.Equal(t, "Jane", cfg.Content.Author)
	assert.Equal(t, []string{"the", "a"}, cfg.Content.StopWords)
	assert.Equal(t, time.Second, cfg.Sync.Delay)
	assert.Equal(t, "text", cfg.LogFormat)

	require.Len(t, cfg.Categories.Rules, 1)
	assert.Equal(t, "Food", cfg.Categories.Rules[0].Taxonomy.Secondary)
	require.NotNil(t, cfg.Categories.Default)
	assert.Equal(t, []string{"misc"}, cfg.Categories.Default.Tags)

	assert.Equal(t, "/srv/blog/src/content/blog", cfg.Content.Path(cfg.Content.ContentDir))
	assert.Equal(t, "/abs/state.json", cfg.Content.Path("/abs/state.json"))
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID", "")

	_, err := Load(writeConfig(t, "log_level: info\n"))
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "NOTION_TOKEN")
	assert.Contains(t, err.Error(), "NOTION_DATABASE_ID")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_DATABASE_ID", "")

	tests := []struct {
		name string
		body string
	}{
		{"bad database id", "notion:\n  database_id: not-an-id\n"},
		{"bad log level", "notion:\n  database_id: " + testDatabaseID + "\nlog_level: loud\n"},
		{"page size too large", "notion:\n  database_id: " + testDatabaseID + "\n  page_size: 500\n"},
		{"relative media prefix", "notion:\n  database_id: " + testDatabaseID + "\ncontent:\n  media_url_prefix: images\n"},
		{"database enabled without host", "notion:\n  database_id: " + testDatabaseID + "\ndatabase:\n  enabled: true\n  user: u\n  dbname: d\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "runs", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=runs sslmode=disable", d.DSN())
}

func TestLoad_ExplicitZeroDelayDisablesPacing(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_DATABASE_ID", testDatabaseID)

	cfg, err := Load(writeConfig(t, "sync:\n  delay: 0s\n  watch: true\n  interval: 5m\n"))
	require.NoError(t, err)

	assert.Zero(t, cfg.Sync.Delay)
	assert.True(t, cfg.Sync.Watch)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)

	cfg, err = Load(writeConfig(t, "sync:\n  interval: 5m\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDelay, cfg.Sync.Delay)
}

func TestLoad_WithoutNotion(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID", "")

	path := writeConfig(t, "database:\n  enabled: true\n  host: db\n  user: u\n  dbname: runs\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingCredentials)

	cfg, err := Load(path, WithoutNotion())
	require.NoError(t, err)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db", cfg.Database.Host)
}
