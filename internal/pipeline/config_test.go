package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.MaxEntriesPerFeed)
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 100, cfg.MinContentLength)
	assert.Equal(t, 15*time.Second, cfg.PrimaryTimeout)
	assert.Equal(t, 10*time.Second, cfg.FallbackTimeout)
	assert.Zero(t, cfg.RunTimeout)
	assert.Len(t, cfg.Feeds, len(DefaultFeeds))

	// デフォルトのフィード一覧を共有しない
	cfg.Feeds[0].Name = "changed"
	assert.NotEqual(t, "changed", DefaultFeeds[0].Name)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feeds:
  - name: Example
    url: https://example.com/rss
    primary: true
workers: 4
run_timeout: 45s
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []FeedSource{{Name: "Example", URL: "https://example.com/rss", Primary: true}}, cfg.Feeds)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 45*time.Second, cfg.RunTimeout)
	// 未指定の項目はデフォルトのまま
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, BrowserUserAgent, cfg.UserAgent)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\nmax_results: -1\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be positive")
	assert.Contains(t, err.Error(), "max_results must be positive")

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_FeedWithoutURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feeds = []FeedSource{{Name: "broken"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feeds[0] (broken): url is required")
}

func TestParseFeedList(t *testing.T) {
	feeds := ParseFeedList(" https://www.a.example/rss , ,https://b.example/feed")
	assert.Equal(t, []FeedSource{
		{Name: "a.example", URL: "https://www.a.example/rss"},
		{Name: "b.example", URL: "https://b.example/feed"},
	}, feeds)
	assert.Empty(t, ParseFeedList(""))
}
