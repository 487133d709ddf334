// =============================================================================
// config.go - パイプライン設定
// =============================================================================
//
// このファイルはランキングパイプラインの設定を管理します。
// 設定は構造体として各コンポーネントに注入され、パッケージレベルの
// グローバル変数（フィードリスト等）は持ちません。
//
// 【設定項目】
//   - Feeds:             フィード一覧（デフォルトはハードコード、追記で拡張）
//   - MaxEntriesPerFeed: フィードごとの最新エントリ上限（15）
//   - MaxResults:        返す記事の上限（10）
//   - Workers:           抽出+スコアリングの並列数（8）
//   - タイムアウト類:    本文抽出15秒 / フォールバック10秒 / フィード30秒
//   - PoliteDelay:       本文ダウンロード後の待機（1秒）
//   - MinContentLength:  抽出結果を採用する最小文字数（100）
//   - RunTimeout:        実行全体の期限（0で無制限）
//
// YAMLファイルで上書き可能（LoadConfig）。期間はGoのduration文字列（"15s"等）。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BrowserUserAgent はブラウザ風のUser-Agent（ブロッキング回避用）
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultFeeds はデフォルトのフィード一覧
//
// 新しいフィードはここに追記する。実行時の変更は設定ファイル経由のみ。
var DefaultFeeds = []FeedSource{
	{Name: "NYT Science", URL: "https://rss.nytimes.com/services/xml/rss/nyt/Science.xml"},
	{Name: "BBC Science & Environment", URL: "https://feeds.bbci.co.uk/news/science_and_environment/rss.xml"},
}

// Config はパイプラインの全設定を保持する
type Config struct {
	Feeds []FeedSource `yaml:"feeds"`

	MaxEntriesPerFeed int `yaml:"max_entries_per_feed"`
	MaxResults        int `yaml:"max_results"`
	Workers           int `yaml:"workers"`

	UserAgent        string        `yaml:"user_agent"`
	FeedTimeout      time.Duration `yaml:"feed_timeout"`
	PrimaryTimeout   time.Duration `yaml:"primary_timeout"`
	FallbackTimeout  time.Duration `yaml:"fallback_timeout"`
	PoliteDelay      time.Duration `yaml:"polite_delay"`
	MinContentLength int           `yaml:"min_content_length"`

	// RunTimeout は実行全体の期限（0で期限なし）
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Feeds:             append([]FeedSource(nil), DefaultFeeds...),
		MaxEntriesPerFeed: 15,
		MaxResults:        10,
		Workers:           8,
		UserAgent:         BrowserUserAgent,
		FeedTimeout:       30 * time.Second, // 一部のフィードは遅い
		PrimaryTimeout:    15 * time.Second,
		FallbackTimeout:   10 * time.Second,
		PoliteDelay:       1 * time.Second,
		MinContentLength:  100,
	}
}

// LoadConfig はYAMLファイルを読み込み、デフォルト設定に上書きする
//
// pathが空の場合はデフォルト設定をそのまま返す。
// feeds を指定した場合はデフォルトのフィード一覧を置き換える。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c Config) Validate() error {
	var errs []error
	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("at least one feed is required"))
	}
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			errs = append(errs, fmt.Errorf("feeds[%d] (%s): url is required", i, f.Name))
		}
	}
	if c.MaxEntriesPerFeed <= 0 {
		errs = append(errs, errors.New("max_entries_per_feed must be positive"))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, errors.New("max_results must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.MinContentLength < 0 {
		errs = append(errs, errors.New("min_content_length must not be negative"))
	}
	if c.RunTimeout < 0 {
		errs = append(errs, errors.New("run_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// ParseFeedList はカンマ区切りのURLリストをFeedSourceに変換する
//
// 環境変数 FEEDS（Lambda）などで使用する。名前はホスト名から付ける。
//
// 使用例:
//
//	ParseFeedList("https://a.example/rss, https://b.example/feed")
func ParseFeedList(raw string) []FeedSource {
	var out []FeedSource
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, FeedSource{Name: hostName(s), URL: s})
	}
	return out
}
