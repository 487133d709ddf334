// =============================================================================
// feeds.go - フィードソースリーダー
// =============================================================================
//
// このファイルは設定されたRSS/Atomフィードを読み込み、FeedEntryに変換します。
// gofeed ライブラリを使用してRSS/Atom/JSON Feedを解析します。
//
// 【処理の流れ】
//  1. 共有HTTPクライアントでフィードを取得（User-Agent・タイムアウト付き）
//  2. gofeed でパース
//  3. 各アイテムを FeedEntry に変換（リンク正規化・日時・本文ユニオン）
//  4. 公開日時の新しい順に並べ、フィードごとの上限で切り詰め
//
// 【エラーの扱い】
//   フィードの取得・パースに失敗した場合は *FeedError を返す。
//   呼び出し側（オーケストレータ）はそのフィードだけをスキップして続行する。
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedReader はフィードを読み込んでエントリを返す
type FeedReader interface {
	Read(ctx context.Context, src FeedSource) ([]FeedEntry, error)
}

// FeedError はフィード単位の失敗（FeedUnavailable）
type FeedError struct {
	Source FeedSource
	Err    error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s (%s): %v", e.Source.Name, e.Source.URL, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// RSSFeedReader はgofeedを使ったFeedReader実装
type RSSFeedReader struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewRSSFeedReader は設定からフィードリーダーを作成する
//
// clientがnilの場合はコネクションプーリング有効な共有クライアントを作る。
func NewRSSFeedReader(cfg Config, client *http.Client) *RSSFeedReader {
	if client == nil {
		client = newHTTPClient()
	}
	return &RSSFeedReader{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.FeedTimeout,
	}
}

// Read はフィードを取得してエントリに変換する
func (r *RSSFeedReader) Read(ctx context.Context, src FeedSource) ([]FeedEntry, error) {
	feed, err := r.fetch(ctx, src.URL)
	if err != nil {
		return nil, &FeedError{Source: src, Err: err}
	}

	entries := make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, entryFromItem(item, src))
	}
	debugf("%s: parsed %d entries", src.Name, len(entries))
	return entries, nil
}

// fetch はフィードを取得してgofeedでパースする
func (r *RSSFeedReader) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	fp := gofeed.NewParser()
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed parse failed: %w", err)
	}
	return feed, nil
}

// entryFromItem は gofeed.Item を FeedEntry に変換する
//
// 【変換ルール】
//   - Link:      item.Link、なければ item.Links[0]（UTMパラメータ除去）
//   - Published: PublishedParsed、なければ UpdatedParsed
//   - Content:   Content と Description が両方あり内容が異なれば断片リスト、
//                片方だけなら単一文字列（いずれもHTML除去済み）
func entryFromItem(item *gofeed.Item, src FeedSource) FeedEntry {
	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		published = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		published = &t
	}

	return FeedEntry{
		Title:     strings.TrimSpace(cleanHTML(item.Title)),
		Link:      normalizeLink(link),
		Content:   contentFromItem(item),
		Published: published,
		Source:    src.Name,
		Primary:   src.Primary,
	}
}

// contentFromItem は本文のユニオンを組み立てる
func contentFromItem(item *gofeed.Item) EntryContent {
	body := cleanHTML(item.Content)
	summary := cleanHTML(item.Description)

	switch {
	case body != "" && summary != "" && !strings.Contains(body, summary):
		return FragmentContent(summary, body)
	case body != "":
		return TextContent(body)
	default:
		return TextContent(summary)
	}
}

// limitRecent はエントリを新しい順に並べ、先頭n件に切り詰める
//
// 日時のないエントリは末尾に回す。同時刻はフィード内の元の順序を保つ。
// 元のスライスは変更しない。
func limitRecent(entries []FeedEntry, n int) []FeedEntry {
	out := append([]FeedEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Published, out[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// -----------------------------------------------------------------------------
// エントリファイル（オフライン入力）
// -----------------------------------------------------------------------------

// FeedBatch は1つのフィードから読み込んだエントリのまとまり
type FeedBatch struct {
	Source  FeedSource  `json:"source"`
	Entries []FeedEntry `json:"entries"`
}

// LoadEntriesFile はJSONファイルからフィードバッチを読み込む
//
// 次のどちらの形も受け付ける:
//
//	[{"source": {...}, "entries": [...]}, ...]   // フィードごと
//	[{"title": ..., "link": ..., "content": ...}] // フラットなエントリ配列
//
// content は文字列でも文字列配列でもよい（EntryContent.UnmarshalJSON）。
func LoadEntriesFile(path string) ([]FeedBatch, error) {
	var batches []FeedBatch
	if err := readJSONFile(path, &batches); err == nil && isBatchForm(batches) {
		for _, b := range batches {
			for i := range b.Entries {
				b.Entries[i].Link = normalizeLink(b.Entries[i].Link)
			}
		}
		return batches, nil
	}

	var entries []FeedEntry
	if err := readJSONFile(path, &entries); err != nil {
		return nil, fmt.Errorf("reading entries %s: %w", path, err)
	}
	src := FeedSource{Name: "file", URL: path}
	for i := range entries {
		entries[i].Link = normalizeLink(entries[i].Link)
		if entries[i].Source == "" {
			entries[i].Source = src.Name
		}
	}
	return []FeedBatch{{Source: src, Entries: entries}}, nil
}

// isBatchForm はどれか1つでも source か entries を持つバッチがあればフィードごとの形とみなす
//
// フラットなエントリ配列をFeedBatchとして読むと、全要素が空のバッチになる。
func isBatchForm(batches []FeedBatch) bool {
	for _, b := range batches {
		if b.Source.URL != "" || b.Source.Name != "" || len(b.Entries) > 0 {
			return true
		}
	}
	return false
}
