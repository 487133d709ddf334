// =============================================================================
// orchestrator.go - フェッチオーケストレータ
// =============================================================================
//
// このファイルはクエリ1回分のランキング処理全体を制御します。
//
// =============================================================================
// 【処理フロー】
// =============================================================================
//
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │ 1. クエリ   │ -> │ 2. フィード │ -> │ 3. 重複排除 │
//   │   正規化    │    │   読み込み  │    │  （事前パス）│
//   └─────────────┘    └─────────────┘    └─────────────┘
//          │                  │                  │
//          v                  v                  v
//   小文字化・分割     失敗したフィード    リンクの集合を作成
//                      はスキップ         最初に見たものを採用
//                      新しい順に15件
//
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │ 4. 抽出+    │ -> │ 5. 収集     │ -> │ 6. ランキング│
//   │  スコアリング│    │  （完了順） │    │   上位10件  │
//   └─────────────┘    └─────────────┘    └─────────────┘
//          │                  │                  │
//          v                  v                  v
//   8並列ワーカー      スコア>0のみ保持    スコア→日時→一次ソース
//                                         0件なら情報レコード
//
// =============================================================================
// 【失敗の扱い】
// =============================================================================
//
//   - フィード1件・記事1件の失敗が実行全体を止めることはない
//   - 利用者に見えるエラーは空クエリ（ErrEmptyQuery）のみ
//   - マッチ0件はエラーではなく RunResult.NoResults で返す
//
// 【実行期限】
//   Config.RunTimeout が0なら期限なし（遅いサイトはタイムアウトまでワーカーを占有する）。
//   期限を設定するか呼び出し側のcontextが終了すると、未着手のタスクは破棄され、
//   ダウンロード中の抽出は中断されてフィード本文でスコアリングされる。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrEmptyQuery は空のクエリで実行しようとしたときのエラー
var ErrEmptyQuery = errors.New("query must not be empty")

// Orchestrator はフィード読み込み・抽出・スコアリング・ランキングをまとめる
type Orchestrator struct {
	cfg       Config
	reader    FeedReader
	extractor ContentExtractor
	now       func() time.Time
}

// NewOrchestrator は依存を注入してオーケストレータを作成する
func NewOrchestrator(cfg Config, reader FeedReader, extractor ContentExtractor) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		reader:    reader,
		extractor: extractor,
		now:       time.Now,
	}
}

// New は設定を検証し、標準のフィードリーダーとエクストラクタで組み立てる
//
// フィード取得と記事取得は1つのHTTPクライアント（コネクションプール）を共有する。
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client := newHTTPClient()
	return NewOrchestrator(cfg, NewRSSFeedReader(cfg, client), NewExtractor(cfg, client)), nil
}

// Config は実行に使う設定を返す
func (o *Orchestrator) Config() Config { return o.cfg }

// Run は設定された全フィードに対してクエリを実行する
func (o *Orchestrator) Run(ctx context.Context, query string) (*RunResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	batches, stats := o.readFeeds(ctx)
	return o.rank(ctx, query, batches, stats), nil
}

// RunEntries は読み込み済みのフィードバッチに対してクエリを実行する
//
// エントリファイル（--entries）からの入力で使用する。
func (o *Orchestrator) RunEntries(ctx context.Context, query string, batches []FeedBatch) (*RunResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	return o.rank(ctx, query, batches, RunStats{Feeds: len(batches)}), nil
}

func (o *Orchestrator) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.RunTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.RunTimeout)
	}
	return context.WithCancel(ctx)
}

// readFeeds は全フィードを並列に読み込む（結果は設定順）
//
// 失敗したフィードはログに記録してスキップする（リトライなし）。
func (o *Orchestrator) readFeeds(ctx context.Context) ([]FeedBatch, RunStats) {
	feeds := o.cfg.Feeds
	stats := RunStats{Feeds: len(feeds)}

	results := collectOrdered(len(feeds), runPool(ctx, o.cfg.Workers, feeds, o.reader.Read))

	batches := make([]FeedBatch, 0, len(feeds))
	for i, r := range results {
		if r.Err != nil {
			stats.FeedErrors++
			warnf("skipping feed %s: %v", feeds[i].Name, r.Err)
			continue
		}
		batches = append(batches, FeedBatch{Source: feeds[i], Entries: r.Value})
	}
	return batches, stats
}

// articleOutcome はワーカー1件分の処理結果
type articleOutcome struct {
	article   ScoredArticle
	matched   bool
	extracted bool
}

// rank は重複排除・抽出+スコアリング・ランキングを行う
func (o *Orchestrator) rank(ctx context.Context, query string, batches []FeedBatch, stats RunStats) *RunResult {
	keywords := NewKeywordSet(query)

	// 事前パス: ワーカー投入前に重複排除の集合を完成させる（並行に変更しない）
	seen := make(map[string]struct{})
	var tasks []FeedEntry
	for _, b := range batches {
		recent := limitRecent(b.Entries, o.cfg.MaxEntriesPerFeed)
		stats.Candidates += len(recent)
		for _, e := range recent {
			if e.Source == "" {
				e.Source = b.Source.Name
			}
			e.Primary = e.Primary || b.Source.Primary
			if e.Link == "" {
				debugf("%s: skipping entry without link: %q", b.Source.Name, e.Title)
				continue
			}
			if _, dup := seen[e.Link]; dup {
				continue
			}
			seen[e.Link] = struct{}{}
			tasks = append(tasks, e)
		}
	}
	stats.Scheduled = len(tasks)

	now := o.now()
	process := func(ctx context.Context, e FeedEntry) (articleOutcome, error) {
		return o.process(ctx, e, keywords, now)
	}

	var matched []ScoredArticle
	for r := range runPool(ctx, o.cfg.Workers, tasks, process) {
		if r.Err != nil {
			stats.Dropped++
			debugf("dropped %s: %v", tasks[r.Index].Link, r.Err)
			continue
		}
		if r.Value.extracted {
			stats.Extracted++
		} else {
			stats.Fallbacks++
		}
		if r.Value.matched {
			matched = append(matched, r.Value.article)
		}
	}
	stats.Matched = len(matched)

	infof("query %q: %d feeds (%d failed), %d candidates, %d scheduled, %d matched, %d fallbacks, %d dropped",
		query, stats.Feeds, stats.FeedErrors, stats.Candidates, stats.Scheduled, stats.Matched, stats.Fallbacks, stats.Dropped)

	result := &RunResult{Query: query, Stats: stats}
	if len(matched) == 0 {
		result.NoResults = newNoResults(query)
		return result
	}

	sortArticles(matched)
	if len(matched) > o.cfg.MaxResults {
		matched = matched[:o.cfg.MaxResults]
	}
	result.Articles = matched
	return result
}

// process は1件のエントリの本文を抽出してスコアリングする
//
// 抽出に失敗した場合はフィード本文でスコアリングする（ExtractionFailure）。
func (o *Orchestrator) process(ctx context.Context, e FeedEntry, keywords KeywordSet, now time.Time) (out articleOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing %s: panic: %v", e.Link, r)
		}
	}()

	content := o.extractor.Extract(ctx, e.Link)
	out.extracted = content != ""
	if !out.extracted {
		content = e.Content.String()
	}
	out.article, out.matched = Score(e, content, keywords, now)
	return out, nil
}

// sortArticles はスコア降順 → 日時降順 → 一次ソース優先 → リンク昇順で並べる
//
// 最後のリンク比較で全順序になるため、完了順に依存せず結果が決まる。
func sortArticles(articles []ScoredArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if c := compareTime(a.Published, b.Published); c != 0 {
			return c > 0
		}
		if a.PrimarySource != b.PrimarySource {
			return a.PrimarySource
		}
		return a.Link < b.Link
	})
}

// compareTime は新しい方を大きいとみなす（nilは最も古い）
func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}
