// =============================================================================
// scorer.go - 関連度スコアリング
// =============================================================================
//
// 【スコアリング重み配分】
//
//   ┌──────────────────────────────┬──────────────────┐
//   │ 評価項目                     │ 点数             │
//   ├──────────────────────────────┼──────────────────┤
//   │ タイトル内のキーワード出現   │ 1回につき10点    │
//   │ 本文内のキーワード出現       │ 1回につき1点     │
//   │ 24時間以内の記事             │ +5               │
//   │ 7日（168時間）以内の記事     │ +3               │
//   └──────────────────────────────┴──────────────────┘
//
//   合計 = タイトル + 本文 + 新しさ。合計0以下の記事は除外。
//
// 【注意】
//   - 大文字小文字は区別しない
//   - 出現回数は重ならない部分文字列として数える（"warming" は "warmings" にも一致）
//   - 日時のない記事の新しさボーナスは0
//
// =============================================================================
package pipeline

import (
	"strings"
	"time"
)

const (
	titleWeight = 10

	freshBonus  = 5 // 24時間以内
	recentBonus = 3 // 7日以内
)

// CountMatches はキーワードごとの出現回数の合計を返す
func CountMatches(text string, keywords KeywordSet) int {
	lower := strings.ToLower(text)
	total := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		total += strings.Count(lower, kw)
	}
	return total
}

// RecencyBonus は記事の経過時間から新しさボーナスを返す
func RecencyBonus(published *time.Time, now time.Time) int {
	if published == nil {
		return 0
	}
	age := now.Sub(*published)
	switch {
	case age < 24*time.Hour:
		return freshBonus
	case age < 168*time.Hour:
		return recentBonus
	default:
		return 0
	}
}

// Score はエントリをスコアリングする
//
// contentは抽出済み本文（抽出失敗時はフィード本文）。
// リンクがない、または合計スコアが0以下の場合は false を返す。
// 重複リンクの判定は呼び出し前の事前パスで済んでいる前提。
func Score(entry FeedEntry, content string, keywords KeywordSet, now time.Time) (ScoredArticle, bool) {
	if entry.Link == "" {
		return ScoredArticle{}, false
	}

	details := MatchDetails{
		TitleMatches:   CountMatches(entry.Title, keywords),
		ContentMatches: CountMatches(content, keywords),
		RecencyBonus:   RecencyBonus(entry.Published, now),
	}
	total := titleWeight*details.TitleMatches + details.ContentMatches + details.RecencyBonus
	if total <= 0 {
		return ScoredArticle{}, false
	}

	return ScoredArticle{
		Title:          entry.Title,
		Content:        content,
		Link:           entry.Link,
		Published:      entry.Published,
		Source:         entry.Source,
		PrimarySource:  entry.Primary,
		RelevanceScore: total,
		MatchDetails:   details,
	}, true
}
