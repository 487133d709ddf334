// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはnews-relayのランキングパイプライン全体で使用する型を定義します。
//
// 【このファイルで定義している型】
//   - FeedSource:    設定されたフィード（名前・URL・一次ソースフラグ）
//   - EntryContent:  フィード本文（文字列 or 断片リスト）のタグ付きユニオン
//   - FeedEntry:     フィードから読み込んだ1件の記事エントリ
//   - KeywordSet:    クエリから生成したキーワード列
//   - ScoredArticle: スコア付き記事（ランキング結果）
//   - NoResults:     マッチ0件のときの情報レコード
//   - RunResult:     1回のクエリ実行の結果
//
// 【ライフサイクル】
//   FeedEntry → (本文抽出) → ScoredArticle → (フィルタ) → ランキング
//   どの値も1回のクエリ実行を超えて保持されない（永続化なし）
//
// =============================================================================
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FeedSource は設定されたフィードエンドポイント
type FeedSource struct {
	Name    string `yaml:"name" json:"name"`
	URL     string `yaml:"url" json:"url"`
	Primary bool   `yaml:"primary,omitempty" json:"primary,omitempty"` // 一次ソース（ソート第3キー）
}

// -----------------------------------------------------------------------------
// EntryContent - 本文のタグ付きユニオン
// -----------------------------------------------------------------------------
//
// フィードによって本文が「1つの文字列」で届く場合と「断片のリスト」で届く場合がある。
// 取り込み時にどちらかの形で保持し、String()で1つの文字列に正規化する。
// 下流で実行時の型を判定してはいけない（必ずString()を通す）。
//
type EntryContent struct {
	text      string
	fragments []string
	isList    bool
}

// TextContent は単一文字列の本文を作る
func TextContent(s string) EntryContent {
	return EntryContent{text: s}
}

// FragmentContent は断片リストの本文を作る
func FragmentContent(parts ...string) EntryContent {
	return EntryContent{fragments: append([]string(nil), parts...), isList: true}
}

// IsFragments は本文が断片リストとして届いたかどうかを返す
func (c EntryContent) IsFragments() bool { return c.isList }

// String は本文を1つの文字列に正規化する（断片は改行で連結、空の断片は除外）
func (c EntryContent) String() string {
	if !c.isList {
		return c.text
	}
	parts := make([]string, 0, len(c.fragments))
	for _, f := range c.fragments {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON は元の形（文字列 or 配列）のまま出力する
func (c EntryContent) MarshalJSON() ([]byte, error) {
	if c.isList {
		return json.Marshal(c.fragments)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON は文字列・文字列配列・null を受け付ける
//
// エントリファイル（--entries）では content が配列で届くことがあるため、
// ここで型を吸収して型エラーを下流に伝播させない。
func (c *EntryContent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = TextContent(s)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("content must be a string or a list of strings: %w", err)
	}
	parts := make([]string, 0, len(raw))
	for _, r := range raw {
		var part string
		if err := json.Unmarshal(r, &part); err != nil {
			// 数値などは文字列表現に落とす
			part = strings.Trim(string(r), `"`)
		}
		parts = append(parts, part)
	}
	*c = FragmentContent(parts...)
	return nil
}

// -----------------------------------------------------------------------------
// FeedEntry - フィードエントリ
// -----------------------------------------------------------------------------
//
// 【フィールドの説明】
//   Title:     記事タイトル
//   Link:      記事URL（実行全体での重複排除キー、必須）
//   Content:   フィードが提供する本文・要約（抽出失敗時のフォールバック）
//   Published: 公開日時（なければ更新日時）、どちらもなければnil
//   Source:    フィード名
//   Primary:   一次ソースのフィードから来たかどうか
//
type FeedEntry struct {
	Title     string       `json:"title"`
	Link      string       `json:"link"`
	Content   EntryContent `json:"content"`
	Published *time.Time   `json:"published,omitempty"`
	Source    string       `json:"source,omitempty"`
	Primary   bool         `json:"primary,omitempty"`
}

// KeywordSet はクエリを小文字化して空白で分割したトークン列
//
// ステミングや同義語展開は行わない（上流の要約エージェントの責務）。
type KeywordSet []string

// NewKeywordSet はクエリからキーワード列を作る
func NewKeywordSet(query string) KeywordSet {
	return KeywordSet(strings.Fields(strings.ToLower(query)))
}

// MatchDetails はスコアの内訳
type MatchDetails struct {
	TitleMatches   int `json:"titleMatches"`
	ContentMatches int `json:"contentMatches"`
	RecencyBonus   int `json:"recencyBonus"` // 0, 3, 5 のいずれか
}

// -----------------------------------------------------------------------------
// ScoredArticle - スコア付き記事
// -----------------------------------------------------------------------------
//
// 【スコアの計算式】
//   RelevanceScore = 10*TitleMatches + ContentMatches + RecencyBonus
//
// スコア0以下の記事は生成されない。1回の実行でリンクごとに最大1件。
//
type ScoredArticle struct {
	Title          string       `json:"title"`
	Content        string       `json:"content"`
	Link           string       `json:"link"`
	Published      *time.Time   `json:"publishDate,omitempty"`
	Source         string       `json:"source,omitempty"`
	PrimarySource  bool         `json:"isPrimarySource,omitempty"`
	RelevanceScore int          `json:"relevanceScore"`
	MatchDetails   MatchDetails `json:"matchDetails"`
}

// NoResults はマッチ0件を表す情報レコード（エラーではない）
type NoResults struct {
	Message string `json:"message"`
}

func newNoResults(query string) *NoResults {
	return &NoResults{Message: fmt.Sprintf("No articles found containing the query '%s'.", query)}
}

// RunStats は1回の実行の診断用カウンタ
type RunStats struct {
	Feeds      int `json:"feeds"`      // 読み込みを試みたフィード数
	FeedErrors int `json:"feedErrors"` // 読み込みに失敗したフィード数
	Candidates int `json:"candidates"` // 上限適用後のエントリ数（重複含む）
	Scheduled  int `json:"scheduled"`  // 重複排除後にワーカーへ投入した数
	Extracted  int `json:"extracted"`  // 本文抽出に成功した数
	Fallbacks  int `json:"fallbacks"`  // フィード本文にフォールバックした数
	Matched    int `json:"matched"`    // スコア>0の記事数（上位N切り詰め前）
	Dropped    int `json:"dropped"`    // 期限切れ・キャンセルで処理されなかった数
}

// -----------------------------------------------------------------------------
// RunResult - クエリ実行結果
// -----------------------------------------------------------------------------
//
// Articles と NoResults のどちらか一方だけが設定される。
// JSONでは記事配列、または [{"message": "..."}] の1要素配列として出力される。
// 消費側（要約エージェント）は両方の形を扱う必要がある。
//
type RunResult struct {
	Query     string
	Articles  []ScoredArticle
	NoResults *NoResults
	Stats     RunStats
}

// Empty はマッチ0件（NoResults）の実行かどうかを返す
func (r *RunResult) Empty() bool {
	return r.NoResults != nil
}

// MarshalJSON は要約エージェントが受け取る形（記事配列 or メッセージ1件の配列）で出力する
func (r *RunResult) MarshalJSON() ([]byte, error) {
	if r.NoResults != nil {
		return json.Marshal([]*NoResults{r.NoResults})
	}
	if r.Articles == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Articles)
}
