// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはパッケージ全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - ログ出力: 情報・警告・エラー・デバッグメッセージ（stderr）
//   - 文字列操作: 空白正規化、切り詰め、文字数カウント
//   - HTML操作: フィード本文のHTMLをプレーンテキストに変換
//   - URL操作: トラッキングパラメータ除去、ホスト名取得
//   - JSON操作: ファイル・標準出力への書き出し
//
// 【なぜ標準エラー出力にログを出すか】
//   標準出力（stdout）はJSON結果を次のコマンドに渡すために使用するため
//
// =============================================================================
package pipeline

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// logOutput はログの出力先（テストで差し替え可能）
var logOutput io.Writer = os.Stderr

// strictPolicy は全タグを除去するbluemondayポリシー（script/styleは中身ごと除去）
var strictPolicy = bluemonday.StrictPolicy()

// reBlockTags はブロック要素の開始・終了タグ（タグ除去時に単語が連結しないよう空白を挿入）
var reBlockTags = regexp.MustCompile(`(?i)<(/?(?:p|div|br|li|ul|ol|h[1-6]|tr|td|blockquote|section|article|figure|figcaption)\b)`)

// -----------------------------------------------------------------------------
// ログ出力関数
// -----------------------------------------------------------------------------

// infof は情報メッセージを書き出す（"INFO: メッセージ"）
func infof(format string, args ...any) {
	fmt.Fprintf(logOutput, "INFO: "+format+"\n", args...)
}

// warnf は警告メッセージを書き出す（"WARN: メッセージ"）
func warnf(format string, args ...any) {
	fmt.Fprintf(logOutput, "WARN: "+format+"\n", args...)
}

// errorf はエラーメッセージを書き出す（プログラムは終了しない）
func errorf(format string, args ...any) {
	fmt.Fprintf(logOutput, "ERROR: "+format+"\n", args...)
}

// debugf は DEBUG_SCRAPING=1 のときだけデバッグメッセージを書き出す
func debugf(format string, args ...any) {
	if os.Getenv("DEBUG_SCRAPING") == "" {
		return
	}
	fmt.Fprintf(logOutput, "[DEBUG] "+format+"\n", args...)
}

// -----------------------------------------------------------------------------
// 文字列操作関数
// -----------------------------------------------------------------------------

// normalizeWhitespace は連続する空白を単一スペースに正規化する
//
//	normalizeWhitespace("  hello   world  ")  // "hello world"
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// runeLen は文字数（バイト数ではない）を返す
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateString は文字列をmaxLen文字に切り詰める（超える場合は末尾"..."）
//
// 日本語などのマルチバイト文字も正しく処理する（runeを使用）
//
//	truncateString("Hello World", 8)  // "Hello..."
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// cleanHTML はフィード本文のHTMLをプレーンテキストに変換する
//
// 【処理の流れ】
//  1. ブロック要素の前に空白を挿入
//  2. bluemonday StrictPolicy で全タグ除去（script/styleは中身ごと）
//  3. HTMLエンティティをデコード（&amp; → & など）
//  4. 空白を正規化
func cleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	text := reBlockTags.ReplaceAllString(raw, " <$1")
	text = strictPolicy.Sanitize(text)
	text = html.UnescapeString(text)
	return normalizeWhitespace(text)
}

// -----------------------------------------------------------------------------
// URL操作関数
// -----------------------------------------------------------------------------

// normalizeLink はリンクの前後空白とUTMトラッキングパラメータを除去する
//
// リンクは重複排除のキーなので、utm_* 以外のパラメータは順序も表記もそのまま残す。
// URLとして解析できない場合は前後空白の除去だけ行う。
//
//	normalizeLink(" https://a.example/x?utm_source=rss&id=1 ")  // "https://a.example/x?id=1"
func normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if !strings.Contains(link, "utm_") {
		return link
	}
	if _, err := url.Parse(link); err != nil {
		return link
	}

	base, query, ok := strings.Cut(link, "?")
	if !ok {
		return link
	}
	fragment := ""
	if i := strings.Index(query, "#"); i >= 0 {
		query, fragment = query[:i], query[i:]
	}

	pairs := strings.Split(query, "&")
	kept := make([]string, 0, len(pairs))
	for _, p := range pairs {
		key, _, _ := strings.Cut(p, "=")
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == len(pairs) {
		return link
	}
	if len(kept) == 0 {
		return base + fragment
	}
	return base + "?" + strings.Join(kept, "&") + fragment
}

// hostName はURLのホスト名を返す（解析できない場合は入力をそのまま返す）
func hostName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// -----------------------------------------------------------------------------
// JSON操作関数
// -----------------------------------------------------------------------------

// WriteJSON は任意のデータを2スペースインデントのJSONで書き出す
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJSONFile は任意のデータをJSONファイルとして保存する（0o644）
func WriteJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// readJSONFile はJSONファイルを読み込んで指定した型に変換する
func readJSONFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
