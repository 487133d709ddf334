// =============================================================================
// extractor.go - 記事本文エクストラクタ
// =============================================================================
//
// このファイルは記事URLから本文テキストを取り出す処理を提供します。
// フィードの要約は途中で切れていることが多いため、関連度スコアリングには
// 記事ページ本体のテキストが必要です。
//
// =============================================================================
// 【抽出戦略】（先に成功したものを採用、各段階で100文字超を要求）
// =============================================================================
//
//   1. readability（go-readability）
//      - ナビ・広告・署名などの定型部分を除いた本文を抽出
//      - タイムアウト15秒、ダウンロード後に1秒待機（サイトへの配慮）
//      - PDFの場合は ledongthuc/pdf でテキスト化
//
//   2. scrape（goquery）
//      - ブラウザ風User-Agentで直接GET（タイムアウト10秒）
//      - script/style/nav/header/footer/広告を除去
//      - 本文領域のセレクタを優先順に試行
//      - 最後の手段: 全<p>要素のテキストを連結
//
//   すべて失敗した場合は空文字列を返し、呼び出し側がフィード本文にフォールバックする。
//
// 【エラーの扱い】
//   Extract はエラーを返さない。通信・解析エラーはすべてここで握りつぶし、
//   空文字列（＝抽出失敗）に変換する。
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxBodyBytes は記事ページの読み込み上限
const maxBodyBytes = 10 << 20

// contentSelectors は本文領域のCSSセレクタ（優先順）
var contentSelectors = []string{
	"article",
	".article-content",
	".story-content",
	"[role='main']",
	".main-content",
	"#main-content",
	".post-content",
	".entry-content",
}

// noiseSelectors は本文ではない要素（スクレイピング前に除去）
const noiseSelectors = "script, style, nav, header, footer, ads, .ad, .ads, .advert, .advertisement, .ad-container, [class^='ad-'], [id^='ad-']"

// ContentExtractor は記事URLから本文を取り出す（空文字列は失敗を意味する）
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) string
}

// extractStrategy は1つの抽出方法
type extractStrategy interface {
	Name() string
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Extractor は抽出戦略を順に試すContentExtractor実装
type Extractor struct {
	strategies []extractStrategy
	minLength  int
}

// NewExtractor は設定から標準の2段階エクストラクタを作成する
func NewExtractor(cfg Config, client *http.Client) *Extractor {
	if client == nil {
		client = newHTTPClient()
	}
	f := &pageFetcher{client: client, userAgent: cfg.UserAgent}
	return &Extractor{
		strategies: []extractStrategy{
			&readabilityStrategy{fetcher: f, timeout: cfg.PrimaryTimeout, politeDelay: cfg.PoliteDelay},
			&scrapeStrategy{fetcher: f, timeout: cfg.FallbackTimeout, minLength: cfg.MinContentLength},
		},
		minLength: cfg.MinContentLength,
	}
}

// Extract は本文を返す。十分な長さの本文が得られなければ空文字列を返す。
func (e *Extractor) Extract(ctx context.Context, pageURL string) (content string) {
	defer func() {
		if r := recover(); r != nil {
			warnf("extract %s: recovered from panic: %v", pageURL, r)
			content = ""
		}
	}()

	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return ""
		}
		text, err := s.Extract(ctx, pageURL)
		if err != nil {
			debugf("extract %s: %s failed: %v", pageURL, s.Name(), err)
			continue
		}
		text = strings.TrimSpace(text)
		if n := runeLen(text); n > e.minLength {
			debugf("extract %s: %s yielded %d chars", pageURL, s.Name(), n)
			return text
		}
		debugf("extract %s: %s yielded too little text", pageURL, s.Name())
	}
	return ""
}

// -----------------------------------------------------------------------------
// HTTP取得
// -----------------------------------------------------------------------------

// newHTTPClient はコネクションプーリング有効な共有HTTPクライアントを返す
//
// タイムアウトはリクエストごとにcontextで設定する。
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

type pageFetcher struct {
	client    *http.Client
	userAgent string
}

// page はダウンロードしたページ
type page struct {
	url         *url.URL
	body        []byte
	contentType string
}

// get はタイムアウト付きでページをダウンロードする（200番台以外はエラー）
func (f *pageFetcher) get(ctx context.Context, pageURL string, timeout time.Duration) (*page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	// リダイレクト後のURLを相対リンク解決に使う
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL
	}
	return &page{url: u, body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

func (p *page) isPDF() bool {
	return strings.Contains(strings.ToLower(p.contentType), "application/pdf") ||
		bytes.HasPrefix(p.body, []byte("%PDF-"))
}

// sleepContext はdの間待機する（contextがキャンセルされたら即座に戻る）
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// 戦略1: readability
// -----------------------------------------------------------------------------

type readabilityStrategy struct {
	fetcher     *pageFetcher
	timeout     time.Duration
	politeDelay time.Duration
}

func (s *readabilityStrategy) Name() string { return "readability" }

func (s *readabilityStrategy) Extract(ctx context.Context, pageURL string) (string, error) {
	p, err := s.fetcher.get(ctx, pageURL, s.timeout)
	if err != nil {
		return "", err
	}
	// レート制限への配慮（ダウンロード後に待機）
	if err := sleepContext(ctx, s.politeDelay); err != nil {
		return "", err
	}

	if p.isPDF() {
		return pdfText(p.body)
	}

	article, err := readability.FromReader(bytes.NewReader(p.body), p.url)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return "", fmt.Errorf("readability render: %w", err)
	}
	return cleanExtractedText(buf.String()), nil
}

// pdfText はPDFの全ページからテキストを取り出す
func pdfText(data []byte) (text string, err error) {
	defer func() {
		// 壊れたPDFでpanicすることがある
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		pg := r.Page(i)
		if pg.V.IsNull() {
			continue
		}
		t, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	return normalizeWhitespace(sb.String()), nil
}

// -----------------------------------------------------------------------------
// 戦略2: スクレイピング（セレクタ → 段落）
// -----------------------------------------------------------------------------

type scrapeStrategy struct {
	fetcher   *pageFetcher
	timeout   time.Duration
	minLength int
}

func (s *scrapeStrategy) Name() string { return "scrape" }

func (s *scrapeStrategy) Extract(ctx context.Context, pageURL string) (string, error) {
	p, err := s.fetcher.get(ctx, pageURL, s.timeout)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return scrapeDocument(doc, s.minLength), nil
}

// scrapeDocument は不要要素を除去した上で本文を探す
//
// 【探索順】
//  1. contentSelectors の各セレクタで最初に一致した要素
//     （テキストがminLengthを超えた時点で採用）
//  2. 全<p>要素のテキストを改行で連結
func scrapeDocument(doc *goquery.Document, minLength int) string {
	doc.Find(noiseSelectors).Remove()

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := nodeText(node)
		if runeLen(text) > minLength {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	return strings.Join(paragraphs, "\n")
}

// nodeText はテキストノードをトリムして改行区切りで連結する
func nodeText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// cleanExtractedText はタブ・連続空白・空行を除去する
func cleanExtractedText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
