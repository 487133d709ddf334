// =============================================================================
// Lambda: news-search
// =============================================================================
//
// 1回の呼び出しで1クエリを実行し、上位の記事を返すLambda関数
//
// イベント:
//   {"query": "ocean warming", "sendEmail": true}
//
// 環境変数:
//   - FEEDS:          フィードURL（カンマ区切り、デフォルト: 組み込みのフィード）
//   - WORKERS:        抽出の並列数 (デフォルト: 8)
//   - MAX_RESULTS:    返す記事の上限 (デフォルト: 10)
//   - RUN_TIMEOUT:    実行全体の期限 (例: 90s、0=期限なし、未指定: Lambdaの残り時間)
//   - SEND_EMAIL:     "true" ならイベントの指定がなくてもダイジェストを送信
//   - EMAIL_FROM:     ダイジェスト送信元 (メール送信時のみ必須)
//   - EMAIL_PASSWORD: Gmailアプリパスワード (メール送信時のみ必須)
//   - EMAIL_TO:       ダイジェスト送信先 (メール送信時のみ必須)
//
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"news-relay/internal/pipeline"
)

// Event はLambdaの入力イベント
type Event struct {
	Query     string `json:"query"`
	SendEmail bool   `json:"sendEmail"`
}

// Response はLambdaレスポンス
type Response struct {
	StatusCode int                      `json:"statusCode"`
	Message    string                   `json:"message"`
	Matched    int                      `json:"matched"`
	Articles   []pipeline.ScoredArticle `json:"articles,omitempty"`
}

// LambdaConfig は環境変数から読み込む設定
type LambdaConfig struct {
	Pipeline      pipeline.Config
	SendEmail     bool
	RunTimeoutSet bool // RUN_TIMEOUT が明示的に指定されたか（0も含む）
}

// deadlineMargin はLambdaのタイムアウト前にランキングを終えるための余裕
const deadlineMargin = 10 * time.Second

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event Event) (Response, error) {
	log.Printf("Starting news-search Lambda (query=%q)...", event.Query)

	// 1. 環境変数から設定を読み込む
	lc := loadConfig()
	sendEmail := lc.SendEmail || event.SendEmail

	cfg := lc.runConfig(ctx)
	log.Printf("Config: feeds=%d, workers=%d, maxResults=%d, runTimeout=%s",
		len(cfg.Feeds), cfg.Workers, cfg.MaxResults, cfg.RunTimeout)

	orch, err := pipeline.New(cfg)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	// 2. ランキング実行
	result, err := orch.Run(ctx, event.Query)
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		return Response{StatusCode: 400, Message: "query is required"}, nil
	}
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	resp := Response{StatusCode: 200, Matched: len(result.Articles), Articles: result.Articles}
	if result.Empty() {
		resp.Message = result.NoResults.Message
	} else {
		resp.Message = fmt.Sprintf("Found %d articles for %q", len(result.Articles), event.Query)
	}
	log.Printf("%s (stats: %+v)", resp.Message, result.Stats)

	// 3. ダイジェスト送信（失敗してもランキング結果は返す）
	if sendEmail {
		sendDigest(result)
	}
	return resp, nil
}

// runConfig は呼び出しごとのパイプライン設定を返す
//
// RUN_TIMEOUT 未指定のときだけLambdaの残り時間から期限を決める（0の明示指定は期限なし）。
func (lc LambdaConfig) runConfig(ctx context.Context) pipeline.Config {
	cfg := lc.Pipeline
	if !lc.RunTimeoutSet {
		cfg.RunTimeout = lambdaRunTimeout(ctx)
	}
	return cfg
}

// lambdaRunTimeout はLambdaの残り時間から実行期限を決める（期限がなければ0）
func lambdaRunTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	if remaining := time.Until(deadline) - deadlineMargin; remaining > 0 {
		return remaining
	}
	return 0
}

// loadConfig は環境変数から設定を読み込む
func loadConfig() LambdaConfig {
	cfg := pipeline.DefaultConfig()
	runTimeoutSet := false

	if feeds := pipeline.ParseFeedList(os.Getenv("FEEDS")); len(feeds) > 0 {
		cfg.Feeds = feeds
	}
	if w := os.Getenv("WORKERS"); w != "" {
		if val, err := strconv.Atoi(w); err == nil && val > 0 {
			cfg.Workers = val
		}
	}
	if m := os.Getenv("MAX_RESULTS"); m != "" {
		if val, err := strconv.Atoi(m); err == nil && val > 0 {
			cfg.MaxResults = val
		}
	}
	if rt := os.Getenv("RUN_TIMEOUT"); rt != "" {
		if val, err := time.ParseDuration(rt); err == nil && val >= 0 {
			cfg.RunTimeout = val
			runTimeoutSet = true
		}
	}

	return LambdaConfig{
		Pipeline:      cfg,
		SendEmail:     strings.EqualFold(os.Getenv("SEND_EMAIL"), "true"),
		RunTimeoutSet: runTimeoutSet,
	}
}

// sendDigest はダイジェストメールを送信する
// EMAIL_FROM, EMAIL_PASSWORD, EMAIL_TO が設定されていない場合はスキップ
func sendDigest(result *pipeline.RunResult) {
	sender, err := pipeline.NewEmailSenderFromEnv()
	if err != nil {
		log.Printf("Email not configured, skipping digest: %v", err)
		return
	}
	// 呼び出しのcontextは期限切れの可能性があるため使わない
	if err := sender.SendDigest(context.Background(), result); err != nil {
		log.Printf("Failed to send digest email: %v", err)
		return
	}
	log.Println("Digest email sent")
}

func main() {
	lambda.Start(Handler)
}
