// =============================================================================
// email.go - ダイジェストメール送信
// =============================================================================
//
// このファイルはSMTPを使用してクエリ結果のダイジェストを送信します。
//
// =============================================================================
// 【処理の流れ】
// =============================================================================
//
// 1. RunResult からプレーンテキストのメール本文を生成
//    （記事ごとにタイトル・ソース・URL・スコア・本文の抜粋）
// 2. RFC 5322準拠のメールメッセージを構築
// 3. SMTP経由で送信（リトライ付き）
//
// マッチ0件の実行でも、情報メッセージだけのメールを送る。
//
// =============================================================================
// 【必要な環境変数】
// =============================================================================
//
//   EMAIL_FROM     - 送信元メールアドレス
//   EMAIL_PASSWORD - SMTPパスワード（Gmailの場合はアプリパスワード）
//   EMAIL_TO       - 送信先メールアドレス（カンマ区切りで複数可）
//   SMTP_HOST      - SMTPサーバー（任意、デフォルト: smtp.gmail.com）
//   SMTP_PORT      - SMTPポート（任意、デフォルト: 587）
//
// 【リトライについて】
//   リトライはメール送信のみ。記事の取得は1回きりでリトライしない。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// digestExcerptLen は本文抜粋の最大文字数
const digestExcerptLen = 600

// EmailConfig はメール送信の設定を保持する
type EmailConfig struct {
	From     string   // 送信元メールアドレス
	Password string   // SMTPパスワード
	To       []string // 送信先メールアドレス（複数可）
	SMTPHost string   // SMTPサーバーホスト
	SMTPPort string   // SMTPポート
}

// EmailSender はメール送信を担当する
type EmailSender struct {
	config     EmailConfig
	maxRetries int
	backoff    func(attempt int) time.Duration
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender は新しいメール送信者を作成する
//
// 引数:
//
//	from:     送信元メールアドレス
//	password: SMTPパスワード
//	to:       送信先メールアドレス（カンマ区切りで複数可）
func NewEmailSender(from, password, to string) (*EmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required")
	}
	if password == "" {
		return nil, fmt.Errorf("EMAIL_PASSWORD is required")
	}
	if to == "" {
		return nil, fmt.Errorf("EMAIL_TO is required")
	}

	var toList []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			toList = append(toList, addr)
		}
	}
	if len(toList) == 0 {
		return nil, fmt.Errorf("EMAIL_TO has no valid address")
	}

	return &EmailSender{
		config: EmailConfig{
			From:     from,
			Password: password,
			To:       toList,
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "587", // TLSポート
		},
		maxRetries: 3,
		// 指数バックオフ: 2秒 → 4秒
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
		sendMail: smtp.SendMail,
	}, nil
}

// NewEmailSenderFromEnv は環境変数から送信者を作成する
func NewEmailSenderFromEnv() (*EmailSender, error) {
	es, err := NewEmailSender(os.Getenv("EMAIL_FROM"), os.Getenv("EMAIL_PASSWORD"), os.Getenv("EMAIL_TO"))
	if err != nil {
		return nil, err
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		es.config.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		es.config.SMTPPort = port
	}
	return es, nil
}

// SendDigest はクエリ結果のダイジェストメールを送信する
func (es *EmailSender) SendDigest(ctx context.Context, result *RunResult) error {
	if result == nil {
		return errors.New("no result to send")
	}

	// 例: "News Digest: ocean warming - 2026-01-05 (7 articles)"
	subject := fmt.Sprintf("News Digest: %s - %s (%d articles)",
		result.Query, time.Now().Format("2006-01-02"), len(result.Articles))

	msg := es.buildEmailMessage(subject, generateDigestBody(result, time.Now()))
	return es.sendWithRetry(ctx, msg)
}

// generateDigestBody はプレーンテキストのメール本文を生成する
//
// 【出力フォーマット】
//
//	News Digest
//	Query: ocean warming
//	Generated: 2026-01-05 12:00:00
//
//	========================================
//	Total Articles: 7
//	========================================
//
//	[1] Title: "Ocean Warming Accelerates"
//	    Source: NYT Science
//	    URL: https://...
//	    Published: 2026-01-05T10:00:00Z
//	    Score: 29 (title 2, content 4, recency +5)
//
//	    記事本文の抜粋...
//
//	----------------------------------------
func generateDigestBody(result *RunResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("News Digest\n")
	sb.WriteString(fmt.Sprintf("Query: %s\n", result.Query))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format("2006-01-02 15:04:05")))

	if result.NoResults != nil {
		sb.WriteString(result.NoResults.Message + "\n")
		sb.WriteString("\nGenerated by news-relay\n")
		return sb.String()
	}

	sb.WriteString("========================================\n")
	sb.WriteString(fmt.Sprintf("Total Articles: %d\n", len(result.Articles)))
	sb.WriteString("========================================\n\n")

	for i, a := range result.Articles {
		sb.WriteString(fmt.Sprintf("[%d] Title: \"%s\"\n", i+1, a.Title))
		if a.Source != "" {
			sb.WriteString(fmt.Sprintf("    Source: %s\n", a.Source))
		}
		sb.WriteString(fmt.Sprintf("    URL: %s\n", a.Link))
		if a.Published != nil {
			sb.WriteString(fmt.Sprintf("    Published: %s\n", a.Published.Format(time.RFC3339)))
		}
		sb.WriteString(fmt.Sprintf("    Score: %d (title %d, content %d, recency +%d)\n",
			a.RelevanceScore, a.MatchDetails.TitleMatches, a.MatchDetails.ContentMatches, a.MatchDetails.RecencyBonus))
		sb.WriteString("\n")

		if excerpt := truncateString(normalizeWhitespace(a.Content), digestExcerptLen); excerpt != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", excerpt))
		} else {
			sb.WriteString("    (No content available)\n")
		}

		sb.WriteString("\n")
		sb.WriteString("----------------------------------------\n\n")
	}

	sb.WriteString("\n")
	sb.WriteString("Generated by news-relay\n")
	return sb.String()
}

// buildEmailMessage はRFC 5322準拠のメールメッセージを構築する
//
// 注意: ヘッダーと本文は空行（\r\n）で区切る
func (es *EmailSender) buildEmailMessage(subject, body string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", es.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(es.config.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return []byte(msg.String())
}

// sendWithRetry は指数バックオフでリトライしながらメールを送信する
func (es *EmailSender) sendWithRetry(ctx context.Context, msg []byte) error {
	var lastErr error

	for i := 0; i < es.maxRetries; i++ {
		if i > 0 {
			wait := es.backoff(i)
			infof("Retrying email send in %v...", wait)
			if err := sleepContext(ctx, wait); err != nil {
				return fmt.Errorf("email send canceled: %w", err)
			}
		}

		err := es.send(msg)
		if err == nil {
			return nil
		}

		lastErr = err
		warnf("Email send failed (attempt %d/%d): %v", i+1, es.maxRetries, err)
	}

	return fmt.Errorf("failed to send email after %d retries: %w", es.maxRetries, lastErr)
}

// send はSMTP（PLAIN認証）でメールを送信する
func (es *EmailSender) send(msg []byte) error {
	auth := smtp.PlainAuth("", es.config.From, es.config.Password, es.config.SMTPHost)
	addr := es.config.SMTPHost + ":" + es.config.SMTPPort

	if err := es.sendMail(addr, auth, es.config.From, es.config.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}
	return nil
}
