package pipeline

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailSender_Validation(t *testing.T) {
	_, err := NewEmailSender("", "pw", "to@example.com")
	assert.Error(t, err)
	_, err = NewEmailSender("from@example.com", "", "to@example.com")
	assert.Error(t, err)
	_, err = NewEmailSender("from@example.com", "pw", " , ")
	assert.Error(t, err)

	es, err := NewEmailSender("from@example.com", "pw", "a@example.com, b@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, es.config.To)
	assert.Equal(t, "smtp.gmail.com", es.config.SMTPHost)
}

func TestNewEmailSenderFromEnv(t *testing.T) {
	t.Setenv("EMAIL_FROM", "from@example.com")
	t.Setenv("EMAIL_PASSWORD", "pw")
	t.Setenv("EMAIL_TO", "to@example.com")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")

	es, err := NewEmailSenderFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", es.config.SMTPHost)
	assert.Equal(t, "2525", es.config.SMTPPort)
}

func TestGenerateDigestBody(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	pub := now.Add(-2 * time.Hour)

	t.Run("articles", func(t *testing.T) {
		res := &RunResult{Query: "ocean warming", Articles: []ScoredArticle{{
			Title:          "Ocean Warming Accelerates",
			Content:        strings.Repeat("word ", 200),
			Link:           "https://a.example/ocean",
			Published:      &pub,
			Source:         "NYT Science",
			RelevanceScore: 29,
			MatchDetails:   MatchDetails{TitleMatches: 2, ContentMatches: 4, RecencyBonus: 5},
		}}}

		body := generateDigestBody(res, now)
		assert.Contains(t, body, "Query: ocean warming")
		assert.Contains(t, body, "Total Articles: 1")
		assert.Contains(t, body, `[1] Title: "Ocean Warming Accelerates"`)
		assert.Contains(t, body, "Source: NYT Science")
		assert.Contains(t, body, "URL: https://a.example/ocean")
		assert.Contains(t, body, "Published: 2026-01-05T10:00:00Z")
		assert.Contains(t, body, "Score: 29 (title 2, content 4, recency +5)")
		// 抜粋は600文字で切り詰め
		assert.Contains(t, body, "word wo...\n")
		assert.NotContains(t, body, strings.Repeat("word ", 130))
	})

	t.Run("no results", func(t *testing.T) {
		res := &RunResult{Query: "quasar", NoResults: newNoResults("quasar")}
		body := generateDigestBody(res, now)
		assert.Contains(t, body, "No articles found containing the query 'quasar'.")
		assert.NotContains(t, body, "Total Articles")
	})
}

func TestBuildEmailMessage(t *testing.T) {
	es, err := NewEmailSender("from@example.com", "pw", "a@example.com,b@example.com")
	require.NoError(t, err)

	msg := string(es.buildEmailMessage("Subject line", "hello"))
	assert.True(t, strings.HasPrefix(msg, "From: from@example.com\r\n"))
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: Subject line\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\nhello")
}

func TestSendDigest_Retry(t *testing.T) {
	silenceLogs(t)
	es, err := NewEmailSender("from@example.com", "pw", "to@example.com")
	require.NoError(t, err)
	es.backoff = func(int) time.Duration { return 0 }

	var attempts int
	var gotAddr string
	es.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		attempts++
		gotAddr = addr
		if attempts < 3 {
			return errors.New("421 try again later")
		}
		return nil
	}

	res := &RunResult{Query: "q", NoResults: newNoResults("q")}
	require.NoError(t, es.SendDigest(context.Background(), res))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "smtp.gmail.com:587", gotAddr)
}

func TestSendDigest_GivesUp(t *testing.T) {
	silenceLogs(t)
	es, err := NewEmailSender("from@example.com", "pw", "to@example.com")
	require.NoError(t, err)
	es.backoff = func(int) time.Duration { return 0 }

	var attempts int
	es.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		attempts++
		return errors.New("auth failed")
	}

	err = es.SendDigest(context.Background(), &RunResult{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 3, attempts)

	assert.Error(t, es.SendDigest(context.Background(), nil))
}
