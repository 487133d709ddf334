package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var scoreNow = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := scoreNow.Add(-d)
	return &t
}

func TestScore_OceanWarming(t *testing.T) {
	entry := FeedEntry{
		Title:     "Ocean Warming Accelerates",
		Link:      "https://news.example/ocean",
		Published: ago(2 * time.Hour),
		Source:    "NYT Science",
	}
	content := "Warming seas: the warming trend shows warming in every ocean basin."

	got, ok := Score(entry, content, NewKeywordSet("ocean warming"), scoreNow)
	assert.True(t, ok)
	assert.Equal(t, MatchDetails{TitleMatches: 2, ContentMatches: 4, RecencyBonus: 5}, got.MatchDetails)
	assert.Equal(t, 29, got.RelevanceScore)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, "NYT Science", got.Source)
}

func TestScore_Formula(t *testing.T) {
	// 任意の入力で score = 10*title + content + recency
	cases := []struct {
		title, content string
		published      *time.Time
	}{
		{"mars mars", "mars", ago(30 * time.Hour)},
		{"nothing", "mars rover on mars", nil},
		{"Mars", "", ago(10 * 24 * time.Hour)},
	}
	for _, c := range cases {
		entry := FeedEntry{Title: c.title, Link: "https://x.example", Published: c.published}
		got, ok := Score(entry, c.content, NewKeywordSet("mars"), scoreNow)
		assert.True(t, ok, c.title)
		d := got.MatchDetails
		assert.Equal(t, 10*d.TitleMatches+d.ContentMatches+d.RecencyBonus, got.RelevanceScore, c.title)
	}
}

func TestScore_Rejected(t *testing.T) {
	kw := NewKeywordSet("quasar")

	_, ok := Score(FeedEntry{Title: "quasar", Link: ""}, "quasar", kw, scoreNow)
	assert.False(t, ok, "entries without link are never scored")

	_, ok = Score(FeedEntry{Title: "galaxy", Link: "https://x.example", Published: ago(30 * 24 * time.Hour)}, "stars", kw, scoreNow)
	assert.False(t, ok, "zero score is filtered")
}

func TestScore_RecencyAlone(t *testing.T) {
	// キーワードに一致しなくても新しい記事はボーナスだけで残る
	got, ok := Score(FeedEntry{Title: "galaxy", Link: "https://x.example", Published: ago(time.Hour)}, "stars", NewKeywordSet("quasar"), scoreNow)
	assert.True(t, ok)
	assert.Equal(t, 5, got.RelevanceScore)
}

func TestRecencyBonus(t *testing.T) {
	tests := []struct {
		name      string
		published *time.Time
		want      int
	}{
		{"missing", nil, 0},
		{"just now", ago(0), 5},
		{"23h59m", ago(24*time.Hour - time.Minute), 5},
		{"exactly 24h", ago(24 * time.Hour), 3},
		{"6 days", ago(6 * 24 * time.Hour), 3},
		{"exactly 168h", ago(168 * time.Hour), 0},
		{"a month", ago(30 * 24 * time.Hour), 0},
		{"future", ago(-time.Hour), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecencyBonus(tt.published, scoreNow))
		})
	}
}

func TestCountMatches(t *testing.T) {
	kw := NewKeywordSet("warming ocean")
	assert.Equal(t, 3, CountMatches("Warming, WARMINGS and ocean", kw))
	assert.Equal(t, 0, CountMatches("", kw))
	assert.Equal(t, 0, CountMatches("anything", nil))
	// 重ならない出現のみ数える
	assert.Equal(t, 2, CountMatches("aaaa", KeywordSet{"aa"}))
}
