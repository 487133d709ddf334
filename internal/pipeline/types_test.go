package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryContent_String(t *testing.T) {
	tests := []struct {
		name    string
		content EntryContent
		want    string
	}{
		{"text", TextContent("plain body"), "plain body"},
		{"fragments joined by newline", FragmentContent("a", "b"), "a\nb"},
		{"empty fragments dropped", FragmentContent(" a ", "", "  ", "b"), "a\nb"},
		{"zero value", EntryContent{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.content.String())
		})
	}
}

func TestEntryContent_UnmarshalJSON(t *testing.T) {
	var c EntryContent
	require.NoError(t, json.Unmarshal([]byte(`"hello"`), &c))
	assert.False(t, c.IsFragments())
	assert.Equal(t, "hello", c.String())

	require.NoError(t, json.Unmarshal([]byte(`["a", "b", 3]`), &c))
	assert.True(t, c.IsFragments())
	assert.Equal(t, "a\nb\n3", c.String())

	assert.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &c))
}

func TestEntryContent_MarshalKeepsShape(t *testing.T) {
	b, err := json.Marshal(FragmentContent("a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(b))

	b, err = json.Marshal(TextContent("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `"x"`, string(b))
}

func TestNewKeywordSet(t *testing.T) {
	assert.Equal(t, KeywordSet{"ocean", "warming"}, NewKeywordSet("  Ocean   WARMING "))
	assert.Empty(t, NewKeywordSet("   "))
}

func TestRunResult_MarshalJSON(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		r := &RunResult{Query: "quasar", NoResults: newNoResults("quasar")}
		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"message":"No articles found containing the query 'quasar'."}]`, string(b))
		assert.True(t, r.Empty())
	})

	t.Run("articles", func(t *testing.T) {
		pub := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
		r := &RunResult{Articles: []ScoredArticle{{
			Title:          "Ocean Warming",
			Content:        "body",
			Link:           "https://a.example/1",
			Published:      &pub,
			Source:         "A",
			PrimarySource:  true,
			RelevanceScore: 29,
			MatchDetails:   MatchDetails{TitleMatches: 2, ContentMatches: 4, RecencyBonus: 5},
		}}}
		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `[{
			"title": "Ocean Warming",
			"content": "body",
			"link": "https://a.example/1",
			"publishDate": "2026-01-05T10:00:00Z",
			"source": "A",
			"isPrimarySource": true,
			"relevanceScore": 29,
			"matchDetails": {"titleMatches": 2, "contentMatches": 4, "recencyBonus": 5}
		}]`, string(b))
		assert.False(t, r.Empty())
	})

	t.Run("nil articles", func(t *testing.T) {
		b, err := json.Marshal(&RunResult{})
		require.NoError(t, err)
		assert.Equal(t, "[]", string(b))
	})
}
