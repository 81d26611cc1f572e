package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("# Title\n\n<script>alert(1)</script>\n\n![img](https://example.com/a.png)")

	assert.Contains(t, out, "<h1")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)
}

func TestRenderMarkdownKeepsCodeLanguage(t *testing.T) {
	out := RenderMarkdown("```go\nfmt.Println(1)\n```")
	assert.Contains(t, out, `class="language-go"`)
	assert.Contains(t, out, "code-block")
}

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "Hello world", StripMarkdown("**Hello** _world_", 0))
	assert.Equal(t, "Hello...", StripMarkdown("Hello world", 5))
}

func TestCalculateScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	quiet := CalculateScore(RankInput{CreatedAt: now}, now)
	assert.Equal(t, 0.0, quiet)

	busy := CalculateScore(RankInput{CreatedAt: now, Upvotes: 10, Answers: 3}, now)
	older := CalculateScore(RankInput{CreatedAt: now.Add(-48 * time.Hour), Upvotes: 10, Answers: 3}, now)
	assert.Greater(t, busy, older)

	downvoted := CalculateScore(RankInput{CreatedAt: now, Downvotes: 50}, now)
	assert.Equal(t, 0.0, downvoted)
}

func TestGetUserLevel(t *testing.T) {
	name, _ := GetUserLevel(0)
	assert.Equal(t, "Newcomer", name)
	name, _ = GetUserLevel(15)
	assert.Equal(t, "Learner", name)
	name, badge := GetUserLevel(1200)
	assert.Equal(t, "Guru", name)
	assert.Equal(t, "gold", badge)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestTTLCacheExpires(t *testing.T) {
	c, err := NewTTLCache[int](4, 50*time.Millisecond)
	require.NoError(t, err)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTTLCacheEvictsLeastRecent(t *testing.T) {
	c, err := NewTTLCache[int](2, time.Minute)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	c.Purge()
	_, ok = c.Get("c")
	assert.False(t, ok)

	_, err = NewTTLCache[int](0, time.Minute)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 20, Clamp(0, 20, 1, 50))
	assert.Equal(t, 50, Clamp(500, 20, 1, 50))
	assert.Equal(t, 7, Clamp(7, 20, 1, 50))
}
