package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasboom/portfolio/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":           "hello-world",
		"  Going   Offline  ":   "going-offline",
		"Flutter\tand\nSupabase": "flutter-and-supabase",
		"single":                "single",
	}
	for in, want := range tests {
		assert.Equal(t, want, models.Slugify(in), in)
	}
}

func TestReadTime(t *testing.T) {
	tests := []struct {
		words int
		want  string
	}{
		{words: 0, want: "1 min read"},
		{words: 1, want: "1 min read"},
		{words: 200, want: "1 min read"},
		{words: 201, want: "2 min read"},
		{words: 1000, want: "5 min read"},
	}
	for _, tt := range tests {
		content := strings.TrimSpace(strings.Repeat("word ", tt.words))
		assert.Equal(t, tt.want, models.ReadTime(content), "%d words", tt.words)
	}
}

func TestNewPost(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 4, 5, 0, time.UTC)

	post, err := models.NewPost(models.PostDraft{
		Title:   "Self Hosting on Ubuntu",
		Excerpt: "Notes",
		Content: "Some *markdown* body",
		Tags:    " linux, , self-hosting ,ubuntu",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "self-hosting-on-ubuntu", post.Slug)
	assert.Equal(t, "2025-03-09", post.Date)
	assert.Equal(t, "1 min read", post.ReadTime)
	assert.Equal(t, []string{"linux", "self-hosting", "ubuntu"}, post.Tags)

	post, err = models.NewPost(models.PostDraft{
		Title:    "Custom",
		Slug:     "my-slug",
		Content:  "body",
		ReadTime: "3 min read",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "my-slug", post.Slug)
	assert.Equal(t, "3 min read", post.ReadTime)
	assert.Empty(t, post.Tags)
}

func TestNewPostValidation(t *testing.T) {
	_, err := models.NewPost(models.PostDraft{Content: "body"}, time.Now())
	require.Error(t, err)

	_, err = models.NewPost(models.PostDraft{Title: "title"}, time.Now())
	require.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := models.RenderMarkdown("Hello **world**\n\n`code` <script>alert(1)</script>")
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<strong>world</strong>")
	assert.Contains(t, html, "<code>code</code>")
	assert.NotContains(t, html, "<script>")
}
