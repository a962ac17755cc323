package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasboom/portfolio/internal/services"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPosts(t *testing.T) {
	t.Run("yaml list", func(t *testing.T) {
		path := writeFile(t, "posts.yaml", `
- slug: offline-first
  title: Offline first
  date: "2025-01-10"
  tags: [flutter, design]
  content: |
    # Heading
- title: Second
`)
		posts, err := services.LoadPosts(path)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "offline-first", posts[0].Slug)
		assert.Equal(t, []string{"flutter", "design"}, posts[0].Tags)
		assert.Equal(t, "# Heading\n", posts[0].Content)
	})

	t.Run("single json post from editor", func(t *testing.T) {
		path := writeFile(t, "post.json", `{"slug":"a","title":"A","readTime":"1 min read","tags":["x"]}`)
		posts, err := services.LoadPosts(path)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "1 min read", posts[0].ReadTime)
	})

	t.Run("json list", func(t *testing.T) {
		path := writeFile(t, "posts.json", `[{"slug":"a"},{"slug":"b"}]`)
		posts, err := services.LoadPosts(path)
		require.NoError(t, err)
		assert.Len(t, posts, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := services.LoadPosts(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
