package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasboom/portfolio/internal/models"
	"github.com/thomasboom/portfolio/internal/services"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBPosts(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	posts, err := db.Posts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	require.NoError(t, db.AddPost(ctx, models.Post{Slug: "older", Title: "Older", Date: "2024-01-02"}))
	require.NoError(t, db.AddPost(ctx, models.Post{Slug: "newer", Title: "Newer", Date: "2025-06-01", Tags: []string{"go"}}))

	posts, err = db.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].Slug)
	assert.Equal(t, "older", posts[1].Slug)

	post, err := db.Post(ctx, "newer")
	require.NoError(t, err)
	assert.Equal(t, "Newer", post.Title)
	assert.Equal(t, []string{"go"}, post.Tags)

	_, err = db.Post(ctx, "missing")
	require.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestBoltDBAddPostReplaces(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	require.NoError(t, db.AddPost(ctx, models.Post{Slug: "post", Title: "First"}))
	require.NoError(t, db.AddPost(ctx, models.Post{Slug: "post", Title: "Second"}))

	posts, err := db.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Second", posts[0].Title)

	require.Error(t, db.AddPost(ctx, models.Post{Title: "no slug"}))
}

func TestBoltDBImportPosts(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	n, err := db.ImportPosts(ctx, []models.Post{
		{Title: "Hello World", Content: "short"},
		{Slug: "explicit", Title: "Explicit", ReadTime: "4 min read"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	post, err := db.Post(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "1 min read", post.ReadTime)

	post, err = db.Post(ctx, "explicit")
	require.NoError(t, err)
	assert.Equal(t, "4 min read", post.ReadTime)

	_, err = db.ImportPosts(ctx, []models.Post{{Content: "untitled"}})
	require.Error(t, err)
}
