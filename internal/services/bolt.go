package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/thomasboom/portfolio/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the post store using a BoltDB backend. Posts are kept in a single bucket keyed by
// slug, so adding a post with an existing slug replaces it.
type BoltDB struct {
	db *bolt.DB
}

var postsBucket = []byte("posts")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(postsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create posts bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Posts retrieves all stored posts, newest first. Posts sharing a date are ordered by slug.
func (b BoltDB) Posts(context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var post models.Post
			if err := json.Unmarshal(v, &post); err != nil {
				return fmt.Errorf("failed to unmarshal post: %w", err)
			}
			posts = append(posts, post)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return strings.Compare(b.Date, a.Date)
	})
	return posts, nil
}

// Post retrieves the post with the given slug, or models.ErrPostNotFound.
func (b BoltDB) Post(_ context.Context, slug string) (models.Post, error) {
	var post models.Post
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if b == nil {
			return models.ErrPostNotFound
		}

		v := b.Get([]byte(slug))
		if v == nil {
			return models.ErrPostNotFound
		}

		if err := json.Unmarshal(v, &post); err != nil {
			return fmt.Errorf("failed to unmarshal post: %w", err)
		}
		return nil
	})
	return post, err
}

// AddPost stores post under its slug, replacing any previous version.
func (b BoltDB) AddPost(_ context.Context, post models.Post) error {
	if post.Slug == "" {
		return fmt.Errorf("post slug is required")
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if b == nil {
			return fmt.Errorf("posts bucket is missing")
		}

		v, err := json.Marshal(post)
		if err != nil {
			return fmt.Errorf("failed to marshal post: %w", err)
		}

		return b.Put([]byte(post.Slug), v)
	})
}

// ImportPosts stores every post in one transaction and returns how many were written.
func (b BoltDB) ImportPosts(_ context.Context, posts []models.Post) (int, error) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if b == nil {
			return fmt.Errorf("posts bucket is missing")
		}

		for _, post := range posts {
			if post.Slug == "" {
				post.Slug = models.Slugify(post.Title)
			}
			if post.Slug == "" {
				return fmt.Errorf("post without title or slug")
			}
			if post.ReadTime == "" {
				post.ReadTime = models.ReadTime(post.Content)
			}

			v, err := json.Marshal(post)
			if err != nil {
				return fmt.Errorf("failed to marshal post %s: %w", post.Slug, err)
			}
			if err := b.Put([]byte(post.Slug), v); err != nil {
				return fmt.Errorf("failed to put post %s: %w", post.Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}
