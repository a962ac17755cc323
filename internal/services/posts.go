package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thomasboom/portfolio/internal/models"
	"gopkg.in/yaml.v3"
)

// LoadPosts reads posts from a seed file. Files ending in .json hold either a single post, as produced by
// the blog editor, or a list of posts; anything else is parsed as a YAML list of posts.
func LoadPosts(path string) ([]models.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read posts file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return decodeJSONPosts(data)
	}

	var posts []models.Post
	if err := yaml.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts file %s: %w", path, err)
	}
	return posts, nil
}

func decodeJSONPosts(data []byte) ([]models.Post, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var posts []models.Post
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, fmt.Errorf("failed to decode posts: %w", err)
		}
		return posts, nil
	}

	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	return []models.Post{post}, nil
}
