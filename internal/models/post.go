package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Post is a blog entry. Content is Markdown.
type Post struct {
	Slug     string   `json:"slug" yaml:"slug"`
	Title    string   `json:"title" yaml:"title"`
	Excerpt  string   `json:"excerpt" yaml:"excerpt"`
	Content  string   `json:"content" yaml:"content"`
	Date     string   `json:"date" yaml:"date"`
	ReadTime string   `json:"readTime" yaml:"readTime"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// PostDraft is the raw editor input a Post is generated from.
type PostDraft struct {
	Title    string
	Slug     string
	Excerpt  string
	Content  string
	Tags     string
	ReadTime string
}

const wordsPerMinute = 200

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slugify lower-cases the trimmed title and replaces each run of whitespace with a dash.
func Slugify(title string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
}

// ReadTime estimates the reading time of content at 200 words per minute, never less than one minute.
func ReadTime(content string) string {
	words := len(strings.Fields(content))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// NewPost builds a Post from draft. A missing slug is derived from the title and a missing read time is
// estimated from the content; tags are split on commas.
// It returns an error when the title or content is missing.
func NewPost(draft PostDraft, now time.Time) (Post, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return Post{}, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(draft.Content) == "" {
		return Post{}, fmt.Errorf("content is required")
	}

	slug := strings.TrimSpace(draft.Slug)
	if slug == "" {
		slug = Slugify(draft.Title)
	}

	readTime := strings.TrimSpace(draft.ReadTime)
	if readTime == "" {
		readTime = ReadTime(draft.Content)
	}

	var tags []string
	for _, tag := range strings.Split(draft.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return Post{
		Slug:     slug,
		Title:    draft.Title,
		Excerpt:  draft.Excerpt,
		Content:  draft.Content,
		Date:     now.Format(time.DateOnly),
		ReadTime: readTime,
		Tags:     tags,
	}, nil
}
