package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/thomasboom/portfolio/internal/models"
)

type blogPageData struct {
	Site  Site
	Posts []models.Post
}

type postPageData struct {
	Site Site
	Post models.Post
}

type editorPageData struct {
	Site  Site
	Draft models.PostDraft
	Error string
	// JSON is the generated post, set once the form has been submitted successfully.
	JSON string
}

type notFoundPageData struct {
	Site Site
}

// HandleBlog lists the published posts, newest first.
func (m Main) HandleBlog(w http.ResponseWriter, r *http.Request) {
	posts, err := m.store.Posts(r.Context())
	if err != nil {
		m.logger.Error("Failed to get posts", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.render(w, "blog.html", blogPageData{Site: m.site, Posts: posts})
}

// HandlePost renders the post named by the {slug} path value; unknown slugs get the not found page.
func (m Main) HandlePost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	post, err := m.store.Post(r.Context(), slug)
	if errors.Is(err, models.ErrPostNotFound) {
		m.renderNotFound(w)
		return
	}
	if err != nil {
		m.logger.Error("Failed to get post",
			slog.String("slug", slug),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.render(w, "post.html", postPageData{Site: m.site, Post: post})
}

// HandleEditor serves the post editor. Submitting it renders the post as JSON, ready to be imported with
// the post import command; nothing is stored.
func (m Main) HandleEditor(w http.ResponseWriter, r *http.Request) {
	data := editorPageData{Site: m.site}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		data.Draft = models.PostDraft{
			Title:    r.FormValue("title"),
			Slug:     r.FormValue("slug"),
			Excerpt:  r.FormValue("excerpt"),
			Content:  r.FormValue("content"),
			Tags:     r.FormValue("tags"),
			ReadTime: r.FormValue("readTime"),
		}
		post, err := models.NewPost(data.Draft, time.Now())
		if err != nil {
			data.Error = err.Error()
			w.WriteHeader(http.StatusUnprocessableEntity)
			break
		}
		js, err := json.MarshalIndent(post, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.JSON = string(js)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.render(w, "editor.html", data)
}

func (m Main) renderNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	m.render(w, "not_found.html", notFoundPageData{Site: m.site})
}
