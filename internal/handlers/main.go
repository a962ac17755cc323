package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/thomasboom/portfolio"
	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/models"
	"github.com/tmaxmax/go-sse"
)

// PostStore provides read access to the published blog posts.
type PostStore interface {
	Posts(ctx context.Context) ([]models.Post, error)
	Post(ctx context.Context, slug string) (models.Post, error)
}

// Link is an entry of the links page.
type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
	Icon  string `yaml:"icon"`
}

// Prompt is a suggested opening question shown on the welcome screen.
type Prompt struct {
	Icon string `yaml:"icon"`
	Text string `yaml:"text"`
}

// Site holds the static content of the pages around the chat.
type Site struct {
	Name     string   `yaml:"name"`
	Tagline  string   `yaml:"tagline"`
	Location string   `yaml:"location"`
	Prompts  []Prompt `yaml:"prompts"`
	Links    []Link   `yaml:"links"`
}

// Main handles the core functionality of the portfolio site, managing server-sent events, HTML templates,
// and the interactions between visitor sessions, the chat orchestrator and the blog store.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	orchestrator chat.Orchestrator
	sessions     *chat.Registry
	store        PostStore
	site         Site

	logger *slog.Logger
}

const (
	sessionCookieName = "portfolio_session"

	errLoggerKey = "err"
)

// NewMain creates a new Main instance. It initializes the SSE server, which subscribes every client to the
// topic of the session named by its cookie, and parses the HTML templates from the embedded filesystem.
func NewMain(llm chat.LLM, sessions *chat.Registry, store PostStore, site Site, logger *slog.Logger) (Main, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": models.RenderMarkdown,
	}).ParseFS(
		portfolio.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	orchestrator := chat.NewOrchestrator(llm, logger)
	logger = logger.With(slog.String("module", "handlers"))

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				cookie, err := s.Req.Cookie(sessionCookieName)
				if err != nil || cookie.Value == "" {
					logger.Warn("SSE request without session cookie", slog.String("remote", s.Req.RemoteAddr))
					return sse.Subscription{}, false
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, sessionTopic(cookie.Value)},
				}, true
			},
		},
		templates:    tmpl,
		orchestrator: orchestrator,
		sessions:     sessions,
		store:        store,
		site:         site,
		logger:       logger,
	}, nil
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// HandleSSE serves the event stream of the requesting visitor's session.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It aborts every exchange in flight,
// broadcasts a close message to all connected clients and waits up to 5 seconds for connections to
// terminate. After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.sessions.Close()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE events must carry data.
	e.AppendData("bye")

	// Shutting down anyway.
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// session returns the visitor's session, creating it and setting the cookie on the first visit.
func (m Main) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	var id string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		id = cookie.Value
	}

	s, created := m.sessions.GetOrCreate(id)
	if created {
		m.watch(s)
	}
	if s.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

func (m Main) render(w http.ResponseWriter, name string, data any) {
	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		m.logger.Error("Failed to execute template",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
