package handlers

import (
	"log/slog"
	"net/http"

	"github.com/thomasboom/portfolio/internal/models"
)

type homePageData struct {
	Site     Site
	Messages []message
	Busy     bool
	Typing   bool
}

// HandleHome renders the chat page. A visitor without any turns yet sees the welcome screen with the
// suggested prompts instead of the transcript.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		m.renderNotFound(w)
		return
	}

	session := m.session(w, r)
	busy := session.Busy()

	snapshot := session.Transcript.Snapshot()
	msgs := make([]message, 0, len(snapshot))
	for i, msg := range snapshot {
		if msg.Role == models.RoleSystem {
			continue
		}
		state := models.StreamingStateEnded
		if busy && i == len(snapshot)-1 && msg.Role == models.RoleAssistant {
			state = models.StreamingStateStreaming
		}
		view, err := m.messageView(i, msg, state)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("session", session.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs = append(msgs, view)
	}

	m.render(w, "home.html", homePageData{
		Site:     m.site,
		Messages: msgs,
		Busy:     busy,
		Typing:   session.Typing(),
	})
}

type linksPageData struct {
	Site Site
}

// HandleLinks renders the links page.
func (m Main) HandleLinks(w http.ResponseWriter, _ *http.Request) {
	m.render(w, "links.html", linksPageData{Site: m.site})
}
