package api

import (
	"bytes"
	"net/http"

	"github.com/MikeSquared-Agency/parley/internal/auth"
	"github.com/MikeSquared-Agency/parley/internal/render"
	"github.com/MikeSquared-Agency/parley/internal/store"
)

// history lists the caller's most recent exchanges, newest first.
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	chats, err := s.chats.ListChats(r.Context(), user.ID, s.historyLimit)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

// historyView renders the same exchanges as a page, oldest first.
func (s *Server) historyView(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	entries, err := s.entries(r, user)
	if err != nil {
		internalError(w, err)
		return
	}
	var page bytes.Buffer
	if err := s.renderer.Page(&page, "Chat history", entries); err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, &page)
}

// home serves the browser chat client. Recent exchanges are shown oldest
// first above the composer; anonymous visitors get the login form.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	user, signedIn := auth.UserFrom(r.Context())
	var entries []render.Entry
	if signedIn {
		var err error
		if entries, err = s.entries(r, user); err != nil {
			internalError(w, err)
			return
		}
	}
	var page bytes.Buffer
	if err := s.renderer.ChatPage(&page, "parley", entries, signedIn); err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, &page)
}

func (s *Server) entries(r *http.Request, user auth.User) ([]render.Entry, error) {
	chats, err := s.chats.ListChats(r.Context(), user.ID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	entries := make([]render.Entry, 0, len(chats))
	for _, c := range store.Chronological(chats) {
		entries = append(entries, render.Entry{
			Prompt:    c.Prompt,
			Response:  c.Response,
			Truncated: c.Truncated,
			CreatedAt: c.CreatedAt,
		})
	}
	return entries, nil
}

func writeHTML(w http.ResponseWriter, page *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	page.WriteTo(w)
}
