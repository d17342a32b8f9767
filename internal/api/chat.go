package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/parley/internal/auth"
	"github.com/MikeSquared-Agency/parley/internal/chat"
)

// streamOutput writes a plain-text chunked response. Headers are committed by
// the first write, so a stream that fails before producing anything can still
// be answered with a JSON error.
type streamOutput struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newStreamOutput(w http.ResponseWriter) *streamOutput {
	return &streamOutput{w: w, rc: http.NewResponseController(w)}
}

func (o *streamOutput) start() {
	if o.started {
		return
	}
	o.started = true
	h := o.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	o.w.WriteHeader(http.StatusOK)
}

func (o *streamOutput) Write(p []byte) (int, error) {
	o.start()
	return o.w.Write(p)
}

func (o *streamOutput) Flush() error {
	return o.rc.Flush()
}

func (o *streamOutput) Close() error {
	if !o.started {
		return nil
	}
	return o.rc.Flush()
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		if errors.Is(err, chat.ErrNoMessages) {
			writeError(w, http.StatusBadRequest, "No messages array in request body")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := newStreamOutput(w)
	res := s.exchanges.Stream(r.Context(), user.ID, req, out)
	if res.Err != nil && !out.started {
		if errors.Is(res.Err, context.Canceled) {
			return
		}
		slog.Error("chat failed before streaming", "user_id", user.ID, "error", res.Err)
		internalError(w, res.Err)
		return
	}
	// An empty reply still gets a well-formed text response.
	out.start()
}
