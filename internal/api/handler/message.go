package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/service"
)

// MessageHandler streams chat replies as server-sent events
type MessageHandler struct {
	chat *service.ChatService
}

func NewMessageHandler(chat *service.ChatService) *MessageHandler {
	return &MessageHandler{chat: chat}
}

// Send posts a user message and streams the reply. Each fragment is sent
// as {"chunk": "..."}; the updated session follows as a "session" event
// and the stream ends with [DONE]. Requests rejected before streaming get
// a plain JSON error.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req struct {
		Content  string `json:"content" validate:"required,max=20000"`
		Provider string `json:"provider" validate:"omitempty,max=50"`
		Model    string `json:"model" validate:"omitempty,max=100"`
	}
	if !decode(w, r, &req) {
		return
	}

	sse := newEventWriter(w)
	sess, err := h.chat.Send(r.Context(), userID, service.ChatRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		Content:   req.Content,
		Provider:  req.Provider,
		Model:     req.Model,
	}, func(chunk string) {
		sse.data(map[string]string{"chunk": chunk})
	})
	if err != nil {
		if sse.started {
			log.Error().Err(err).Msg("chat failed after streaming began")
			sse.done()
			return
		}
		writeSessionError(w, err)
		return
	}

	sse.event("session", sess)
	sse.done()
}

type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	f, _ := w.(http.Flusher)
	return &eventWriter{w: w, flusher: f}
}

func (e *eventWriter) start() {
	if e.started {
		return
	}
	e.started = true

	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
}

func (e *eventWriter) data(v any) {
	e.event("", v)
}

func (e *eventWriter) event(name string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode event")
		return
	}

	e.start()
	if name != "" {
		fmt.Fprintf(e.w, "event: %s\n", name)
	}
	fmt.Fprintf(e.w, "data: %s\n\n", payload)
	e.flush()
}

func (e *eventWriter) done() {
	e.start()
	fmt.Fprint(e.w, "data: [DONE]\n\n")
	e.flush()
}

func (e *eventWriter) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
