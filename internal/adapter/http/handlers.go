package http

import (
	"errors"
	"net/http"

	"github.com/Strob0t/SandForge/internal/domain/message"
	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/port/broadcast"
	"github.com/Strob0t/SandForge/internal/port/model"
	"github.com/Strob0t/SandForge/internal/port/sandbox"
	"github.com/Strob0t/SandForge/internal/port/storage"
	"github.com/Strob0t/SandForge/internal/service"
)

const maxBodySize = 1 << 20 // 1 MiB

// Handlers bundles the dependencies of all HTTP endpoints.
type Handlers struct {
	runtime  *service.AgentRuntime
	sessions *service.SessionService
	llm      model.Port
	shell    sandbox.Port
	store    storage.Port
	clients  broadcast.Broadcaster
}

// NewHandlers creates the handler set.
func NewHandlers(runtime *service.AgentRuntime, sessions *service.SessionService, llm model.Port, shell sandbox.Port, store storage.Port, clients broadcast.Broadcaster) *Handlers {
	return &Handlers{
		runtime:  runtime,
		sessions: sessions,
		llm:      llm,
		shell:    shell,
		store:    store,
		clients:  clients,
	}
}

// HandleHealth reports service, sandbox and storage status.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"sandbox_ready": h.shell.IsReady(),
		"storage":       h.store.BackendName(),
		"ws_clients":    h.clients.ConnectionCount(),
	})
}

type turnRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

type turnResponse struct {
	SessionID string            `json:"session_id,omitempty"`
	Messages  []message.Message `json:"messages"`
}

// HandleRunTurn executes one agent turn. Events stream to WebSocket clients
// while the turn runs; the response carries the final conversation history.
// When a session_id is given, the session's history is restored before the
// turn and persisted after it.
func (h *Handlers) HandleRunTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[turnRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	var sessionID string
	if req.SessionID != "" {
		sess, err := h.sessions.Get(r.Context(), req.SessionID)
		if err != nil {
			writeDomainError(w, err, "session not found")
			return
		}
		h.runtime.Restore(sess.Messages)
		sessionID = sess.ID
	}

	err := h.runtime.RunTurn(r.Context(), req.Input)
	if errors.Is(err, service.ErrTurnInFlight) {
		writeError(w, http.StatusConflict, "a turn is already in flight")
		return
	}

	msgs := h.runtime.Messages()
	if sessionID != "" {
		sess, getErr := h.sessions.Get(r.Context(), sessionID)
		if getErr == nil {
			sess.Messages = msgs
			if saveErr := h.sessions.Save(r.Context(), sess); saveErr != nil {
				writeDomainError(w, saveErr, "session not found")
				return
			}
		}
	}

	if err != nil {
		// Model failure: the Error event has already been emitted; report
		// the degraded outcome alongside the history.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      err.Error(),
			"session_id": sessionID,
			"messages":   msgs,
		})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{SessionID: sessionID, Messages: msgs})
}

// HandleReset truncates the conversation to the system prompt.
func (h *Handlers) HandleReset(w http.ResponseWriter, _ *http.Request) {
	h.runtime.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleListTools returns the tool catalogue.
func (h *Handlers) HandleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]tool.Definition{"tools": h.runtime.Definitions()})
}

// HandleListModels proxies the provider's model listing.
func (h *Handlers) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.llm.ListModels(r.Context())
	if err != nil {
		writeDomainError(w, err, "models unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// HandleCreateSession starts a new empty session.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleListSessions returns summaries of all sessions, newest first.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "sessions unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

// HandleGetSession returns a full session.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleDeleteSession removes a session.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
