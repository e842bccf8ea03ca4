package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mercator-hq/localchat/pkg/api"
	"mercator-hq/localchat/pkg/store"
)

// ThreadsHandler serves thread listing and editing.
type ThreadsHandler struct {
	store            store.Store
	placeholderTitle string
	maxBody          int64
	logger           *slog.Logger
}

// NewThreadsHandler creates the thread handlers. New threads are titled
// placeholderTitle until their first chat turn.
func NewThreadsHandler(st store.Store, placeholderTitle string, maxBody int64) *ThreadsHandler {
	if placeholderTitle == "" {
		placeholderTitle = store.DefaultThreadTitle
	}
	return &ThreadsHandler{
		store:            st,
		placeholderTitle: placeholderTitle,
		maxBody:          maxBody,
		logger:           slog.Default().With("component", "handlers.threads"),
	}
}

// List handles GET /api/threads.
func (h *ThreadsHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.store.ListThreads(r.Context())
	if err != nil {
		h.storageError(w, r, "list threads", err)
		return
	}
	if threads == nil {
		threads = []store.Thread{}
	}
	api.WriteJSON(w, r, http.StatusOK, threads)
}

// Create handles POST /api/threads.
func (h *ThreadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	thread, err := h.store.CreateThread(r.Context(), h.placeholderTitle)
	if err != nil {
		h.storageError(w, r, "create thread", err)
		return
	}
	api.WriteJSON(w, r, http.StatusOK, thread)
}

// Get handles GET /api/threads/{id}. The body is the thread with its
// messages in creation order.
func (h *ThreadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	thread, err := h.store.GetThread(r.Context(), id)
	if err != nil {
		h.storageError(w, r, "get thread", err)
		return
	}
	messages, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.storageError(w, r, "list messages", err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	api.WriteJSON(w, r, http.StatusOK, store.ThreadSnapshot{
		ID:        thread.ID,
		Title:     thread.Title,
		CreatedAt: thread.CreatedAt,
		Messages:  messages,
	})
}

type renameRequest struct {
	Title string `json:"title"`
}

// Rename handles PATCH /api/threads/{id}.
func (h *ThreadsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body renameRequest
	if err := api.DecodeJSON(w, r, h.maxBody, &body); err != nil {
		api.WriteBodyError(w, r, err)
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		api.WriteFieldError(w, r, "title", "title is required")
		return
	}

	if err := h.store.RenameThread(r.Context(), id, title); err != nil {
		h.storageError(w, r, "rename thread", err)
		return
	}
	thread, err := h.store.GetThread(r.Context(), id)
	if err != nil {
		h.storageError(w, r, "get thread", err)
		return
	}
	api.WriteJSON(w, r, http.StatusOK, thread)
}

// Delete handles DELETE /api/threads/{id}. Deleting an absent thread
// succeeds.
func (h *ThreadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteThread(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storageError(w, r, "delete thread", err)
		return
	}
	api.WriteOK(w, r)
}

func (h *ThreadsHandler) storageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, store.ErrThreadNotFound) {
		api.WriteError(w, r, http.StatusNotFound, api.CodeNotFound, "thread not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "storage operation failed", "operation", op, "error", err)
	api.WriteError(w, r, http.StatusInternalServerError, api.CodeStorage, "Failed to "+op)
}
