package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"mercator-hq/localchat/pkg/api"
	"mercator-hq/localchat/pkg/store"
)

// ImportResponse reports what an import changed.
type ImportResponse struct {
	OK               bool `json:"ok"`
	Threads          int  `json:"threads"`
	MessagesInserted int  `json:"messagesInserted"`
	MessagesSkipped  int  `json:"messagesSkipped"`
}

// StorageHandler moves the whole store in and out as a snapshot file.
type StorageHandler struct {
	store   store.Store
	maxBody int64
	logger  *slog.Logger
}

// NewStorageHandler creates the export and import handlers.
func NewStorageHandler(st store.Store, maxBody int64) *StorageHandler {
	return &StorageHandler{
		store:   st,
		maxBody: maxBody,
		logger:  slog.Default().With("component", "handlers.storage"),
	}
}

// Export handles GET /api/storage/export.
func (h *StorageHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Export(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed", "error", err)
		api.WriteError(w, r, http.StatusInternalServerError, api.CodeStorage, "Failed to export threads")
		return
	}

	// Encode first so a failure can still be reported as an error status.
	var buf bytes.Buffer
	if err := store.WriteSnapshot(&buf, snap); err != nil {
		h.logger.ErrorContext(r.Context(), "export encoding failed", "error", err)
		api.WriteError(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to export threads")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="threads.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import handles POST /api/storage/import. Existing messages are kept, so
// importing the same file twice changes nothing.
func (h *StorageHandler) Import(w http.ResponseWriter, r *http.Request) {
	var snap store.Snapshot
	if err := api.DecodeJSON(w, r, h.maxBody, &snap); err != nil {
		api.WriteBodyError(w, r, err)
		return
	}
	if err := snap.Validate(); err != nil {
		api.WriteError(w, r, http.StatusBadRequest, api.CodeInvalidRequest, err.Error())
		return
	}

	res, err := h.store.Import(r.Context(), &snap)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "import failed", "error", err)
		api.WriteError(w, r, http.StatusInternalServerError, api.CodeStorage, "Failed to import threads")
		return
	}

	h.logger.InfoContext(r.Context(), "threads imported",
		"threads", res.Threads,
		"messages_inserted", res.MessagesInserted,
		"messages_skipped", res.MessagesSkipped,
	)
	api.WriteJSON(w, r, http.StatusOK, ImportResponse{
		OK:               true,
		Threads:          res.Threads,
		MessagesInserted: res.MessagesInserted,
		MessagesSkipped:  res.MessagesSkipped,
	})
}
