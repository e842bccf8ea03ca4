package handlers

import (
	"context"
	"errors"
	"net/http"

	"mercator-hq/localchat/pkg/api"
	"mercator-hq/localchat/pkg/relay"
	"mercator-hq/localchat/pkg/sse"
)

// StreamStatusTrailer carries the session outcome after the last frame.
const StreamStatusTrailer = "X-Stream-Status"

// Relay runs chat sessions. *relay.Controller implements it.
type Relay interface {
	Run(ctx context.Context, req *relay.ChatRequest, w relay.FrameWriter) relay.Result
}

// ChatHandler streams one chat turn per request.
type ChatHandler struct {
	relay   Relay
	maxBody int64
}

// NewChatHandler creates the chat handler.
func NewChatHandler(r Relay, maxBody int64) *ChatHandler {
	return &ChatHandler{relay: r, maxBody: maxBody}
}

// ServeHTTP validates the request, then switches to an event stream. Nothing
// is stored and no stream is opened for a request that fails validation.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req relay.ChatRequest
	if err := api.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		api.WriteBodyError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		var verr *relay.ValidationError
		if errors.As(err, &verr) {
			api.WriteFieldError(w, r, verr.Field, verr.Error())
			return
		}
		api.WriteError(w, r, http.StatusBadRequest, api.CodeInvalidRequest, err.Error())
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("Trailer", StreamStatusTrailer)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	res := h.relay.Run(r.Context(), &req, sse.NewWriter(w, rc.Flush))

	header.Set(StreamStatusTrailer, streamStatus(res.Outcome))
}

func streamStatus(o relay.Outcome) string {
	switch o {
	case relay.OutcomeOK:
		return "ok"
	case relay.OutcomePersistFailed:
		return "persist_failed"
	default:
		return "error"
	}
}
