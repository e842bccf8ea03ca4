package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"mercator-hq/localchat/pkg/api"
	"mercator-hq/localchat/pkg/store"
)

// settingsRules bounds setting keys and values.
const settingsRules = "max=256,dive,keys,required,max=128,endkeys,max=8192"

// SettingsHandler serves the key/value settings.
type SettingsHandler struct {
	store    store.Store
	maxBody  int64
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSettingsHandler creates the settings handlers.
func NewSettingsHandler(st store.Store, maxBody int64) *SettingsHandler {
	return &SettingsHandler{
		store:    st,
		maxBody:  maxBody,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default().With("component", "handlers.settings"),
	}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.Settings(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read settings", "error", err)
		api.WriteError(w, r, http.StatusInternalServerError, api.CodeStorage, "Failed to read settings")
		return
	}
	if values == nil {
		values = map[string]string{}
	}
	api.WriteJSON(w, r, http.StatusOK, values)
}

// Put handles POST /api/settings. Values must be strings.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := api.DecodeJSON(w, r, h.maxBody, &values); err != nil {
		api.WriteBodyError(w, r, err)
		return
	}
	if err := h.validate.Var(values, settingsRules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			api.WriteFieldError(w, r, verrs[0].Field(), "invalid setting: failed "+verrs[0].Tag())
			return
		}
		api.WriteError(w, r, http.StatusBadRequest, api.CodeInvalidRequest, err.Error())
		return
	}

	if err := h.store.PutSettings(r.Context(), values); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save settings", "error", err)
		api.WriteError(w, r, http.StatusInternalServerError, api.CodeStorage, "Failed to save settings")
		return
	}
	api.WriteOK(w, r)
}
