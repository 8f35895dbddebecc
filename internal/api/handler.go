// Package api implements the HTTP entry point. The public surface is a
// single action-dispatch endpoint: ?action=convert creates a task and returns
// an upload credential, ?action=get_task_status polls a task.
package api

import (
	"errors"
	"net/http"

	"github.com/mosaicworks/stylize-api/internal/api/shared"
	"github.com/mosaicworks/stylize-api/internal/pipeline"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// Handler dispatches entry-point requests to the pipeline stages.
type Handler struct {
	creator *pipeline.Creator
	status  *pipeline.StatusReader
}

// NewHandler creates a Handler.
func NewHandler(creator *pipeline.Creator, status *pipeline.StatusReader) *Handler {
	return &Handler{creator: creator, status: status}
}

// Dispatch handles GET|POST /?action=...
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch action {
	case "convert":
		h.convert(w, r)
	case "get_task_status":
		h.taskStatus(w, r)
	default:
		shared.RespondWithError(w, r, http.StatusBadRequest, "unknown action: "+action)
	}
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	created, err := h.creator.Create(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"failed to create task", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, created)
}

func (h *Handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "task_id is required")
		return
	}

	st, err := h.status.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"failed to read task status", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, st)
}
