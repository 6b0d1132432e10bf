package handler

import (
	"net/http"

	"podium/internal/registration/models"
	"podium/pkg/platform/httputil"
)

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "invalid create event request", err)
		return
	}
	event, err := h.admin.CreateEvent(r.Context(), req.Command())
	if err != nil {
		h.writeError(w, r, "failed to create event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	includeDeleted, err := boolQuery(r, "include_deleted")
	if err != nil {
		h.writeError(w, r, "invalid list events query", err)
		return
	}
	events, err := h.admin.ListEvents(r.Context(), includeDeleted)
	if err != nil {
		h.writeError(w, r, "failed to list events", err)
		return
	}
	data := make([]EventResponse, 0, len(events))
	for _, e := range events {
		data = append(data, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown event", err)
		return
	}
	detail, err := h.admin.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, "failed to load event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventDetailResponse(detail))
}

func (h *Handler) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown event", err)
		return
	}
	var req UpdateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "invalid update event request", err)
		return
	}
	event, err := h.admin.UpdateEvent(r.Context(), eventID, req.Patch())
	if err != nil {
		h.writeError(w, r, "failed to update event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

// handleDeleteEvent tombstones by default; ?permanent=true erases a
// tombstoned event together with its submissions.
func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown event", err)
		return
	}
	permanent, err := boolQuery(r, "permanent")
	if err != nil {
		h.writeError(w, r, "invalid delete event query", err)
		return
	}

	if permanent {
		err = h.admin.PermanentDeleteEvent(r.Context(), eventID, true)
	} else {
		err = h.admin.SoftDeleteEvent(r.Context(), eventID)
	}
	if err != nil {
		h.writeError(w, r, "failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown event", err)
		return
	}
	if err := h.admin.RestoreEvent(r.Context(), eventID); err != nil {
		h.writeError(w, r, "failed to restore event", err)
		return
	}
	detail, err := h.admin.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, "failed to load event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventDetailResponse(detail))
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, "invalid list submissions query", err)
		return
	}
	subs, page, err := h.admin.ListSubmissions(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "failed to list submissions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(subs, page, func(s *models.Submission) *models.Submission { return s }))
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	subID, err := submissionIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown submission", err)
		return
	}
	detail, err := h.admin.GetSubmission(r.Context(), subID)
	if err != nil {
		h.writeError(w, r, "failed to load submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionDetailResponse(detail))
}

// handlePatchSubmission dispatches to moderation, the lifecycle toggle or a
// contact edit, then answers with the refreshed detail view.
func (h *Handler) handlePatchSubmission(w http.ResponseWriter, r *http.Request) {
	subID, err := submissionIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown submission", err)
		return
	}
	var req PatchSubmissionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "invalid patch submission request", err)
		return
	}
	kind, err := req.Validate()
	if err != nil {
		h.writeError(w, r, "invalid patch submission request", err)
		return
	}

	ctx := r.Context()
	switch kind {
	case patchModeration:
		_, err = h.engine.Transition(ctx, subID, req.ParsedStatus(), req.ReviewerNotes)
	case patchLifecycle:
		if *req.IsDeleted {
			err = h.admin.SoftDeleteSubmission(ctx, subID)
		} else {
			err = h.admin.RestoreSubmission(ctx, subID)
		}
	case patchContact:
		_, err = h.admin.PatchSubmission(ctx, subID, req.contactPatch())
	}
	if err != nil {
		h.writeError(w, r, "failed to patch submission", err)
		return
	}

	detail, err := h.admin.GetSubmission(ctx, subID)
	if err != nil {
		h.writeError(w, r, "failed to load submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionDetailResponse(detail))
}

func (h *Handler) handleBatchTransition(w http.ResponseWriter, r *http.Request) {
	var req BatchTransitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "invalid batch request", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, "invalid batch request", err)
		return
	}
	report, err := h.engine.BatchTransition(r.Context(), req.ParsedIDs(), req.ParsedStatus(), req.ReviewerNotes)
	if err != nil {
		h.writeError(w, r, "batch transition refused", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(report))
}

func (h *Handler) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	subID, err := submissionIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown submission", err)
		return
	}
	permanent, err := boolQuery(r, "permanent")
	if err != nil {
		h.writeError(w, r, "invalid delete submission query", err)
		return
	}

	if permanent {
		err = h.admin.PermanentDeleteSubmission(r.Context(), subID, true)
	} else {
		err = h.admin.SoftDeleteSubmission(r.Context(), subID)
	}
	if err != nil {
		h.writeError(w, r, "failed to delete submission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreSubmission(w http.ResponseWriter, r *http.Request) {
	subID, err := submissionIDParam(r)
	if err != nil {
		h.writeError(w, r, "unknown submission", err)
		return
	}
	if err := h.admin.RestoreSubmission(r.Context(), subID); err != nil {
		h.writeError(w, r, "failed to restore submission", err)
		return
	}
	detail, err := h.admin.GetSubmission(r.Context(), subID)
	if err != nil {
		h.writeError(w, r, "failed to load submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionDetailResponse(detail))
}
