package handler

import (
	"net/http"

	"podium/pkg/platform/httputil"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// handleSubmit admits a registration or claim. A replayed idempotency key
// answers 200 with the original submission.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "submit to unknown event", err)
		return
	}
	idemKey, err := parseIdempotencyKey(r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		h.writeError(w, r, "invalid idempotency key", err)
		return
	}

	var req SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "invalid submit request", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, "invalid submit request", err)
		return
	}

	result, err := h.gateway.Submit(r.Context(), req.Command(eventID, idemKey))
	if err != nil {
		h.writeError(w, r, "submission refused", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		w.Header().Set(replayedHeader, "true")
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, SubmitResponse{ID: result.Submission.ID, Status: result.Submission.Status})
}

func (h *Handler) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "window of unknown event", err)
		return
	}
	window, err := h.gateway.Window(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, "failed to load event window", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWindowResponse(window))
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		h.writeError(w, r, "participants of unknown event", err)
		return
	}
	f, err := parseListFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, "invalid participants query", err)
		return
	}

	subs, page, err := h.gateway.Participants(r.Context(), eventID, f.Page, f.Limit)
	if err != nil {
		h.writeError(w, r, "failed to list participants", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(subs, page, toParticipantResponse))
}
