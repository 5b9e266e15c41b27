// Package api provides the HTTP handlers for the message server REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/illmade-knight/go-botbus/pkg/botmsg"
	"github.com/illmade-knight/go-botbus/pkg/msgservice"
	"github.com/rs/zerolog"
)

// Handler holds dependencies for the API handlers.
type Handler struct {
	service *msgservice.Service
	logger  zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(service *msgservice.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/messages", h.handleCreate)
	mux.HandleFunc("GET /api/messages", h.handleList)
	mux.HandleFunc("GET /api/messages/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/messages/{id}", h.handleDelete)
	mux.HandleFunc("POST /api/messages/{id}/ack", h.handleAcknowledge)
	mux.HandleFunc("POST /api/messages/{id}/republish", h.handleRepublish)
}

// createResponse wraps the created message; PublishWarning is set when the
// record was stored but its broadcast could not be emitted.
type createResponse struct {
	botmsg.Message
	PublishWarning string `json:"publishWarning,omitempty"`
}

type ackRequest struct {
	WorkerID string `json:"workerId"`
}

type ackResponse struct {
	MessageID            string `json:"messageId"`
	WorkerID             string `json:"workerId"`
	AcknowledgementCount int    `json:"acknowledgementCount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req botmsg.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.CreateMessage(r.Context(), req)
	if err != nil {
		if botmsg.IsValidation(err) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Message creation failed.")
		h.respondError(w, http.StatusInternalServerError, "message creation failed")
		return
	}

	resp := createResponse{Message: result.Message}
	if result.PublishErr != nil {
		resp.PublishWarning = result.PublishErr.Error()
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListMessages(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Message listing failed.")
		h.respondError(w, http.StatusInternalServerError, "message listing failed")
		return
	}
	h.respondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msg, err := h.service.GetMessageDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, botmsg.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Error().Err(err).Str("message_id", id).Msg("Message read failed.")
		h.respondError(w, http.StatusInternalServerError, "message read failed")
		return
	}
	h.respondJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.DeleteMessage(r.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("message_id", id).Msg("Message delete failed.")
		h.respondError(w, http.StatusInternalServerError, "message delete failed")
		return
	}
	// Idempotent: deleting an absent id is also a success.
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WorkerID == "" {
		h.respondError(w, http.StatusBadRequest, "workerId is required")
		return
	}

	msg, err := h.service.Acknowledge(r.Context(), id, req.WorkerID)
	if err != nil {
		switch {
		case errors.Is(err, botmsg.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "message not found")
		case errors.Is(err, botmsg.ErrConcurrency):
			// Safe for the worker to retry; the operation is idempotent.
			h.respondError(w, http.StatusConflict, "acknowledgement conflicted, retry")
		default:
			h.logger.Error().Err(err).Str("message_id", id).Str("worker_id", req.WorkerID).Msg("Acknowledgement failed.")
			h.respondError(w, http.StatusInternalServerError, "acknowledgement failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, ackResponse{
		MessageID:            msg.ID,
		WorkerID:             req.WorkerID,
		AcknowledgementCount: msg.AcknowledgementCount,
	})
}

func (h *Handler) handleRepublish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.RepublishMessage(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, botmsg.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "message not found")
		case errors.Is(err, botmsg.ErrPublish):
			h.respondError(w, http.StatusBadGateway, "broadcast publish failed")
		default:
			h.logger.Error().Err(err).Str("message_id", id).Msg("Republish failed.")
			h.respondError(w, http.StatusInternalServerError, "republish failed")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response body.")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, errorResponse{Error: msg})
}
