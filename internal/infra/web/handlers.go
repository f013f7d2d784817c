package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

type submitRequest struct {
	Type    model.JobType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, err := model.UnmarshalPayload(req.Type, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.queue.Submit(r.Context(), payload)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("submit failed")
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, err := s.queue.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("status lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to read job")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	ok, err := s.queue.Cancel(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ok})
}

type createConversationRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId"`
	Topic          string `json:"topic"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "userId and topic are required")
		return
	}
	cc, err := s.conv.Initialize(r.Context(), req.ConversationID, req.UserID, req.Topic)
	if err != nil {
		s.log.Error().Err(err).Msg("conversation create failed")
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, cc)
}

type recordMessageRequest struct {
	MessageID string `json:"messageId,omitempty"` // repeated ids are applied once
	SpeakerID string `json:"speakerId,omitempty"` // defaults to the user
	Content   string `json:"content"`
}

func (s *Server) handleUserMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var req recordMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.SpeakerID == "" {
		req.SpeakerID = model.UserSpeakerID
	}
	if req.MessageID == "" {
		req.MessageID = ulid.Make().String()
	}

	cc, err := s.conv.RecordMessage(r.Context(), usecase.RecordMessageInput{
		ConversationID: conversationID,
		MessageID:      req.MessageID,
		SpeakerID:      req.SpeakerID,
		Content:        req.Content,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("record message failed")
		writeError(w, http.StatusInternalServerError, "failed to record message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"conversationId": cc.ConversationID,
		"messageId":      req.MessageID,
		"nextSpeaker":    cc.NextSpeaker,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}
	list, err := s.conv.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("conversation list failed")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	summary, err := s.conv.Summarize(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("summary failed")
		writeError(w, http.StatusInternalServerError, "failed to summarize")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
