// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/ws"
)

// handleListMessages pages backwards through a room's history. Query
// params: limit (default from config) and before (message id cursor).
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := s.rooms.Role(r.Context(), roomID, principal.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := s.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, errors.New("limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	var before int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, errors.New("before must be a message id"))
			return
		}
		before = n
	}

	msgs, err := s.messages.ListByRoom(r.Context(), roomID, limit, before)
	if err != nil {
		s.logger.Error().Err(err).Int64("room_id", roomID).Msg("history load failed")
		writeInternal(w)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type createMessageRequest struct {
	Content        string `json:"content"`
	AttachmentPath string `json:"attachment_path"`
	AttachmentType string `json:"attachment_type"`
}

// handleCreateMessage persists a message over REST and fans it out exactly
// as a socket send would.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := s.rooms.Role(r.Context(), roomID, principal.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	if req.Content == "" && req.AttachmentPath == "" {
		writeError(w, errors.New("content must not be empty"))
		return
	}

	msg, err := s.messages.Create(r.Context(), roomID, principal.UserID, req.Content, domain.StatusSent, req.AttachmentPath, req.AttachmentType)
	if err != nil {
		s.logger.Error().Err(err).Int64("room_id", roomID).Msg("message persist failed")
		writeInternal(w)
		return
	}
	metrics.IncMessageSent()
	metrics.IncMessageStatus(string(domain.StatusSent))

	_ = s.hub.Broadcast(r.Context(), roomID, ws.Outbound{
		Type:    ws.EventChatMessage,
		Message: &msg,
	})
	s.sockets.NotifyNewMessage(r.Context(), msg)
	writeJSON(w, http.StatusCreated, msg)
}

// handleDeleteMessage soft-deletes the caller's own message and announces
// it to the room.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	messageID, err := pathID(r, "messageID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	msg, err := s.messages.Get(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.messages.SoftDelete(r.Context(), messageID, principal.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	deleted, err := s.messages.Get(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = s.hub.Broadcast(r.Context(), msg.RoomID, ws.Outbound{
		Type:    ws.EventChatMessage,
		Message: &deleted,
	})

	writeJSON(w, http.StatusOK, deleted)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	messageID, err := pathID(r, "messageID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	msg, err := s.messages.Get(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.rooms.Role(r.Context(), msg.RoomID, principal.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	reaction, err := s.messages.AddReaction(r.Context(), messageID, principal.UserID, req.Emoji)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	_ = s.hub.Broadcast(r.Context(), msg.RoomID, ws.Outbound{
		Type:     ws.EventReaction,
		Reaction: &reaction,
	})
	writeJSON(w, http.StatusCreated, reaction)
}

func (s *Server) handleRemoveReaction(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	messageID, err := pathID(r, "messageID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	msg, err := s.messages.Get(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.messages.RemoveReaction(r.Context(), messageID, principal.UserID, req.Emoji); err != nil {
		writeDomainError(w, err)
		return
	}

	_ = s.hub.Broadcast(r.Context(), msg.RoomID, ws.Outbound{
		Type: ws.EventReaction,
		Reaction: &domain.Reaction{
			MessageID: messageID,
			UserID:    principal.UserID,
			Username:  principal.Username,
			Emoji:     req.Emoji,
		},
		Removed: true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}
