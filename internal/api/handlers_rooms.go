// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/ws"
)

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return id, nil
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	rooms, err := s.rooms.ListForUser(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("room list failed")
		writeInternal(w)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

type createGroupRequest struct {
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	room, err := s.rooms.CreateGroup(r.Context(), req.Name, principal.UserID, req.Members)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncRoomCreated(string(domain.RoomGroup))

	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
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

	room, err := s.rooms.GetByID(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleLeaveRoom removes the caller from the room. When the last admin
// leaves the room is deleted for everyone.
func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	deleted, err := s.rooms.Leave(r.Context(), roomID, principal.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"left":         true,
		"room_deleted": deleted,
	})
}

// handleDirectRoom gets or creates the one-to-one room with another user.
func (s *Server) handleDirectRoom(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	otherID, err := pathID(r, "userID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := s.users.GetByID(r.Context(), otherID); err != nil {
		writeDomainError(w, err)
		return
	}

	room, created, err := s.rooms.GetOrCreateDirect(r.Context(), principal.UserID, otherID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.IncRoomCreated(string(domain.RoomDirect))
		// Tell the other side a conversation opened.
		_ = s.hub.Notify(r.Context(), otherID, ws.Outbound{
			Type:     ws.EventUserStatus,
			RoomID:   room.ID,
			UserID:   principal.UserID,
			Username: principal.Username,
			Presence: string(domain.PresenceOnline),
		})
	}
	writeJSON(w, status, room)
}
