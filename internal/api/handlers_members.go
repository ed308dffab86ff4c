// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
)

// requireAdmin loads the caller's role and rejects non-admins.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, roomID int64) (auth.Principal, bool) {
	principal, _ := auth.FromContext(r.Context())
	role, err := s.rooms.Role(r.Context(), roomID, principal.UserID)
	if err != nil {
		writeDomainError(w, err)
		return principal, false
	}
	if role != domain.RoleAdmin {
		writeDomainError(w, domain.ErrNotAdmin)
		return principal, false
	}
	return principal, true
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
}

// handleAddMember adds a user to a group room. Admins only; direct rooms
// never take extra members.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, ok := s.requireAdmin(w, r, roomID); !ok {
		return
	}

	room, err := s.rooms.GetByID(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if room.Type == domain.RoomDirect {
		writeError(w, errors.New("direct rooms cannot take members"))
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	if _, err := s.users.GetByID(r.Context(), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.rooms.AddMember(r.Context(), roomID, req.UserID, domain.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	members, err := s.rooms.Members(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, members)
}

type updateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// handleUpdateRole promotes or demotes a member. Demoting the last admin
// is rejected.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, ok := s.requireAdmin(w, r, roomID); !ok {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	if err := s.rooms.UpdateRole(r.Context(), roomID, userID, req.Role); err != nil {
		writeDomainError(w, err)
		return
	}

	members, err := s.rooms.Members(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// handleRemoveMember kicks a user from the room. Admins only; the last
// admin cannot be removed.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	principal, ok := s.requireAdmin(w, r, roomID)
	if !ok {
		return
	}
	if userID == principal.UserID {
		writeError(w, errors.New("use leave to remove yourself"))
		return
	}

	if err := s.rooms.RemoveMember(r.Context(), roomID, userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}
