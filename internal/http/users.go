package http

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := queryPage(r)
	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	responses := make([]userResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req struct {
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	updated, err := s.store.UpdateUserProfile(r.Context(), user.ID, req.FullName, req.Phone, user.Username)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// handleGetUser returns a user record to its owner or to an admin.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if caller.ID != id && caller.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req struct {
		FullName   *string     `json:"full_name"`
		Phone      *string     `json:"phone"`
		Role       *model.Role `json:"role"`
		IsActive   *bool       `json:"is_active"`
		IsVerified *bool       `json:"is_verified"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	updated, err := s.store.AdminUpdateUser(r.Context(), id, repository.UserUpdate{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Role:       req.Role,
		IsActive:   req.IsActive,
		IsVerified: req.IsVerified,
	}, caller.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// handleDeactivateUser is the soft delete: the account is switched off, the
// row stays.
func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if caller.ID == id {
		writeError(w, http.StatusBadRequest, "cannot_deactivate_self")
		return
	}

	updated, err := s.store.SetUserActive(r.Context(), id, false, caller.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}
