package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusmarket/internal/auth"
	"campusmarket/internal/crypto"
	"campusmarket/internal/model"
)

type userResponse struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	FullName   string     `json:"full_name"`
	Phone      *string    `json:"phone"`
	StudentID  string     `json:"student_id"`
	Role       model.Role `json:"role"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func toUserResponse(user model.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		FullName:   user.FullName,
		Phone:      user.Phone,
		StudentID:  user.StudentID,
		Role:       user.Role,
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string  `json:"email"`
		Username  string  `json:"username"`
		Password  string  `json:"password"`
		FullName  string  `json:"full_name"`
		Phone     *string `json:"phone"`
		StudentID string  `json:"student_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.Email == "" || req.Username == "" || req.FullName == "" || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	exists, err := s.store.UserExists(r.Context(), req.Email, req.Username, req.StudentID)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if exists {
		writeError(w, http.StatusBadRequest, "account_already_exists")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), model.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hash,
		FullName:       req.FullName,
		Phone:          req.Phone,
		StudentID:      req.StudentID,
		Role:           model.RoleUser,
		IsActive:       true,
		CreatedBy:      &req.Username,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "signup", req.Email, true, "")
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.logAuthEvent(r, "login", req.Identifier, false, err.Error())
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "login", req.Identifier, true, "")
	switch v := result.(type) {
	case auth.Token:
		writeJSON(w, http.StatusOK, v)
	case auth.Challenge:
		writeJSON(w, http.StatusOK, v)
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	challenge, err := s.auth.ChallengeStart(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.logAuthEvent(r, "admin_login", req.Identifier, false, err.Error())
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "admin_login", req.Identifier, true, "")
	writeJSON(w, http.StatusOK, challenge)
}

func (s *Server) handleAdminVerifySecurityQuestion(w http.ResponseWriter, r *http.Request) {
	stepToken := bearerToken(r.Header.Get("Authorization"))
	if stepToken == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	token, err := s.auth.ChallengeVerify(r.Context(), stepToken, req.Answer)
	if err != nil {
		s.logAuthEvent(r, "admin_verify", "", false, err.Error())
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "admin_verify", token.User.Email, true, "")
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	token, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.logAuthEvent(r, "refresh", "", false, err.Error())
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "refresh", token.User.Email, true, "")
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		s.logAuthEvent(r, "change_password", user.Email, false, err.Error())
		s.writeAuthError(w, r, err)
		return
	}

	s.logAuthEvent(r, "change_password", user.Email, true, "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if err := s.auth.Logout(r.Context(), user); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	s.logAuthEvent(r, "logout", user.Email, true, "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Email verification codes live in Redis with a short ttl and are consumed
// exactly once via GetDel. Delivery is out of scope so the code is returned
// to the caller.
func (s *Server) handleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if user.IsVerified {
		writeError(w, http.StatusConflict, "already_verified")
		return
	}
	if s.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "redis_not_configured")
		return
	}

	code := uuid.NewString()
	if err := s.redis.Set(r.Context(), verificationKey(user.ID), code, s.cfg.VerificationCodeTTL).Err(); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"code":       code,
		"expires_in": s.cfg.VerificationCodeTTL.String(),
	})
}

func (s *Server) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if s.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "redis_not_configured")
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	stored, err := s.redis.GetDel(r.Context(), verificationKey(user.ID)).Result()
	if err != nil || stored == "" || stored != strings.TrimSpace(req.Code) {
		writeError(w, http.StatusBadRequest, "invalid_code")
		return
	}

	updated, err := s.store.SetUserVerified(r.Context(), user.ID, true, user.Username)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func verificationKey(userID int64) string {
	return "verify:" + strconv.FormatInt(userID, 10)
}
