package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"campusmarket/internal/model"
)

func userFolder(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, "unsupported_file_type")
		return
	}

	url, err := s.files.Save(userFolder(user.ID), header.Filename, file)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"url":      url,
		"filename": header.Filename,
	})
}

// handleFileDelete removes a stored object by its public URL. Users may only
// delete files in their own folder; admins may delete anything.
func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	key, ok := s.files.Key(strings.TrimSpace(req.URL))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}
	if user.Role != model.RoleAdmin && !strings.HasPrefix(key, userFolder(user.ID)+"/") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.files.Delete(key); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted"})
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid_key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": s.files.URL(key)})
}
