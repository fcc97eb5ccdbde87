package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/crypto"
	"campusmarket/internal/db"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
	"campusmarket/internal/storage"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("MARKETPLACE_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("MARKETPLACE_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("schema error: %v", err)
	}
	return pool
}

func newTestServer(t *testing.T, pool *pgxpool.Pool) (*httptest.Server, *repository.Store) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:              "test-secret",
		JWTAlgorithm:           "HS256",
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        7 * 24 * time.Hour,
		StepTokenTTL:           5 * time.Minute,
		VerificationCodeTTL:    15 * time.Minute,
		MaxUploadSize:          1 << 20,
		AllowedImageExtensions: ".jpg,.png",
		AllowedOrigins:         "*",
	}
	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	store := repository.NewStore(pool)
	authService := auth.NewService(store, codec, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.StepTokenTTL)
	files, err := storage.NewLocal(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("storage error: %v", err)
	}
	server := NewServer(cfg, store, authService, nil, files, zap.NewNop())
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app, store
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	} `json:"user"`
}

func TestSignupLoginAndItems(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestServer(t, pool)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	email := "alice." + suffix + "@example.local"
	username := "alice" + suffix

	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/signup", "", map[string]interface{}{
		"email":      email,
		"username":   username,
		"password":   "secret1",
		"full_name":  "Alice Example",
		"student_id": "S" + suffix,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A duplicate signup is rejected.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/signup", "", map[string]interface{}{
		"email":      email,
		"username":   username,
		"password":   "secret1",
		"full_name":  "Alice Example",
		"student_id": "S" + suffix,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate signup: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": email,
		"password":   "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var token tokenBody
	decodeBody(t, resp, &token)
	if token.AccessToken == "" || token.TokenType != "bearer" || token.User.Role != "user" {
		t.Fatalf("unexpected token body: %+v", token)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", token.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Item lifecycle: create, fetch, mark sold, soft delete.
	resp = doReq(t, http.MethodPost, app.URL+"/api/items/", token.AccessToken, map[string]interface{}{
		"title":       "Calculus textbook",
		"description": "Barely used",
		"price":       25.50,
		"condition":   "good",
		"category":    "textbooks",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d", resp.StatusCode)
	}
	var item struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &item)
	if item.Status != "available" {
		t.Fatalf("expected available item, got %s", item.Status)
	}

	itemURL := fmt.Sprintf("%s/api/items/%d", app.URL, item.ID)
	resp = doReq(t, http.MethodGet, itemURL, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get item: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, itemURL+"/mark-sold", token.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark sold: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodDelete, itemURL, token.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete item: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Soft-deleted items are invisible.
	resp = doReq(t, http.MethodGet, itemURL, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get removed item: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestServer(t, pool)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/signup", "", map[string]interface{}{
		"email":      "bob." + suffix + "@example.local",
		"username":   "bob" + suffix,
		"password":   "secret1",
		"full_name":  "Bob Example",
		"student_id": "S" + suffix,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": "bob" + suffix,
		"password":   "secret1",
	})
	var token tokenBody
	decodeBody(t, resp, &token)

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/logout", token.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The unexpired token no longer authenticates.
	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", token.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error != "token_revoked" {
		t.Fatalf("expected token_revoked, got %q", body.Error)
	}

	// Refresh still works and issues a fresh pair.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": token.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	var refreshed tokenBody
	decodeBody(t, resp, &refreshed)

	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", refreshed.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me after refresh: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminTwoStepLogin(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, store := newTestServer(t, pool)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	hash, err := crypto.HashPassword("adminpw")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	admin, err := store.CreateUser(context.Background(), model.User{
		Email:          "admin." + suffix + "@example.local",
		Username:       "admin" + suffix,
		HashedPassword: hash,
		FullName:       "Admin Example",
		StudentID:      "A" + suffix,
		Role:           model.RoleAdmin,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("create admin error: %v", err)
	}

	// A plain login never yields full tokens for an admin.
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": admin.Email,
		"password":   "adminpw",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d", resp.StatusCode)
	}
	var challenge struct {
		StepToken        string `json:"step_token"`
		SecurityQuestion string `json:"security_question"`
	}
	decodeBody(t, resp, &challenge)
	if challenge.StepToken == "" || challenge.SecurityQuestion == "" {
		t.Fatalf("expected challenge, got %+v", challenge)
	}

	// Wrong answer fails, correct answer issues full tokens.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/admin/verify-security-question", challenge.StepToken, map[string]string{
		"answer": "wrong",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong answer: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/admin/verify-security-question", challenge.StepToken, map[string]string{
		"answer": "Baahubali",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}
	var token tokenBody
	decodeBody(t, resp, &token)
	if token.User.Role != "admin" || token.AccessToken == "" {
		t.Fatalf("unexpected token body: %+v", token)
	}

	// Admin surface is reachable with the full token.
	resp = doReq(t, http.MethodGet, app.URL+"/api/admin/users", token.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin users: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The step token itself never authenticates ordinary requests: it decodes
	// as an access token but was never persisted on the record.
	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", challenge.StepToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me with step token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChangePasswordFlow(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestServer(t, pool)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/signup", "", map[string]interface{}{
		"email":      "carol." + suffix + "@example.local",
		"username":   "carol" + suffix,
		"password":   "secret1",
		"full_name":  "Carol Example",
		"student_id": "S" + suffix,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": "carol" + suffix,
		"password":   "secret1",
	})
	var token tokenBody
	decodeBody(t, resp, &token)

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/change-password", token.AccessToken, map[string]string{
		"current_password": "nope",
		"new_password":     "secret2",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong current password: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/change-password", token.AccessToken, map[string]string{
		"current_password": "secret1",
		"new_password":     "secret2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Old token is revoked, old password fails, new password works.
	resp = doReq(t, http.MethodGet, app.URL+"/api/auth/me", token.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after change: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": "carol" + suffix,
		"password":   "secret1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"identifier": "carol" + suffix,
		"password":   "secret2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
