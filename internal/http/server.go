package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/crypto"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
	"campusmarket/internal/storage"
)

type Server struct {
	cfg    config.Config
	store  *repository.Store
	auth   *auth.Service
	redis  *redis.Client
	files  *storage.Local
	logger *zap.Logger

	allowedExtensions map[string]bool
}

func NewServer(cfg config.Config, store *repository.Store, authService *auth.Service, redisClient *redis.Client, files *storage.Local, logger *zap.Logger) *Server {
	return &Server{
		cfg:               cfg,
		store:             store,
		auth:              authService,
		redis:             redisClient,
		files:             files,
		logger:            logger,
		allowedExtensions: cfg.GetAllowedImageExtensions(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.corsMiddleware)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.files.Dir()))))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/admin/login", s.handleAdminLogin)
			r.Post("/admin/verify-security-question", s.handleAdminVerifySecurityQuestion)
			r.Post("/refresh", s.handleRefresh)
			r.With(s.authMiddleware).Get("/me", s.handleMe)
			r.With(s.authMiddleware).Post("/change-password", s.handleChangePassword)
			r.With(s.authMiddleware).Post("/logout", s.handleLogout)
			r.With(s.authMiddleware).Post("/verify/request", s.handleVerifyRequest)
			r.With(s.authMiddleware).Post("/verify/confirm", s.handleVerifyConfirm)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.With(s.requireAdmin).Get("/", s.handleListUsers)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Get("/{id}", s.handleGetUser)
			r.With(s.requireAdmin).Put("/{id}", s.handleAdminUpdateUser)
			r.With(s.requireAdmin).Delete("/{id}", s.handleDeactivateUser)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.With(s.authMiddleware).Post("/", s.handleCreateItem)
			r.With(s.authMiddleware).Get("/my-items", s.handleMyItems)
			r.With(s.authMiddleware, s.requireAdmin).Get("/admin/all", s.handleAdminListItems)
			r.Get("/{id}", s.handleGetItem)
			r.With(s.authMiddleware).Put("/{id}", s.handleUpdateItem)
			r.With(s.authMiddleware).Post("/{id}/mark-sold", s.handleMarkItemSold)
			r.With(s.authMiddleware).Delete("/{id}", s.handleDeleteItem)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireAdmin)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/deactivate", s.handleDeactivateUser)
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/upload", s.handleFileUpload)
			r.Delete("/delete", s.handleFileDelete)
			r.Get("/url", s.handleFileURL)
		})
	})

	return r
}

// Middleware

type userKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeAuthError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey{}).(model.User)
	return user, ok
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if err := s.auth.RequireRole(user, model.RoleAdmin); err != nil {
			s.writeAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := s.cfg.GetAllowedOrigins()
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			// Preflights are answered only for allowed origins; anything
			// else falls through to the router.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Error mapping

func statusForAuthError(err *auth.AuthError) int {
	switch err {
	case auth.ErrNotFound:
		return http.StatusNotFound
	case auth.ErrAccountDeactivated, auth.ErrForbidden, auth.ErrWrongAnswer:
		return http.StatusForbidden
	case auth.ErrWrongCurrentPassword:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

// writeAuthError maps the auth error taxonomy to a response. Anything
// outside the taxonomy is a store or codec failure: logged, reported as a
// generic server error.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		writeError(w, statusForAuthError(authErr), authErr.Code)
		return
	}
	var validationErr *crypto.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, "invalid_password")
		return
	}
	s.logger.Error("internal error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "server_error")
}

func (s *Server) logAuthEvent(r *http.Request, event, identifier string, success bool, reason string) {
	s.logger.Info("auth event",
		zap.String("event", event),
		zap.String("identifier", identifier),
		zap.String("ip", clientIP(r)),
		zap.Bool("success", success),
		zap.String("reason", reason),
	)
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// queryPage reads skip/limit pagination parameters with bounds.
func queryPage(r *http.Request) (limit, offset int64) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
