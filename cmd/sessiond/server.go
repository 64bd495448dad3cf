package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/rate"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userdir"
)

const maxBodyBytes = 16 << 10

type server struct {
	engine       *goSession.Engine
	users        *userdir.Directory
	logger       *slog.Logger
	limiter      *rate.Limiter
	exposeResets bool
}

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Identifier string `json:"identifier"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type activeRequest struct {
	Active *bool `json:"active"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// routes wires every engine operation onto a ServeMux.
func (s *server) routes(requireHTTPS bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promexport.NewCollector(s.engine).Handler())

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/password-reset", s.handleResetRequest)
	mux.HandleFunc("POST /auth/password-reset/confirm", s.handleResetConfirm)

	mux.Handle("GET /auth/me", middleware.RequireAuthenticated(s.engine)(http.HandlerFunc(s.handleMe)))
	mux.Handle("DELETE /auth/me", middleware.RequireAuthenticated(s.engine)(http.HandlerFunc(s.handleDeleteMe)))

	admin := middleware.RequireRoles(s.engine, "admin")
	mux.Handle("GET /admin/security-report", admin(http.HandlerFunc(s.handleSecurityReport)))
	mux.Handle("POST /admin/users/{id}/role", admin(http.HandlerFunc(s.handleSetRole)))
	mux.Handle("POST /admin/users/{id}/active", admin(http.HandlerFunc(s.handleSetActive)))

	var h http.Handler = mux
	if requireHTTPS {
		h = httpsOnly(h)
	}
	return h
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.users.Create(r.Context(), req.Identifier, req.Password, "member")
	if err != nil {
		writeError(w, http.StatusBadRequest, "registration rejected")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.ID, "role": id.Role})
}

// handleLogin accepts JSON or an OAuth2-style password form.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req.Identifier = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if !decodeJSON(w, r, &req) {
		return
	}

	ip := middleware.ClientIP(r)
	ctx := goSession.WithClientIP(r.Context(), ip)
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, req.Identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				writeError(w, http.StatusTooManyRequests, "too many failed attempts")
				return
			}
			s.logger.WarnContext(ctx, "sessiond: login limiter unavailable", "error", err.Error())
			writeError(w, http.StatusServiceUnavailable, "login temporarily unavailable")
			return
		}
	}

	access, refresh, err := s.engine.Login(ctx, req.Identifier, req.Password)
	switch {
	case errors.Is(err, goSession.ErrSessionCreationFailed):
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	case err != nil:
		s.recordLoginFailure(ctx, req.Identifier, ip)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		if s.limiter != nil {
			if err := s.limiter.Reset(ctx, req.Identifier, ip); err != nil {
				s.logger.WarnContext(ctx, "sessiond: login limiter reset failed", "error", err.Error())
			}
		}
		writeJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
	}
}

func (s *server) recordLoginFailure(ctx context.Context, identifier, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Fail(ctx, identifier, ip); err != nil {
		s.logger.WarnContext(ctx, "sessiond: login limiter update failed", "error", err.Error())
	}
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	access, refresh, err := s.engine.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

// handleLogout always answers 204. The access token may come from the body or
// the Authorization header.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = bearerToken(r)
	}
	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	s.engine.Logout(ctx, req.AccessToken, req.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": res.UserID, "role": res.Role})
}

// handleDeleteMe removes the caller's account and revokes the presented
// access token. Other sessions fail on their next authorize or refresh.
func (s *server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	if err := s.users.Remove(ctx, res.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.engine.Logout(ctx, bearerToken(r), "")
	w.WriteHeader(http.StatusNoContent)
}

// handleSetRole changes a user's role. The directory is authoritative, so the
// change applies to the user's next request without reissuing tokens.
func (s *server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, http.StatusBadRequest, "role required")
		return
	}
	if err := s.users.SetRole(r.Context(), r.PathValue("id"), role); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.logger.InfoContext(r.Context(), "sessiond: role changed", "user_id", r.PathValue("id"), "role", role)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active required")
		return
	}
	if err := s.users.SetActive(r.Context(), r.PathValue("id"), *req.Active); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.logger.InfoContext(r.Context(), "sessiond: account status changed", "user_id", r.PathValue("id"), "active", *req.Active)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSecurityReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SecurityReport())
}

// handleResetRequest answers 202 whether or not the identifier exists.
func (s *server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	token, err := s.engine.RequestPasswordReset(ctx, req.Identifier)
	switch {
	case errors.Is(err, goSession.ErrPasswordResetDisabled):
		writeError(w, http.StatusNotFound, "password reset disabled")
		return
	case errors.Is(err, goSession.ErrPasswordResetInvalid):
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "password reset unavailable")
		return
	}

	// Delivery is out of scope for the daemon; a real deployment mails token.
	s.logger.InfoContext(ctx, "sessiond: password reset issued")
	if s.exposeResets {
		writeJSON(w, http.StatusAccepted, map[string]string{"reset_token": token})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	err := s.engine.ConfirmPasswordReset(ctx, req.Token, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, goSession.ErrPasswordResetDisabled):
		writeError(w, http.StatusNotFound, "password reset disabled")
	case errors.Is(err, goSession.ErrPasswordResetUnavailable):
		writeError(w, http.StatusServiceUnavailable, "password reset unavailable")
	default:
		writeError(w, http.StatusBadRequest, "invalid or expired reset token")
	}
}

func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func httpsOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			writeError(w, http.StatusForbidden, "HTTPS required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
