package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/docs"
)

// maxBodyBytes caps request bodies; every payload here is a few short strings
const maxBodyBytes = 64 << 10

const internalErrorMessage = "internal server error"

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid refresh token"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports the state of each dependency
// @Description Readiness response with per-dependency status
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the user and credential stores
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for name, check := range s.checks {
		if err := check.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleOpenAPI serves the registered API document
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		s.fault(w, r, "read api document", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Exchange an email and password for a 30 minute access token.
// @Description  Unknown users and wrong passwords get the same 401 body.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request   body      domain.LoginRequest  false  "Login credentials"
// @Param        username  query     string               false  "Email, when no body is sent"
// @Param        password  query     string               false  "Password, when no body is sent"
// @Success      200       {object}  domain.AuthResult
// @Failure      400       {object}  ErrorResponse      "Invalid request body"
// @Failure      401       {object}  domain.AuthResult  "Denied"
// @Failure      500       {object}  ErrorResponse      "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	if req.Username == "" && req.Password == "" {
		q := r.URL.Query()
		req.Username, req.Password = q.Get("username"), q.Get("password")
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		s.fault(w, r, "authenticate", err)
		return
	}

	if resp.Outcome != domain.AuthSuccess {
		writeJSON(w, http.StatusUnauthorized, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Rotate a refresh token into a new one and a 60 minute access token.
// @Description  The presented refresh token stops working immediately.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request        body      domain.RefreshRequest  false  "Refresh token"
// @Param        refresh_token  query     string                 false  "Refresh token, when no body is sent"
// @Success      200            {object}  domain.RefreshResult
// @Failure      400            {object}  ErrorResponse  "Invalid request body"
// @Failure      401            {object}  ErrorResponse  "Invalid refresh token"
// @Failure      500            {object}  ErrorResponse  "Internal server error"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = r.URL.Query().Get("refresh_token")
	}

	resp, err := s.authService.Refresh(r.Context(), req)
	if err != nil {
		s.fault(w, r, "refresh", err)
		return
	}

	if resp.Outcome != domain.RefreshSuccess {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Revoke an access credential
// @Description  Revoke an API key taken from the body, the query or the Authorization header.
// @Description  Revoking an unknown or already revoked key is not an error.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request       body      domain.RevokeRequest  false  "Access token"
// @Param        access_token  query     string                false  "Access token, when no body is sent"
// @Security     BearerAuth
// @Success      200           {object}  domain.RevokeResult
// @Failure      400           {object}  ErrorResponse  "Invalid request body"
// @Failure      500           {object}  ErrorResponse  "Internal server error"
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req domain.RevokeRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = r.URL.Query().Get("access_token")
	}
	if req.AccessToken == "" {
		req.AccessToken = extractBearerToken(r)
	}

	resp, err := s.authService.Revoke(r.Context(), req)
	if err != nil {
		s.fault(w, r, "revoke", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// User endpoints

// handleGetMe godoc
// @Summary      Get current identity
// @Description  Resolve the presented bearer token (JWT or API key)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AuthContext
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, authCtx)
}

// Helper functions

// decodeRequest reads an optional JSON body into v. It writes a 400 and
// returns false when the body is present but malformed.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fault logs an infrastructure error and writes the generic 500 body
func (s *Server) fault(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.InfoContext(r.Context(), "request cancelled", "op", op)
	} else {
		s.logger.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
	}
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
