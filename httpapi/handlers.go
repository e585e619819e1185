package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authcore "github.com/campuskit/authcore"
	"github.com/campuskit/authcore/middleware"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=admin teacher student parent"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type accountPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Verified    bool   `json:"verified"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type tokenPairPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func accountToPayload(a *authcore.Account) accountPayload {
	return accountPayload{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Role:        string(a.Role),
		Verified:    a.Verified,
		Status:      a.Status.String(),
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// decode parses and validates the JSON body into dst.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	result, err := s.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        authcore.Role(req.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	success(w, http.StatusCreated, "account created, verification email sent", map[string]interface{}{
		"account": accountToPayload(result.Account),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	pair, err := s.engine.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	success(w, http.StatusOK, "login successful", tokenPairPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	if err := s.engine.Logout(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "logged out", nil)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	pair, err := s.engine.Refresh(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	success(w, http.StatusOK, "token refreshed", tokenPairPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		failure(w, http.StatusBadRequest, "missing token")
		return
	}

	r = requestContext(r)
	if err := s.engine.VerifyEmail(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "email verified", nil)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	// Generic on purpose: the same body for known and unknown addresses.
	success(w, http.StatusOK, "if the address is registered and unverified, a new verification email has been sent", nil)
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "if the address is registered, a password reset email has been sent", nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	r = requestContext(r)
	if err := s.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "password reset", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		failure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := s.engine.Account(r.Context(), identity.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "", map[string]interface{}{
		"account": accountToPayload(account),
	})
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	r = requestContext(r)
	if err := s.engine.Suspend(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "account suspended", nil)
}

func (s *Server) handleReinstate(w http.ResponseWriter, r *http.Request) {
	r = requestContext(r)
	if err := s.engine.Reinstate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "account reinstated", nil)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	r = requestContext(r)
	if err := s.engine.Unlock(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "account unlocked", nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	r = requestContext(r)
	if err := s.engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "account deleted", nil)
}
