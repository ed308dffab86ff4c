// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	pmail "github.com/parleyhq/parley/internal/mail"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/otp"
)

type requestOTPRequest struct {
	Email string `json:"email"`
}

// handleRequestOTP issues a one-time code and mails it. The response never
// reveals whether the address is already registered.
func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, errors.New("invalid email address"))
		return
	}

	exists, err := s.users.EmailExists(r.Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Msg("email lookup failed")
		writeInternal(w)
		return
	}
	if exists {
		// Same response as the success path.
		writeJSON(w, http.StatusAccepted, map[string]string{"detail": "verification code sent"})
		return
	}

	code, err := s.otp.Issue(r.Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Msg("otp issue failed")
		writeInternal(w)
		return
	}
	metrics.IncOTPIssued()

	subject, body := pmail.OTPBody(code)
	if err := s.mailer.Send(r.Context(), email, subject, body); err != nil {
		s.logger.Error().Err(err).Str("event", "mail.send_failed").Msg("otp mail failed")
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"detail": "verification code sent"})
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	OTP       string `json:"otp"`
}

// handleRegister creates the account once the emailed code checks out.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" {
		writeError(w, errors.New("username is required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, errors.New("invalid email address"))
		return
	}
	if req.Password != req.Password2 {
		writeError(w, errors.New("passwords do not match"))
		return
	}

	if err := s.otp.Verify(r.Context(), email, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrCodeMismatch):
			metrics.IncOTPVerify("mismatch")
			writeError(w, errors.New("wrong verification code"))
		case errors.Is(err, otp.ErrCodeExpired):
			metrics.IncOTPVerify("expired")
			writeError(w, errors.New("verification code expired, request a new one"))
		default:
			s.logger.Error().Err(err).Msg("otp verify failed")
			writeInternal(w)
		}
		return
	}
	metrics.IncOTPVerify("success")

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := s.users.Create(r.Context(), req.Username, email, hash)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeConflict(w, errors.New("username or email already taken"))
			return
		}
		s.logger.Error().Err(err).Msg("user create failed")
		writeInternal(w)
		return
	}
	metrics.IncRegistration()

	pair, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("token issue failed")
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleToken is the login endpoint.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncAuthAttempt("unknown_user")
			writeUnauthorized(w)
			return
		}
		s.logger.Error().Err(err).Msg("user lookup failed")
		writeInternal(w)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		metrics.IncAuthAttempt("bad_password")
		writeUnauthorized(w)
		return
	}
	if !user.Active {
		metrics.IncAuthAttempt("inactive")
		writeUnauthorized(w)
		return
	}
	metrics.IncAuthAttempt("success")

	pair, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("token issue failed")
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	pair, err := s.tokens.Refresh(req.Refresh)
	if err != nil {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	user, err := s.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, errors.New("username is required"))
		return
	}

	user, err := s.users.UpdateProfile(r.Context(), principal.UserID, req.Username, req.AvatarURL)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeConflict(w, errors.New("username already taken"))
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
