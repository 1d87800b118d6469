package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/api/response"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72,password"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user"`
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			s.internalError(w, r, "Registration failed", err)
			return
		}

		user := &models.User{
			Email:        strings.ToLower(req.Email),
			PasswordHash: hash,
			Name:         req.Name,
			Role:         models.RoleUser,
		}
		if err := s.storage.SaveUser(r.Context(), user); err != nil {
			if errors.Is(err, storage.ErrEmailExists) {
				response.Error(w, response.CodeEmailExists, "Email already registered")
				return
			}
			s.internalError(w, r, "Registration failed", err)
			return
		}

		s.logger.Info("Register new user", slog.String("user_id", user.ID))

		response.OK(w, http.StatusCreated, AuthResponse{User: user})
	}
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		user, err := s.storage.UserByEmail(r.Context(), strings.ToLower(req.Email))
		if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			s.internalError(w, r, "Login failed", err)
			return
		}
		// same answer for an unknown email and a wrong password
		if user == nil || !s.hasher.Compare(user.PasswordHash, req.Password) {
			response.Error(w, response.CodeInvalidCredentials, "Invalid email or password")
			return
		}

		token, err := s.tokens.NewToken(user.ID, user.Role)
		if err != nil {
			s.internalError(w, r, "Login failed", err)
			return
		}

		response.OK(w, http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

func (s *APIServer) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		if len(verr.fields) > 0 {
			response.ErrorWithDetails(w, response.CodeValidation, verr.message, verr.fields)
			return
		}
		response.Error(w, response.CodeValidation, verr.message)
		return
	}
	s.internalError(w, r, "Internal server error", err)
}

// internalError logs the real cause and answers with a generic message.
func (s *APIServer) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message,
		"error", err,
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestID(r.Context())),
	)
	response.Error(w, response.CodeInternal, message)
}
