package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const invalidCredentialsMessage = "Неверный Логин или Пароль"

type AuthEndpoints struct {
	authService *AuthService
	validator   *RequestValidator
}

type RegisterRequest struct {
	Username         string `json:"username" validate:"required,notblank,min=3,max=100"`
	Email            string `json:"email" validate:"required,email,max=255"`
	Password         string `json:"password" validate:"required,min=6,max=72"`
	SubscriptionTier string `json:"subscriptionTier,omitempty" validate:"omitempty,oneof=free premium pro"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the body of both /register and /auth
type AuthResponse struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewAuthEndpoints(authService *AuthService, validator *RequestValidator) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
		validator:   validator,
	}
}

func (e *AuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/register", e.RegisterHandler)
	r.Post("/auth", e.LoginHandler)
}

func (e *AuthEndpoints) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthResponse(w, http.StatusBadRequest, AuthResponse{Message: "Invalid request body"})
		return
	}
	if err := e.validator.Validate(req); err != nil {
		writeAuthResponse(w, http.StatusBadRequest, AuthResponse{Message: registrationFailed(err)})
		return
	}

	user, token, err := e.authService.Register(r.Context(), RegisterInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		SubscriptionTier: req.SubscriptionTier,
	})
	if err != nil {
		slog.Error("Registration failed", "error", err, "email", req.Email)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUserExists) {
			status = http.StatusConflict
		}
		writeAuthResponse(w, status, AuthResponse{Message: registrationFailed(err)})
		return
	}

	writeAuthResponse(w, http.StatusOK, AuthResponse{
		Token:   token,
		Success: true,
		Message: welcomeMessage(user.Username),
	})
	slog.Info("User signed up", "user_id", user.ID, "email", user.Email)
}

func (e *AuthEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthResponse(w, http.StatusBadRequest, AuthResponse{Message: "Invalid request body"})
		return
	}
	if err := e.validator.Validate(req); err != nil {
		writeAuthResponse(w, http.StatusBadRequest, AuthResponse{Message: err.Error()})
		return
	}

	user, token, err := e.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			slog.Warn("Login failed", "email", req.Email)
			writeAuthResponse(w, http.StatusUnauthorized, AuthResponse{Message: invalidCredentialsMessage})
			return
		}
		slog.Error("Login failed", "error", err, "email", req.Email)
		writeAuthResponse(w, http.StatusInternalServerError, AuthResponse{Message: "Internal server error"})
		return
	}

	writeAuthResponse(w, http.StatusOK, AuthResponse{
		Token:   token,
		Success: true,
		Message: welcomeMessage(user.Username),
	})
	slog.Info("User logged in", "user_id", user.ID, "email", user.Email)
}

func welcomeMessage(username string) string {
	return fmt.Sprintf("Добро пожаловать %s", username)
}

func registrationFailed(err error) string {
	return fmt.Sprintf("Ошибка при регистрации: %s", err.Error())
}

func writeAuthResponse(w http.ResponseWriter, status int, response AuthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
