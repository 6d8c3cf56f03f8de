package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/domain/user"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/infrastructure/store"
)

// AuthHandlers serves registration, login, and password management.
type AuthHandlers struct {
	users  store.UserStore
	jwt    *auth.JWTService
	mailer *email.Service
}

func NewAuthHandlers(users store.UserStore, jwtService *auth.JWTService, mailer *email.Service) *AuthHandlers {
	return &AuthHandlers{users: users, jwt: jwtService, mailer: mailer}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Register creates a customer account and signs the new user in.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = user.NormalizeEmail(req.Email)
	if !strings.Contains(req.Email, "@") {
		respondJSONError(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondJSONError(w, "Name is required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("hashing password failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	u := &user.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         user.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			respondJSONError(w, "Email already registered", http.StatusConflict)
			return
		}
		log.WithError(err).Error("creating user failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.setAuthCookies(w, r, u); err != nil {
		log.WithError(err).Error("issuing auth tokens failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendWelcome(u.Email, u.Name); err != nil {
		log.WithError(err).WithField("to", u.Email).Error("sending welcome email failed")
	}

	respondJSON(w, http.StatusCreated, AuthResponse{User: userResponse(u), Message: "Registration successful"})
}

// Login verifies credentials and sets auth cookies.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.GetByEmail(r.Context(), user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		log.WithError(err).Error("looking up user failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := h.setAuthCookies(w, r, u); err != nil {
		log.WithError(err).Error("issuing auth tokens failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{User: userResponse(u), Message: "Login successful"})
}

// Logout clears auth cookies.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Refresh exchanges a valid refresh token for fresh cookies.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwt.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "User not found", http.StatusUnauthorized)
		return
	}

	if err := h.setAuthCookies(w, r, u); err != nil {
		log.WithError(err).Error("issuing auth tokens failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// Me returns the authenticated user.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(u))
}

// ChangePassword verifies the current password and stores a new hash.
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if !auth.CheckPassword(req.CurrentPassword, u.PasswordHash) {
		respondJSONError(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondJSONError(w, "New password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("hashing password failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.users.UpdatePassword(r.Context(), u.ID, hash); err != nil {
		log.WithError(err).Error("updating password failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// ForgotPassword issues a single-use reset token. The response never reveals
// whether the address has an account.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	genericOK := map[string]string{"message": "If that email is registered, a reset link has been sent"}

	u, err := h.users.GetByEmail(r.Context(), user.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			log.WithError(err).Error("looking up user failed")
		}
		respondJSON(w, http.StatusOK, genericOK)
		return
	}

	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		log.WithError(err).Error("generating reset token failed")
		respondJSON(w, http.StatusOK, genericOK)
		return
	}

	if err := h.users.SetResetToken(r.Context(), u.ID, hash, time.Now().UTC().Add(user.ResetTokenTTL)); err != nil {
		log.WithError(err).Error("storing reset token failed")
		respondJSON(w, http.StatusOK, genericOK)
		return
	}

	if err := h.mailer.SendPasswordReset(u.Email, raw); err != nil {
		log.WithError(err).WithField("to", u.Email).Error("sending reset email failed")
	}
	respondJSON(w, http.StatusOK, genericOK)
}

// ResetPassword consumes a reset token and stores the new password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Hash the new password before consuming the token so a weak password
	// does not burn a valid token.
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("hashing password failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	u, err := h.users.ConsumeResetToken(r.Context(), auth.HashResetToken(req.Token))
	if err != nil {
		if errors.Is(err, user.ErrResetTokenInvalid) {
			respondJSONError(w, "Invalid or expired reset token", http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("consuming reset token failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.users.UpdatePassword(r.Context(), u.ID, hash); err != nil {
		log.WithError(err).Error("updating password failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}

// Cookie helpers

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, u *user.User) error {
	accessToken, accessExpiry, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return fmt.Errorf("signing access token: %w", err)
	}
	refreshToken, refreshExpiry, err := h.jwt.GenerateRefreshToken(u.ID)
	if err != nil {
		return fmt.Errorf("signing refresh token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth/refresh",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
