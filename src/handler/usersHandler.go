package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/auth"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

const minPasswordLen = 8

type userStore interface {
	FindByLogin(ctx context.Context, usernameOrEmail string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Save(ctx context.Context, u *model.User) error
}

func RegisterHandler(users userStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload model.RegisterPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid register payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
		payload.Username = strings.TrimSpace(payload.Username)

		if payload.Email == "" || payload.Username == "" {
			http.Error(w, "Email and username are required", http.StatusBadRequest)
			return
		}
		if !strings.Contains(payload.Email, "@") {
			http.Error(w, "Invalid email address", http.StatusBadRequest)
			return
		}
		if len(payload.Password) < minPasswordLen {
			http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Error("failed to hash password")
			http.Error(w, "Unable to register", http.StatusInternalServerError)
			return
		}

		user := model.User{
			Email:        payload.Email,
			Username:     payload.Username,
			PasswordHash: string(hashed),
		}
		if err := users.Create(r.Context(), &user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				http.Error(w, "Username or email already taken", http.StatusConflict)
				return
			}
			logger.WithError(err).Error("failed to create user")
			http.Error(w, "Unable to register", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, user.ToResponse())
	}
}

func LoginHandler(cfg auth.Config, users userStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload model.LoginPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid login payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		login := strings.TrimSpace(payload.Username)
		user, err := users.FindByLogin(r.Context(), login)
		if err != nil {
			logger.WithError(err).Error("login lookup failed")
			http.Error(w, "Unable to log in", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
			logger.WithField("user_id", user.ID).Warn("password mismatch on login")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		token, err := auth.MakeToken(cfg, user.ID, user.Username)
		if err != nil {
			logger.WithError(err).Error("failed to issue token")
			http.Error(w, "Unable to log in", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  user.ToResponse(),
		})
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			logger.Warn("user not found in context during profile fetch")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, user.ToResponse())
	}
}

func ChangePasswordHandler(users userStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			logger.Warn("user not found in context during password change")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload model.ChangePasswordPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid change password payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.CurrentPassword == "" || payload.NewPassword == "" {
			http.Error(w, "Current and new passwords are required", http.StatusBadRequest)
			return
		}
		if len(payload.NewPassword) < minPasswordLen {
			http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.CurrentPassword)); err != nil {
			logger.WithField("user_id", user.ID).Warn("current password mismatch")
			http.Error(w, "Invalid current password", http.StatusUnauthorized)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Error("failed to hash new password")
			http.Error(w, "Unable to update password", http.StatusInternalServerError)
			return
		}

		user.PasswordHash = string(hashed)
		if err := users.Save(r.Context(), user); err != nil {
			logger.WithError(err).Error("failed to update user password")
			http.Error(w, "Unable to update password", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
	}
}
