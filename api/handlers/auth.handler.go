package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Waesta/Wapos-sub011/internal/dbrepo"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type userStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type AuthHandler struct {
	DB     userStore
	jwtCfg models.JWTConfig
	logger *zap.Logger
}

func NewAuthHandler(db userStore, jwtCfg models.JWTConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, jwtCfg: jwtCfg, logger: logger}
}

// Signin handles POST /api/v1/signin. A valid username and password answer
// with the bearer token the AuthUser middleware accepts.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := utils.ReadJSON(w, r, &creds); err != nil {
		utils.BadRequest(w, err)
		return
	}

	user, err := h.DB.GetUserByUsername(r.Context(), creds.Username)
	if err != nil {
		if errors.Is(err, dbrepo.ErrUserNotFound) {
			utils.Unauthorized(w, "invalid credentials")
			return
		}
		h.logger.Error("signin lookup failed", zap.String("username", creds.Username), zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	if !utils.CheckPassword(creds.Password, user.PasswordHash) {
		h.logger.Warn("signin rejected", zap.String("username", creds.Username))
		utils.Unauthorized(w, "invalid credentials")
		return
	}

	token, err := utils.GenerateJWT(models.JWT{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Role:     user.Role,
	}, h.jwtCfg)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("username", creds.Username), zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	h.logger.Info("user signed in", zap.String("username", user.Username))

	resp := map[string]any{
		"error":  false,
		"status": "success",
		"token":  token,
		"user":   user,
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
