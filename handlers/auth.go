package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

type AuthHandler struct {
	Store     store.Store
	JWTSecret string
	TokenTTL  time.Duration
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(req.Email)
	ctx := c.Request.Context()

	_, err := h.Store.Get(ctx, email)
	if err == nil {
		utils.LogAuthAction("Signup", email, false)
		c.JSON(http.StatusConflict, gin.H{"error": "There is already an account with this email"})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		utils.SafeError("Signup lookup for %s failed: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.NewUser(email, req.FirstName, req.LastName, passwordHash)
	if err := h.Store.Put(ctx, user); err != nil {
		utils.SafeError("Signup put for %s failed: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	accessToken, err := utils.GenerateAccessToken(h.JWTSecret, email, h.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	utils.LogAuthAction("Signup", email, true)
	c.JSON(http.StatusCreated, models.AuthResponse{Data: models.NewUserData(accessToken, user)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(req.Email)
	ctx := c.Request.Context()

	user, err := h.Store.Get(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		utils.LogAuthAction("Login", email, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		utils.SafeError("Login lookup for %s failed: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	ok, legacy := utils.CheckPassword(req.Password, user.Password)
	if !ok {
		utils.LogAuthAction("Login", email, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.TOTPEnabled {
		if req.TOTPCode == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "2FA code required", "requires_2fa": true})
			return
		}
		if !utils.VerifyTOTP(user.TOTPSecret, req.TOTPCode) {
			utils.LogAuthAction("Login 2FA", email, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code"})
			return
		}
	}

	if legacy {
		h.upgradePassword(c, email, req.Password)
	}

	accessToken, err := utils.GenerateAccessToken(h.JWTSecret, email, h.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	utils.LogAuthAction("Login", email, true)
	c.JSON(http.StatusOK, models.AuthResponse{Data: models.NewUserData(accessToken, user)})
}

// upgradePassword replaces a legacy digest with a bcrypt hash. Failure is
// logged only; the login itself already succeeded.
func (h *AuthHandler) upgradePassword(c *gin.Context, email, password string) {
	hash, err := utils.HashPassword(password)
	if err == nil {
		err = h.Store.Update(c.Request.Context(), email, models.FieldPassword, hash)
	}
	if err != nil {
		utils.SafeWarn("Password upgrade for %s failed: %v", email, err)
		return
	}
	utils.SafeInfo("Password hash upgraded for %s", email)
}
