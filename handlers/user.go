package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/astrodart-api/middleware"
	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

type UserHandler struct {
	Store store.Store
}

// authorizedEmail checks that the body email names the authenticated caller.
func authorizedEmail(c *gin.Context, email string) bool {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	if strings.TrimSpace(email) != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email does not match the signed-in account"})
		return false
	}
	return true
}

func storeError(c *gin.Context, action string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	utils.SafeError("%s failed: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
}

// ============================================================================
// ACCOUNT DELETION
// ============================================================================

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	var req models.DeleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(req.Email)
	ctx := c.Request.Context()

	user, err := h.Store.Get(ctx, email)
	if err != nil {
		storeError(c, "load account", err)
		return
	}

	if ok, _ := utils.CheckPassword(req.Password, user.Password); !ok {
		utils.LogAuthAction("Delete account", email, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := h.Store.Delete(ctx, email); err != nil {
		storeError(c, "delete account", err)
		return
	}

	utils.LogAuthAction("Delete account", email, true)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// ============================================================================
// DOCUMENT UPDATES
// ============================================================================

func (h *UserHandler) UpdateChecklist(c *gin.Context) {
	var req models.ChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !authorizedEmail(c, req.Email) {
		return
	}

	if err := h.Store.Update(c.Request.Context(), middleware.GetUserID(c), models.FieldChecklist, req.Checklist); err != nil {
		storeError(c, "update checklist", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Updated checklist successfully"})
}

func (h *UserHandler) UpdateItems(c *gin.Context) {
	var req models.ItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !authorizedEmail(c, req.Email) {
		return
	}

	for key, link := range req.Items {
		for id, account := range link.Accounts {
			if account.ItemID != "" && account.ItemID != key && account.ItemID != link.ItemID {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Account " + id + " does not belong to item " + key})
				return
			}
		}
	}

	if err := h.Store.Update(c.Request.Context(), middleware.GetUserID(c), models.FieldLinkedItems, req.Items); err != nil {
		storeError(c, "update items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Updated items successfully"})
}

// ============================================================================
// 2FA MANAGEMENT
// ============================================================================

func (h *UserHandler) SetupTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Get(ctx, userID)
	if err != nil {
		storeError(c, "load account", err)
		return
	}
	// A new secret would replace the one login checks against.
	if user.TOTPEnabled {
		c.JSON(http.StatusConflict, gin.H{"error": "2FA is already enabled, disable it first"})
		return
	}

	secret, qrCode, err := utils.GenerateTOTPSecret(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate TOTP"})
		return
	}

	if err := h.Store.Update(ctx, userID, models.FieldTOTPSecret, secret); err != nil {
		storeError(c, "store TOTP secret", err)
		return
	}

	c.JSON(http.StatusOK, models.TOTPSetupResponse{Secret: secret, QRCode: qrCode})
}

func (h *UserHandler) VerifyTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.Get(c.Request.Context(), userID)
	if err != nil {
		storeError(c, "load account", err)
		return
	}
	if user.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "TOTP not set up"})
		return
	}
	if !utils.VerifyTOTP(user.TOTPSecret, req.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid TOTP code"})
		return
	}

	if err := h.Store.Update(c.Request.Context(), userID, models.FieldTOTPEnabled, true); err != nil {
		storeError(c, "enable 2FA", err)
		return
	}

	log.Printf("✅ 2FA enabled for user %s", utils.MaskEmail(userID))
	c.JSON(http.StatusOK, gin.H{
		"message": "2FA enabled successfully",
		"enabled": true,
	})
}

func (h *UserHandler) DisableTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.DisableTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Get(ctx, userID)
	if err != nil {
		storeError(c, "load account", err)
		return
	}
	if ok, _ := utils.CheckPassword(req.Password, user.Password); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}
	if user.TOTPSecret != "" && !utils.VerifyTOTP(user.TOTPSecret, req.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code"})
		return
	}

	if err := h.Store.Update(ctx, userID, models.FieldTOTPEnabled, false); err != nil {
		storeError(c, "disable 2FA", err)
		return
	}
	if err := h.Store.Update(ctx, userID, models.FieldTOTPSecret, ""); err != nil {
		storeError(c, "disable 2FA", err)
		return
	}

	log.Printf("✅ 2FA disabled for user %s", utils.MaskEmail(userID))
	c.JSON(http.StatusOK, gin.H{
		"message": "2FA disabled successfully",
		"enabled": false,
	})
}
