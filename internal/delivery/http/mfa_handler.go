package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

// MFAHandler handles 2FA enrollment and management for signed-in users.
type MFAHandler struct {
	usecase *usecase.TwoFactorManager
}

// NewMFAHandler registers the 2FA management routes. They inherit the
// default authenticated access level.
func NewMFAHandler(g *echo.Group, u *usecase.TwoFactorManager) {
	handler := &MFAHandler{usecase: u}

	g.POST("/setup", handler.Setup)
	g.POST("/enable", handler.Enable)
	g.POST("/disable", handler.Disable)
	g.POST("/backup-codes", handler.RegenerateBackupCodes)
}

// mfaCodeRequest carries the current TOTP code.
type mfaCodeRequest struct {
	Code string `json:"code" form:"code"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// Setup generates a new TOTP secret and returns the otpauth URI for the QR code.
func (h *MFAHandler) Setup(c echo.Context) error {
	enrollment, err := h.usecase.BeginSetup(c.Request().Context(), AuthFrom(c).Session)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, enrollment)
}

// Enable verifies the first code and turns on 2FA. The backup codes in the
// response are never shown again.
func (h *MFAHandler) Enable(c echo.Context) error {
	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{Code: "invalid_input", Message: "invalid request body"}})
	}

	codes, err := h.usecase.ConfirmSetup(c.Request().Context(), AuthFrom(c).Session, req.Code, c.RealIP())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (h *MFAHandler) Disable(c echo.Context) error {
	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{Code: "invalid_input", Message: "invalid request body"}})
	}

	if err := h.usecase.Disable(c.Request().Context(), AuthFrom(c).Session, req.Code, c.RealIP()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"two_factor_enabled": false})
}

func (h *MFAHandler) RegenerateBackupCodes(c echo.Context) error {
	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{Code: "invalid_input", Message: "invalid request body"}})
	}

	codes, err := h.usecase.RegenerateBackupCodes(c.Request().Context(), AuthFrom(c).Session, req.Code, c.RealIP())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, backupCodesResponse{BackupCodes: codes})
}
