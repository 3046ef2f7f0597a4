package transport

import (
	"errors"
	"net/http"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	preferenceService service.PreferenceService
}

func NewPreferenceHandler(preferenceService service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	pref, err := h.preferenceService.Get(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pref)
}

func (h *PreferenceHandler) Set(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req struct {
		Channel entity.DeliveryChannel `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref, err := h.preferenceService.Set(c.Request.Context(), principal, req.Channel)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown delivery channel"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pref)
}
