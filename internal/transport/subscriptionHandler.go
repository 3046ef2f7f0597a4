package transport

import (
	"errors"
	"net/http"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	registrationService service.RegistrationService
}

func NewSubscriptionHandler(registrationService service.RegistrationService) *SubscriptionHandler {
	return &SubscriptionHandler{registrationService: registrationService}
}

func (h *SubscriptionHandler) Register(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req entity.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.OwnerID = principal

	reg, created, err := h.registrationService.Register(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, reg)
}

func (h *SubscriptionHandler) List(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	regs, err := h.registrationService.List(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}

func (h *SubscriptionHandler) RemoveEndpoint(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.registrationService.RemoveEndpoint(c.Request.Context(), principal, req.Endpoint)
	if err != nil {
		if errors.Is(err, entity.ErrRegistrationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (h *SubscriptionHandler) Wipe(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	removed, err := h.registrationService.Wipe(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
