package transport

import (
	"net/http"
	"strconv"

	"github.com/cmwillett/wapiti-sub000/internal/service"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"

	"github.com/gin-gonic/gin"
)

type DispatchHandler struct {
	dispatchService service.DispatchService
	dlq             queue.DLQHandler
}

func NewDispatchHandler(dispatchService service.DispatchService, dlq queue.DLQHandler) *DispatchHandler {
	return &DispatchHandler{dispatchService: dispatchService, dlq: dlq}
}

// RunScanOnce is the manual/scheduled trigger. With ?test=1 it sends a test
// notification to the calling principal's devices instead of a real pass.
func (h *DispatchHandler) RunScanOnce(c *gin.Context) {
	if c.Query("test") == "1" {
		principal := principalFrom(c)
		if principal == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
			return
		}
		report, err := h.dispatchService.SendTest(c.Request.Context(), principal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	report, err := h.dispatchService.RunScanOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Heartbeat is the active-client path: scan just this principal's reminders.
func (h *DispatchHandler) Heartbeat(c *gin.Context) {
	principal := principalFrom(c)
	if principal == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	report, err := h.dispatchService.ScanOwner(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *DispatchHandler) DLQEvents(c *gin.Context) {
	if h.dlq == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dead letter queue not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.dlq.GetEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *DispatchHandler) DLQStats(c *gin.Context) {
	if h.dlq == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dead letter queue not configured"})
		return
	}

	stats, err := h.dlq.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
