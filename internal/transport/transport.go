package transport

import (
	"net/http"

	"github.com/cmwillett/wapiti-sub000/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// principalHeader carries the opaque authenticated principal. Authentication
// itself lives in an external collaborator; this service only consumes the
// identity it produces.
const principalHeader = "X-Principal"

func principalFrom(c *gin.Context) string {
	return c.GetHeader(principalHeader)
}

func InitRoutes(
	subscriptionHandler *SubscriptionHandler,
	dispatchHandler *DispatchHandler,
	reminderHandler *ReminderHandler,
	preferenceHandler *PreferenceHandler,
) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+principalHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		// Subscription routes (device reconciliation surface)
		subscriptions := api.Group("/subscriptions")
		{
			subscriptions.POST("", subscriptionHandler.Register)
			subscriptions.GET("", subscriptionHandler.List)
			subscriptions.DELETE("", subscriptionHandler.Wipe)
			subscriptions.DELETE("/endpoint", subscriptionHandler.RemoveEndpoint)
		}

		// Reminder routes (task-store surface + action callbacks)
		reminders := api.Group("/reminders")
		{
			reminders.POST("", reminderHandler.Create)
			reminders.GET("", reminderHandler.List)
			reminders.POST("/:id/action", reminderHandler.Action)
		}

		// Dispatch routes
		dispatch := api.Group("/dispatch")
		{
			dispatch.POST("/run", dispatchHandler.RunScanOnce)
		}

		// Client heartbeat triggers a per-principal scan
		api.POST("/heartbeat", dispatchHandler.Heartbeat)

		// Delivery channel preference
		preferences := api.Group("/preferences")
		{
			preferences.GET("", preferenceHandler.Get)
			preferences.PUT("", preferenceHandler.Set)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.GET("/dlq", dispatchHandler.DLQEvents)
			admin.GET("/dlq/stats", dispatchHandler.DLQStats)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
