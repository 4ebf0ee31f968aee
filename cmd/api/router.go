package api

import (
	"net/http"
	"time"

	"followq-backend/internal/queue/delivery"
	"followq-backend/internal/queue/scheduler"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, queueHandler *delivery.QueueHandler, sweep *scheduler.Sweep) {
	api := r.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Queue routes
		queue := api.Group("/queue")
		{
			queue.GET("", queueHandler.GetItems)
			queue.POST("", queueHandler.AddItem)
			queue.GET("/statistics", queueHandler.GetStatistics)
			queue.GET("/presets", queueHandler.GetPresets)
			queue.POST("/bulk/snooze", queueHandler.BulkSnooze)
			queue.POST("/bulk/complete", queueHandler.BulkComplete)

			queue.GET("/:id", queueHandler.GetItemByID)
			queue.PUT("/:id", queueHandler.UpdateItem)
			queue.DELETE("/:id", queueHandler.DeleteItem)
			queue.GET("/:id/history", queueHandler.GetItemHistory)
			queue.POST("/:id/snooze", queueHandler.SnoozeItem)
			queue.POST("/:id/unsnooze", queueHandler.UnsnoozeItem)
			queue.POST("/:id/complete", queueHandler.CompleteItem)
			queue.POST("/:id/waiting", queueHandler.MarkWaiting)
			queue.POST("/:id/reply-received", queueHandler.MarkReplyReceived)
			queue.POST("/:id/escalate", queueHandler.EscalateItem)
			queue.GET("/:id/suggestion", queueHandler.SuggestSnooze)
			queue.POST("/:id/suggestion/accept", queueHandler.AcceptSuggestion)
		}

		// Sweep routes - manual trigger and status
		sweepGroup := api.Group("/sweep")
		{
			sweepGroup.POST("/run", func(c *gin.Context) {
				sweep.Run(time.Now())
				c.JSON(http.StatusOK, gin.H{"last_run": sweep.LastRun()})
			})
			sweepGroup.GET("/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"last_run": sweep.LastRun()})
			})
		}
	}
}
