package api

import (
	"followq-backend/internal/queue/delivery"
	"followq-backend/internal/queue/scheduler"
	"followq-backend/internal/queue/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	queueHandler *delivery.QueueHandler
	sweep        *scheduler.Sweep
}

func NewHandler(queueUc usecase.QueueUsecase, sweep *scheduler.Sweep) *Handler {
	return &Handler{
		queueHandler: delivery.NewQueueHandler(queueUc),
		sweep:        sweep,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Actor")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.queueHandler, h.sweep)

	return r.Run(addr)
}
