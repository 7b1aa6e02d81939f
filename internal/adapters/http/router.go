package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/adapters/signal"
	"github.com/baryshev/examroom/internal/config"
	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
)

type examCreate struct {
	Title        string            `json:"title" binding:"required"`
	Duration     int               `json:"duration" binding:"required,gt=0"` // minutes
	Questions    []domain.Question `json:"questions" binding:"required"`
	ScheduledFor *time.Time        `json:"scheduledFor"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, reg *core.Registry, catalog *core.Catalog) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.List())
	})

	api.GET("/exams", func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.List())
	})

	api.GET("/exams/:id", func(c *gin.Context) {
		exam, ok := catalog.Get(domain.ExamID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
			return
		}
		c.JSON(http.StatusOK, exam)
	})

	api.POST("/exams", func(c *gin.Context) {
		var req examCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var scheduled time.Time
		if req.ScheduledFor != nil {
			scheduled = *req.ScheduledFor
		}
		exam := catalog.Create(req.Title, req.Duration, req.Questions, scheduled)
		c.JSON(http.StatusCreated, exam)
	})

	return r
}
