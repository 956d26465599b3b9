package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/folio/portfolio/config"
	"github.com/folio/portfolio/models"
	"github.com/folio/portfolio/store"
	"github.com/folio/portfolio/utils"
)

// ConfigController serves the settings a comment feed client runs with.
type ConfigController struct {
	pollInterval time.Duration
	pageLimit    int
}

func NewConfigController(cfg config.AppConfig) *ConfigController {
	interval := cfg.CommentsPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ConfigController{pollInterval: interval, pageLimit: store.ClampLimit(cfg.CommentsPageLimit)}
}

// GetClientConfig returns poll interval, page size and input limits.
func (c *ConfigController) GetClientConfig(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"poll_interval_ms":   c.pollInterval.Milliseconds(),
		"page_limit":         c.pageLimit,
		"max_name_length":    models.MaxNameLength,
		"max_message_length": models.MaxMessageLength,
	})
}
