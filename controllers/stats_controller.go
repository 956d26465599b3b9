package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/portfolio/store"
	"github.com/folio/portfolio/utils"
)

// StatsController exposes comment counters.
type StatsController struct {
	store *store.CommentStore
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s *store.CommentStore) *StatsController {
	return &StatsController{store: s}
}

// GetStats returns the comment count and the latest comment id.
func (s *StatsController) GetStats(ctx *gin.Context) {
	st, err := s.store.Stats(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Errorw("comment stats failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to load stats")
		return
	}
	utils.Success(ctx, st)
}
