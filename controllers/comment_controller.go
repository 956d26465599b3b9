package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/folio/portfolio/models"
	"github.com/folio/portfolio/store"
	"github.com/folio/portfolio/utils"
)

const (
	commentsCachePrefix = "cache:comments:"

	// Bumped on every insert and part of every list key, so a page read
	// before an insert can never be served after it. Must not share
	// commentsCachePrefix.
	commentsVersionKey = "cache:comments-version"
)

// CommentController serves the list-since and insert endpoints.
type CommentController struct {
	store        *store.CommentStore
	cache        *utils.Cache
	cacheTTL     time.Duration
	defaultLimit int
	now          func() time.Time
}

// NewCommentController creates a CommentController. cache may be nil.
func NewCommentController(s *store.CommentStore, cache *utils.Cache, cacheTTL time.Duration, defaultLimit int) *CommentController {
	return &CommentController{
		store:        s,
		cache:        cache,
		cacheTTL:     cacheTTL,
		defaultLimit: store.ClampLimit(defaultLimit),
		now:          time.Now,
	}
}

// ListComments returns comments newer than after_id, oldest first.
func (cc *CommentController) ListComments(ctx *gin.Context) {
	afterID, limit := cc.parseListQuery(ctx.Query("after_id"), ctx.Query("limit"))

	rctx := ctx.Request.Context()
	version, cacheable := cc.cache.Version(rctx, commentsVersionKey)
	cacheKey := fmt.Sprintf("%sv%d:after=%d:limit=%d", commentsCachePrefix, version, afterID, limit)
	if cacheable {
		if b, ok := cc.cache.GetBytes(rctx, cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	comments, err := cc.store.ListSince(rctx, afterID, limit)
	if err != nil {
		utils.Sugar.Errorw("list comments failed", "after_id", afterID, "limit", limit, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to load comments")
		return
	}

	payload := gin.H{"comments": models.PublicList(comments, cc.now())}
	if cacheable {
		cc.cache.SetJSON(rctx, cacheKey, utils.JSONResponse{Success: true, Data: payload}, cc.cacheTTL)
	}
	utils.Success(ctx, payload)
}

// CreateComment validates and stores a new comment and echoes the stored record.
func (cc *CommentController) CreateComment(ctx *gin.Context) {
	var req models.CommentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	comment, err := cc.store.Insert(ctx.Request.Context(), req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			utils.Error(ctx, http.StatusBadRequest, verr.Message)
			return
		}
		utils.Sugar.Errorw("insert comment failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to save comment")
		return
	}

	cc.cache.Bump(ctx.Request.Context(), commentsVersionKey)
	cc.cache.InvalidateByPrefix(ctx.Request.Context(), commentsCachePrefix)
	utils.Sugar.Infow("comment created", "id", comment.ID)

	utils.Created(ctx, gin.H{
		"message": "Comment posted, thank you!",
		"comment": comment.Public(cc.now()),
	})
}

func (cc *CommentController) parseListQuery(afterStr, limitStr string) (uint64, int) {
	var afterID uint64
	if v, err := strconv.ParseUint(strings.TrimSpace(afterStr), 10, 64); err == nil {
		afterID = v
	}
	limit := cc.defaultLimit
	if v, err := strconv.Atoi(strings.TrimSpace(limitStr)); err == nil && v > 0 {
		limit = store.ClampLimit(v)
	}
	return afterID, limit
}
