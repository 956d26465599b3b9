package routes

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/folio/portfolio/config"
	"github.com/folio/portfolio/controllers"
	"github.com/folio/portfolio/middleware"
	"github.com/folio/portfolio/store"
	"github.com/folio/portfolio/utils"
)

// SetupRouter wires routes, middlewares, and controllers. cache and
// accessLog may be nil.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, cache *utils.Cache, accessLog *zap.Logger) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	if accessLog != nil {
		r.Use(ginzap.GinzapWithConfig(accessLog, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/health"},
			Context: func(c *gin.Context) []zapcore.Field {
				return []zapcore.Field{zap.String("request_id", middleware.GetRequestID(c))}
			},
		}))
		r.Use(ginzap.RecoveryWithZap(accessLog, true))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "./static"
	}
	indexPath := filepath.Join(staticDir, "index.html")

	r.Static("/static", staticDir)
	r.GET("/", func(c *gin.Context) {
		c.File(indexPath)
	})

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	commentStore := store.NewCommentStore(db)
	commentController := controllers.NewCommentController(commentStore, cache, cfg.CommentsCacheTTL, cfg.CommentsPageLimit)
	statsController := controllers.NewStatsController(commentStore)
	configController := controllers.NewConfigController(cfg)

	api := r.Group("/api")
	comments := api.Group("/comments")
	comments.GET("", commentController.ListComments)
	comments.POST("", commentController.CreateComment)
	comments.GET("/stats", statsController.GetStats)
	comments.GET("/config", configController.GetClientConfig)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		ctx.Status(http.StatusOK)
		ctx.File(indexPath)
	})

	return r
}
