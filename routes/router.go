package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/myblog/admin"
	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/controllers"
	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/search"
	"github.com/cppla/myblog/templates"
	"github.com/cppla/myblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, mailer utils.Mailer, index *search.Index) (*gin.Engine, error) {
	cfg := config.Get()
	switch strings.ToLower(cfg.App.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	forms.Setup()

	r := gin.New()
	// Access log goes to its own rolling file; without a path it shares the app logger.
	accessLog := utils.Logger
	if cfg.App.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.App.GinPath, cfg.Log.Level, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
		if err != nil {
			utils.Sugar.Warnf("gin access log %s unavailable, using app log: %v", cfg.App.GinPath, err)
		} else {
			accessLog = gl
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.App.AllowedOrigins) == 0 || (len(cfg.App.AllowedOrigins) == 1 && cfg.App.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.App.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())
	r.Use(middleware.PageViewRecorder(db))

	tmpl, err := templates.Load(db, cfg.Blog)
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	blogController := controllers.NewBlogController(db, mailer, index, cfg)
	statsController := controllers.NewStatsController(db, cfg.Blog)
	authController := controllers.NewAuthController(db)
	adminController := controllers.NewAdminController(db, index, admin.DefaultSite(), cfg.Blog)

	r.GET("/", blogController.PostList)
	r.GET("/sitemap.xml", blogController.Sitemap)

	blog := r.Group("/blog")
	blog.Use(middleware.WriteRateLimit(cfg.App.RateLimitPerMinute))
	blog.GET("", blogController.PostList)
	blog.GET("/tag/:tag_slug", blogController.PostList)
	blog.GET("/:year/:month/:day/:slug", blogController.PostDetail)
	blog.POST("/:year/:month/:day/:slug", blogController.PostDetail)
	blog.GET("/share/:post_id", blogController.PostShare)
	blog.POST("/share/:post_id", blogController.PostShare)
	blog.GET("/search", blogController.PostSearch)
	blog.GET("/feed", blogController.PostFeed)
	blog.GET("/captcha", blogController.Captcha)

	api := r.Group("/api/v1")
	api.GET("/stats", statsController.GetStats)
	api.GET("/posts/:id/stats", statsController.GetPostStats)

	adminAPI := r.Group("/admin/api")
	adminAPI.POST("/login", middleware.RateLimitMiddleware(), authController.Login)

	staff := adminAPI.Group("")
	staff.Use(middleware.AuthRequired(), middleware.StaffRequired(db))
	staff.POST("/logout", authController.Logout)
	staff.GET("/me", authController.Me)
	staff.GET("/models", adminController.Models)
	staff.GET("/posts", adminController.ListPosts)
	staff.POST("/posts", adminController.CreatePost)
	staff.GET("/posts/:id", adminController.GetPost)
	staff.PUT("/posts/:id", adminController.UpdatePost)
	staff.DELETE("/posts/:id", adminController.DeletePost)
	staff.GET("/comments", adminController.ListComments)
	staff.PATCH("/comments/:id", adminController.UpdateComment)
	staff.DELETE("/comments/:id", adminController.DeleteComment)
	staff.POST("/comments/actions/:action", adminController.CommentAction)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/admin/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.NotFound(ctx, 40400, "page not found")
	})

	return r, nil
}
