package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/config"
	"github.com/pandeptwidyaop/xwhep-remote/internal/handlers"
	"github.com/pandeptwidyaop/xwhep-remote/internal/middleware"
)

func New(cfg *config.Config, orch handlers.Orchestrator, log *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log.Named("http")))
	r.Use(middleware.SecurityHeaders())

	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)

	prefix := r.Group(cfg.Server.PathPrefix)
	prefix.GET("/metrics", gin.WrapH(promhttp.Handler()))

	workHandler := handlers.NewWorkHandler(orch, log)
	appHandler := handlers.NewAppHandler(orch, cfg.Orchestrator.StagingDir, log)
	versionHandler := handlers.NewVersionHandler()

	api := prefix.Group("/api")
	api.Use(limiter.Middleware())
	api.Use(middleware.APITokenRequired(cfg.API.TokenHash))
	{
		api.GET("/version", versionHandler.Get)

		works := api.Group("/works")
		{
			works.POST("", middleware.BodySizeLimit(middleware.DefaultBodyLimit), workHandler.Submit)
			works.GET("", workHandler.List)
			works.GET("/:uid", workHandler.Get)
			works.GET("/:uid/result", workHandler.Result)
			works.GET("/:uid/watch", workHandler.Watch)
			works.DELETE("/:uid", workHandler.Delete)
		}

		apps := api.Group("/apps")
		{
			apps.GET("", appHandler.List)
			apps.POST("", middleware.BodySizeLimit(cfg.API.MaxUploadSize), appHandler.Register)
		}
	}

	return r
}
