package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/aidesk/backend/internal/config"
	"github.com/aidesk/backend/internal/http/handlers"
	"github.com/aidesk/backend/internal/http/middleware"
	"github.com/aidesk/backend/internal/pipeline"

	_ "github.com/aidesk/backend/docs"
)

func Router(cfg config.Config, p *pipeline.Pipeline, db handlers.Pinger, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Service-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Pipeline:  p,
		DB:        db,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.Use(middleware.ServiceKey(cfg.ServiceKey))
	{
		api.POST("/intake", h.Intake)
		api.POST("/retrieve", h.Retrieve)
		api.POST("/triage", h.Triage)
		api.POST("/respond", h.Respond)
		api.POST("/reevaluate", h.Reevaluate)
		api.GET("/sessions/:id", h.SessionDetails)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
