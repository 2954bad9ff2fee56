package api

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facetrack/internal/api/handlers"
	"github.com/your-org/facetrack/internal/api/ws"
	"github.com/your-org/facetrack/internal/auth"
	"github.com/your-org/facetrack/internal/engine"
	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/queue"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/internal/storage"
)

type RouterConfig struct {
	AppCtx   context.Context
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Registry *registry.Registry
	History  *history.Store
	Engine   *engine.Engine
	Hub      *ws.Hub
	// EmbedFn extracts a face embedding from enrollment photo bytes; nil
	// when the vision models are unavailable.
	EmbedFn handlers.EmbedFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Detector models
	modelH := handlers.NewModelHandler(cfg.Registry, cfg.MinIO)
	v1.POST("/models", modelH.Upload)
	v1.GET("/models", modelH.List)
	v1.POST("/models/:id/activate", modelH.Activate)
	v1.DELETE("/models/:id", modelH.Delete)

	// Persons (identity directory)
	personH := handlers.NewPersonHandler(cfg.DB)
	personH.EmbedFn = cfg.EmbedFn
	v1.POST("/persons", personH.Create)
	v1.GET("/persons", personH.List)
	v1.POST("/persons/:id/faces", personH.AddFace)
	v1.DELETE("/persons/:id", personH.Delete)

	// Detection history
	eventH := handlers.NewEventHandler(cfg.History, cfg.MinIO)
	v1.GET("/events", eventH.List)
	v1.GET("/events/stats", eventH.Stats)
	v1.GET("/events/sessions", eventH.Sessions)
	v1.GET("/events/export", eventH.Export)
	v1.GET("/events/:id/snapshot", eventH.Snapshot)

	// Engine control
	engineH := handlers.NewEngineHandler(cfg.AppCtx, cfg.Engine, cfg.Registry)
	v1.POST("/engine/start", engineH.Start)
	v1.POST("/engine/stop", engineH.Stop)
	v1.GET("/engine/status", engineH.Status)

	return r
}
