package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoevents/internal/api/handlers"
	"github.com/your-org/photoevents/internal/api/ws"
	"github.com/your-org/photoevents/internal/auth"
	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/face"
	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
)

type RouterConfig struct {
	APIKey  string
	DB      *storage.PostgresStore
	MinIO   *storage.MinIOStore
	Queue   queue.Client
	Hub     *ws.Hub
	Encoder face.Encoder
	Upload  config.UploadConfig
	Face    config.FaceConfig
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Queue)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB)
	v1.POST("/events", eventH.Create)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.MinIO, cfg.Queue, cfg.Upload)
	v1.POST("/photos", photoH.Upload)
	v1.GET("/events/:id/photos", photoH.List)
	v1.GET("/photos/:id", photoH.Get)
	v1.GET("/photos/:id/image", photoH.Image)
	v1.DELETE("/photos/:id", photoH.Delete)

	// Selfie search
	searchH := handlers.NewSearchHandler(cfg.DB, cfg.Encoder, cfg.Upload, cfg.Face)
	v1.POST("/search", searchH.Search)

	// System
	v1.GET("/system/queue", systemH.QueueStats)

	return r
}
