package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
)

type SystemHandler struct {
	db      *storage.PostgresStore
	objects *storage.MinIOStore
	queue   queue.Client
}

func NewSystemHandler(db *storage.PostgresStore, objects *storage.MinIOStore, q queue.Client) *SystemHandler {
	return &SystemHandler{db: db, objects: objects, queue: q}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the service dependencies. A degraded queue does not make
// the service unready: uploads still work, only encoding is deferred.
func (h *SystemHandler) Readyz(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if err := h.db.Ping(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.objects.Ping(c.Request.Context()); err != nil {
		checks["storage"] = err.Error()
		ready = false
	} else {
		checks["storage"] = "ok"
	}

	if err := h.queue.Ping(); err != nil {
		checks["queue"] = "degraded: " + err.Error()
	} else {
		checks["queue"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

// QueueStats reports pending job counts and the degraded flag.
func (h *SystemHandler) QueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
