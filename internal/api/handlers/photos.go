package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/queue"
	"github.com/your-org/photoevents/internal/storage"
	"github.com/your-org/photoevents/internal/upload"
	"github.com/your-org/photoevents/pkg/dto"
)

type PhotoHandler struct {
	db        *storage.PostgresStore
	objects   *storage.MinIOStore
	queue     queue.Client
	validator *upload.Validator
	optimizer *upload.Optimizer
	cfg       config.UploadConfig
}

func NewPhotoHandler(db *storage.PostgresStore, objects *storage.MinIOStore, q queue.Client, cfg config.UploadConfig) *PhotoHandler {
	return &PhotoHandler{
		db:        db,
		objects:   objects,
		queue:     q,
		validator: upload.NewValidator(cfg),
		optimizer: upload.NewOptimizer(cfg),
		cfg:       cfg,
	}
}

// Upload accepts a multipart photo, validates and optimizes it, stores the
// optimized rendition, creates the pending record and enqueues the encode
// job. The upload succeeds even when the queue is degraded; the photo then
// stays pending.
func (h *PhotoHandler) Upload(c *gin.Context) {
	eventID, err := uuid.Parse(c.PostForm("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
		return
	}

	event, err := h.db.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
		return
	}
	if file.Size > h.cfg.MaxFileSize {
		observability.UploadsRejected.WithLabelValues("size").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds size limit"})
		return
	}

	tempPath := filepath.Join(h.cfg.TempDir,
		"upload_"+randomHex(8)+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store upload failed"})
		return
	}

	meta, err := h.validator.Validate(tempPath, file.Filename)
	if err == nil {
		slog.Debug("upload validated",
			"name", file.Filename, "format", meta.Format,
			"width", meta.Width, "height", meta.Height)
	}
	if err != nil {
		os.Remove(tempPath)
		var vErr *upload.ValidationError
		if errors.As(err, &vErr) {
			observability.UploadsRejected.WithLabelValues(vErr.Check).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := secureFilename()
	optimizedPath, err := h.optimizer.Optimize(tempPath, filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "optimize image failed"})
		return
	}
	defer os.Remove(optimizedPath)

	photoID := uuid.New()
	objectKey := fmt.Sprintf("photos/%s/%s", eventID, filename)
	size, err := h.objects.PutFile(c.Request.Context(), objectKey, optimizedPath, "image/jpeg")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
		return
	}

	photo := &models.Photo{
		ID:           photoID,
		EventID:      eventID,
		Filename:     filename,
		OriginalName: file.Filename,
		ObjectKey:    objectKey,
		URL:          fmt.Sprintf("/v1/photos/%s/image", photoID),
		Size:         size,
		Mimetype:     "image/jpeg",
		Description:  c.PostForm("description"),
		Tags:         splitTags(c.PostForm("tags")),
		UploadedBy:   c.PostForm("uploaded_by"),
	}
	if err := h.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		_ = h.objects.DeleteObject(c.Request.Context(), objectKey)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.queue.EnqueueEncode(c.Request.Context(), models.EncodeJob{
		PhotoID:   photo.ID,
		ObjectKey: objectKey,
		UserID:    photo.UploadedBy,
		EventID:   eventID,
		Timestamp: time.Now(),
	})
	if err != nil {
		// The record exists; encoding can be retriggered by re-upload or
		// operator action. Don't fail the upload.
		observability.EncodeJobs.WithLabelValues("enqueue_failed").Inc()
		handle = ""
	}

	observability.PhotosUploaded.WithLabelValues(eventID.String()).Inc()

	c.JSON(http.StatusCreated, dto.UploadResponse{
		Photo:     dto.NewPhotoResponse(photo),
		JobHandle: handle,
		Degraded:  h.queue.Degraded(),
	})
}

func (h *PhotoHandler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	photos, total, err := h.db.ListPhotosByEvent(c.Request.Context(), eventID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, dto.NewPhotoResponse(&photos[i]))
	}

	c.JSON(http.StatusOK, gin.H{"photos": resp, "total": total})
}

func (h *PhotoHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	c.JSON(http.StatusOK, dto.NewPhotoResponse(photo))
}

// Image streams the optimized photo from object storage.
func (h *PhotoHandler) Image(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.objects.GetObject(c.Request.Context(), photo.ObjectKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo file not found"})
		return
	}

	c.Data(http.StatusOK, photo.Mimetype, data)
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	if err := h.objects.DeleteObject(c.Request.Context(), photo.ObjectKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete photo file failed"})
		return
	}
	if err := h.db.DeletePhoto(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// secureFilename generates an unguessable stored name; the optimized
// rendition is always JPEG.
func secureFilename() string {
	return fmt.Sprintf("photo-%d-%s.jpg", time.Now().UnixMilli(), randomHex(16))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
