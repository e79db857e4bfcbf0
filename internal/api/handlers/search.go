package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/face"
	"github.com/your-org/photoevents/internal/observability"
	"github.com/your-org/photoevents/internal/storage"
	"github.com/your-org/photoevents/internal/upload"
	"github.com/your-org/photoevents/pkg/dto"
)

type SearchHandler struct {
	db        *storage.PostgresStore
	encoder   face.Encoder
	optimizer *upload.Optimizer
	cfg       config.FaceConfig
	tempDir   string
}

func NewSearchHandler(db *storage.PostgresStore, encoder face.Encoder, uploadCfg config.UploadConfig, faceCfg config.FaceConfig) *SearchHandler {
	return &SearchHandler{
		db:        db,
		encoder:   encoder,
		optimizer: upload.NewOptimizer(uploadCfg),
		cfg:       faceCfg,
		tempDir:   uploadCfg.TempDir,
	}
}

// Search finds the caller's photos from a reference selfie. The selfie is
// encoded once and compared against the stored embeddings of completed
// photos, linearly, which is fine for the few dozen photos an event holds.
func (h *SearchHandler) Search(c *gin.Context) {
	file, err := c.FormFile("selfie")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selfie file required"})
		return
	}

	var eventID *uuid.UUID
	if raw := c.PostForm("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		eventID = &id
	}

	tempPath := filepath.Join(h.tempDir,
		"selfie_"+randomHex(8)+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store selfie failed"})
		return
	}

	refPath, err := h.optimizer.OptimizeSelfie(tempPath)
	if err != nil {
		observability.SearchRequests.WithLabelValues("invalid_image").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read selfie image"})
		return
	}
	defer os.Remove(refPath)

	result, err := h.encoder.Encode(c.Request.Context(), refPath)
	if err != nil {
		if errors.Is(err, face.ErrNoFaceDetected) {
			observability.SearchRequests.WithLabelValues("no_face").Inc()
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in selfie"})
			return
		}
		observability.SearchRequests.WithLabelValues("encode_error").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face encoding failed"})
		return
	}
	reference := result.Embeddings[0]

	candidates, err := h.db.ListSearchCandidates(c.Request.Context(), eventID, h.cfg.CandidateLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	faceCandidates := make([]face.Candidate, 0, len(candidates))
	byID := make(map[string]*storage.Candidate, len(candidates))
	for i := range candidates {
		id := candidates[i].Photo.ID.String()
		faceCandidates = append(faceCandidates, face.Candidate{
			ID:        id,
			Embedding: candidates[i].Embedding,
		})
		if _, ok := byID[id]; !ok {
			byID[id] = &candidates[i]
		}
	}

	// No truncation yet: multi-face photos appear once per face and are
	// deduplicated below keeping their best similarity.
	matches := face.FindSimilar(reference, faceCandidates, h.cfg.MatchThreshold, 0)

	seen := make(map[string]bool, len(matches))
	results := make([]dto.SearchResultItem, 0, h.cfg.SearchLimit)
	for _, m := range matches {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		photo := byID[m.ID].Photo
		results = append(results, dto.SearchResultItem{
			PhotoID:    photo.ID,
			Filename:   photo.Filename,
			URL:        photo.URL,
			Similarity: m.Similarity,
			EventID:    photo.EventID,
			UploadDate: photo.UploadedAt.Format(time.RFC3339),
		})
		if len(results) >= h.cfg.SearchLimit {
			break
		}
	}

	observability.SearchRequests.WithLabelValues("ok").Inc()

	c.JSON(http.StatusOK, dto.SearchResponse{
		Results:   results,
		Total:     len(results),
		Threshold: h.cfg.MatchThreshold,
		Model:     string(result.Model),
	})
}
