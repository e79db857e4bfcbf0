package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/models"
	"github.com/your-org/photoevents/internal/storage"
	"github.com/your-org/photoevents/pkg/dto"
)

type EventHandler struct {
	db *storage.PostgresStore
}

func NewEventHandler(db *storage.PostgresStore) *EventHandler {
	return &EventHandler{db: db}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := &models.Event{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date,
		AccessCode:  req.AccessCode,
	}
	if err := h.db.CreateEvent(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.NewEventResponse(ev))
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.db.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.NewEventResponse(&events[i]))
	}

	c.JSON(http.StatusOK, gin.H{"events": resp, "total": len(resp)})
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	c.JSON(http.StatusOK, dto.NewEventResponse(ev))
}
