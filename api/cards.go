package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cardRequest struct {
	JiraKey          *string    `json:"jiraKey"`
	JiraURL          *string    `json:"jiraUrl"`
	Summary          string     `json:"summary" binding:"required"`
	Status           string     `json:"status"`
	BusinessPriority *int       `json:"businessPriority"`
	JiraPriority     *string    `json:"jiraPriority"`
	Project          string     `json:"project" binding:"required"`
	Comment          *string    `json:"comment"`
	CreatedAt        *time.Time `json:"createdAt"`
}

type commentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) ListCards(c *gin.Context) {
	cards, err := h.Store.ListCards(c.Request.Context(), database.CardFilter{
		Project: c.Query("project"),
		Status:  c.Query("status"),
		Search:  c.Query("search"),
	})
	if err != nil {
		writeError(c, err, "Failed to fetch cards")
		return
	}
	if cards == nil {
		cards = []models.CardListItem{}
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) GetCard(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	card, err := h.Store.GetCard(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to fetch card")
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) CreateCard(c *gin.Context) {
	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card := models.Card{
		JiraKey:          emptyToNil(req.JiraKey),
		JiraURL:          emptyToNil(req.JiraURL),
		Summary:          req.Summary,
		Status:           req.Status,
		BusinessPriority: req.BusinessPriority,
		JiraPriority:     emptyToNil(req.JiraPriority),
		Project:          req.Project,
		Comment:          emptyToNil(req.Comment),
	}
	if req.CreatedAt != nil {
		card.CreatedAt = req.CreatedAt.UTC()
		card.DateKnown = true
	}

	if err := h.Store.CreateCard(c.Request.Context(), &card); err != nil {
		writeError(c, err, "Failed to create card")
		return
	}
	c.JSON(http.StatusCreated, card)
}

// UpdateCard applies the fields present in the body and records one history
// entry per changed field, attributed to changedBy.
func (h *Handler) UpdateCard(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}
	patch, author, err := models.ParseCardPatch(body)
	if err != nil {
		writeError(c, err, "Failed to update card")
		return
	}

	card, err := h.Store.UpdateCard(c.Request.Context(), id, patch, author)
	if err != nil {
		writeError(c, err, "Failed to update card")
		return
	}

	if h.Cal != nil && card.CalendarEventID != "" && card.DateKnown {
		mirrored := *card
		h.background("refresh calendar event", func(ctx context.Context) error {
			_, err := h.Cal.PublishCard(ctx, mirrored)
			return err
		})
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) DeleteCard(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	card, err := h.Store.DeleteCard(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to delete card")
		return
	}

	if h.Cal != nil && card.CalendarEventID != "" {
		eventID := card.CalendarEventID
		h.background("delete calendar event", func(ctx context.Context) error {
			return h.Cal.DeleteEvent(ctx, eventID)
		})
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Author == "" {
		req.Author = models.DefaultAuthor
	}

	comment, err := h.Store.AddComment(c.Request.Context(), id, req.Author, req.Content)
	if err != nil {
		writeError(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.Store.ListHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to fetch history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Store.Projects(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to fetch projects")
		return
	}
	c.JSON(http.StatusOK, nonNil(projects))
}

func (h *Handler) ListStatuses(c *gin.Context) {
	statuses, err := h.Store.Statuses(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to fetch statuses")
		return
	}
	c.JSON(http.StatusOK, nonNil(statuses))
}

func (h *Handler) GetTimeline(c *gin.Context) {
	timeline, err := h.Store.BuildTimeline(c.Request.Context(), c.Query("project"))
	if err != nil {
		writeError(c, err, "Failed to build timeline")
		return
	}
	c.JSON(http.StatusOK, timeline)
}

// PublishCard mirrors a card onto the configured Google Calendar.
func (h *Handler) PublishCard(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if h.Cal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar is not configured"})
		return
	}

	ctx := c.Request.Context()
	card, err := h.Store.GetCard(ctx, id)
	if err != nil {
		writeError(c, err, "Failed to fetch card")
		return
	}
	eventID, err := h.Cal.PublishCard(ctx, *card)
	if err != nil {
		writeError(c, err, "Failed to publish card to Google Calendar")
		return
	}
	if err := h.Store.SetCalendarEventID(ctx, card.ID, eventID); err != nil {
		writeError(c, err, "Failed to save calendar event")
		return
	}
	zap.L().Info("Card published to Google Calendar", zap.Uint("cardID", card.ID), zap.String("eventID", eventID))
	c.JSON(http.StatusOK, gin.H{"cardId": card.ID, "eventId": eventID})
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
