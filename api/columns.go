package api

import (
	"encoding/json"
	"net/http"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/gin-gonic/gin"
)

type columnRequest struct {
	Project string          `json:"project"`
	CardID  *uint           `json:"cardId"`
	Name    string          `json:"name" binding:"required"`
	Type    string          `json:"type"`
	Options json.RawMessage `json:"options"`
	Value   *string         `json:"value"`
}

// columnUpdateRequest keeps options raw so that an explicit null, which
// clears them, can be told apart from an absent field.
type columnUpdateRequest struct {
	Name     *string         `json:"name"`
	Type     *string         `json:"type"`
	Options  json.RawMessage `json:"options"`
	Position *int            `json:"position"`
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) ListProjectColumns(c *gin.Context) {
	columns, err := h.Store.ColumnsForProject(c.Request.Context(), c.Param("project"))
	if err != nil {
		writeError(c, err, "Failed to fetch columns")
		return
	}
	if columns == nil {
		columns = []models.CustomColumn{}
	}
	c.JSON(http.StatusOK, columns)
}

func (h *Handler) ListCardColumns(c *gin.Context) {
	cardID, ok := uintParam(c, "cardId")
	if !ok {
		return
	}
	columns, err := h.Store.ColumnsForCard(c.Request.Context(), cardID)
	if err != nil {
		writeError(c, err, "Failed to fetch card columns")
		return
	}
	if columns == nil {
		columns = []models.CustomColumn{}
	}
	c.JSON(http.StatusOK, columns)
}

func (h *Handler) CreateColumn(c *gin.Context) {
	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CardID == nil && req.Project == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project or cardId is required"})
		return
	}

	col := models.CustomColumn{
		Project: req.Project,
		CardID:  req.CardID,
		Name:    req.Name,
		Type:    req.Type,
		Options: encodeOptions(req.Options),
	}
	if err := h.Store.CreateColumn(c.Request.Context(), &col, req.Value); err != nil {
		writeError(c, err, "Failed to create column")
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *Handler) UpdateColumn(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req columnUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	col, err := h.Store.UpdateColumn(c.Request.Context(), id, database.ColumnChanges{
		Name:       req.Name,
		Type:       req.Type,
		SetOptions: len(req.Options) > 0,
		Options:    encodeOptions(req.Options),
		Position:   req.Position,
	})
	if err != nil {
		writeError(c, err, "Failed to update column")
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *Handler) DeleteColumn(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteColumn(c.Request.Context(), id); err != nil {
		writeError(c, err, "Failed to delete column")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetColumnValue(c *gin.Context) {
	cardID, ok := uintParam(c, "cardId")
	if !ok {
		return
	}
	columnID, ok := uintParam(c, "columnId")
	if !ok {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, err := h.Store.UpsertValue(c.Request.Context(), cardID, columnID, req.Value)
	if err != nil {
		writeError(c, err, "Failed to update field value")
		return
	}
	c.JSON(http.StatusOK, value)
}

// encodeOptions stores select options as their JSON text; null or absent
// options are stored as NULL.
func encodeOptions(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	s := string(raw)
	return &s
}
