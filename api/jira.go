package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/jirasync"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type jiraConfigRequest struct {
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
	BaseURL  string `json:"baseUrl"`
}

type syncRequest struct {
	JQL     string `json:"jql"`
	Project string `json:"project"`
}

type importRequest struct {
	Issues []models.TrackerIssue `json:"issues"`
}

// GetJiraConfig answers null when nothing is saved. The token never leaves
// the server.
func (h *Handler) GetJiraConfig(c *gin.Context) {
	cfg, err := h.Store.GetTrackerConfig(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(c, err, "Failed to fetch config")
		return
	}
	c.JSON(http.StatusOK, cfg.View())
}

// SaveJiraConfig replaces the stored credentials and hands them to the client.
func (h *Handler) SaveJiraConfig(c *gin.Context) {
	var req jiraConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.APIToken == "" || req.BaseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	cfg := models.TrackerConfig{Email: req.Email, APIToken: req.APIToken, BaseURL: req.BaseURL}
	if err := h.Store.SaveTrackerConfig(c.Request.Context(), &cfg); err != nil {
		writeError(c, err, "Failed to save config")
		return
	}
	h.Jira.SetConfig(&cfg)
	zap.L().Info("Jira configuration saved", zap.String("baseURL", cfg.BaseURL), zap.String("email", cfg.Email))
	c.JSON(http.StatusOK, cfg.View())
}

func (h *Handler) DeleteJiraConfig(c *gin.Context) {
	if err := h.Store.DeleteTrackerConfig(c.Request.Context()); err != nil {
		writeError(c, err, "Failed to delete config")
		return
	}
	h.Jira.ClearConfig()
	c.Status(http.StatusNoContent)
}

func (h *Handler) TestJira(c *gin.Context) {
	user, err := h.Jira.TestConnection(c.Request.Context())
	if err != nil {
		writeError(c, err, "Jira connection test failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handler) SearchJira(c *gin.Context) {
	issues, err := h.Jira.Search(c.Request.Context(), c.Query("jql"), c.Query("project"))
	if err != nil {
		writeError(c, err, "Jira search failed")
		return
	}
	if issues == nil {
		issues = []models.TrackerIssue{}
	}
	c.JSON(http.StatusOK, issues)
}

func (h *Handler) SyncJira(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Sync.Sync(c.Request.Context(), req.JQL, req.Project)
	if err != nil {
		writeError(c, err, "Jira sync failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ImportJira(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Sync.ImportSelected(c.Request.Context(), req.Issues))
}

// GetJiraIssue passes the raw issue through.
func (h *Handler) GetJiraIssue(c *gin.Context) {
	raw, err := h.Jira.GetIssue(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err, "Failed to get Jira issue")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *Handler) JiraWebhookHandler(c *gin.Context) {
	var payload models.JiraWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		zap.L().Warn("Could not bind Jira webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	applied, err := h.Sync.ApplyWebhook(c.Request.Context(), payload)
	if errors.Is(err, jirasync.ErrMissingIssue) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(c, err, "Failed to apply Jira webhook")
		return
	}
	if !applied {
		c.JSON(http.StatusOK, gin.H{"message": "No action taken"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card saved/updated successfully"})
}
