package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/integrations"
	"github.com/chxlky/roadmap-tracker/internal/jirasync"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// backgroundTimeout bounds calendar calls made after a response was sent.
const backgroundTimeout = 30 * time.Second

type Handler struct {
	Store *database.Store
	Jira  *integrations.JiraClient
	Sync  *jirasync.Syncer
	// Cal is nil when the calendar mirror is not configured.
	Cal *integrations.CalendarClient
	// Workers limits concurrent background calendar calls.
	Workers chan struct{}
	// WebhookSecret, when set, moves the Jira webhook out of basic auth;
	// callers must then present it as X-Webhook-Secret or ?secret=.
	WebhookSecret string

	wg sync.WaitGroup
}

func NewHandler(store *database.Store, jira *integrations.JiraClient, cal *integrations.CalendarClient) *Handler {
	return &Handler{
		Store:   store,
		Jira:    jira,
		Sync:    jirasync.New(store, jira),
		Cal:     cal,
		Workers: make(chan struct{}, 10), // Limit to 10 concurrent workers
	}
}

// RegisterRoutes mounts the API on router. When accounts is not empty every
// route except the health check requires basic auth. The Jira webhook is
// guarded by WebhookSecret instead when one is configured.
func (h *Handler) RegisterRoutes(router *gin.Engine, accounts gin.Accounts) {
	public := router.Group("/api")
	{
		public.GET("/health", h.HealthCheckHandler)
		if h.WebhookSecret != "" {
			public.POST("/jira/webhook", h.requireWebhookSecret, h.JiraWebhookHandler)
		}
	}

	apiGroup := router.Group("/api")
	if len(accounts) > 0 {
		apiGroup.Use(gin.BasicAuth(accounts))
	}

	cards := apiGroup.Group("/cards")
	{
		cards.GET("", h.ListCards)
		cards.POST("", h.CreateCard)
		cards.GET("/meta/projects", h.ListProjects)
		cards.GET("/meta/statuses", h.ListStatuses)
		cards.GET("/timeline", h.GetTimeline)
		cards.GET("/:id", h.GetCard)
		cards.PUT("/:id", h.UpdateCard)
		cards.DELETE("/:id", h.DeleteCard)
		cards.POST("/:id/comments", h.AddComment)
		cards.GET("/:id/history", h.GetHistory)
		cards.POST("/:id/calendar", h.PublishCard)
	}

	columns := apiGroup.Group("/columns")
	{
		columns.GET("/:project", h.ListProjectColumns)
		columns.GET("/card/:cardId", h.ListCardColumns)
		columns.POST("", h.CreateColumn)
		columns.PUT("/:id", h.UpdateColumn)
		columns.DELETE("/:id", h.DeleteColumn)
		columns.PUT("/values/:cardId/:columnId", h.SetColumnValue)
	}

	config := apiGroup.Group("/config")
	{
		config.GET("/jira", h.GetJiraConfig)
		config.POST("/jira", h.SaveJiraConfig)
		config.DELETE("/jira", h.DeleteJiraConfig)
	}

	jira := apiGroup.Group("/jira")
	{
		jira.GET("/test", h.TestJira)
		jira.GET("/search", h.SearchJira)
		jira.POST("/sync", h.SyncJira)
		jira.POST("/import", h.ImportJira)
		jira.GET("/issue/:key", h.GetJiraIssue)
		if h.WebhookSecret == "" {
			jira.POST("/webhook", h.JiraWebhookHandler)
		}
	}
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireWebhookSecret rejects webhook calls that do not carry the secret.
func (h *Handler) requireWebhookSecret(c *gin.Context) {
	token := c.GetHeader("X-Webhook-Secret")
	if token == "" {
		token = c.Query("secret")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.WebhookSecret)) != 1 {
		zap.L().Warn("Rejected Jira webhook with a bad secret", zap.String("remote", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
		return
	}
	c.Next()
}

// Wait blocks until background work started by handlers has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// background runs fn outside the request once a worker slot is free.
func (h *Handler) background(name string, fn func(ctx context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Workers <- struct{}{}
		defer func() { <-h.Workers }()

		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.L().Error("Background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// writeError maps err onto a status code. fallback is the message sent for
// unexpected errors, which are also logged.
func writeError(c *gin.Context, err error, fallback string) {
	var upstream *integrations.UpstreamError
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, database.ErrDuplicateColumn):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Une colonne avec ce nom existe deja"})
	case errors.Is(err, database.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "A card with this Jira key already exists"})
	case errors.Is(err, models.ErrInvalidPatch), errors.Is(err, database.ErrInvalidColumn):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, integrations.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Jira non configuré"})
	case errors.Is(err, integrations.ErrUnknownDate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Card creation date is unknown"})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Message})
	default:
		zap.L().Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// uintParam reads a numeric path parameter, answering 400 when it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(n), true
}
