package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/roadmap-tracker/api"
	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/integrations"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

// newRouter wires the handler into a gin engine with zap request logging.
func newRouter(h *api.Handler, cfg *Config) *gin.Engine {
	logger := zap.L()
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	var accounts gin.Accounts
	if cfg.Auth.Username != "" {
		accounts = gin.Accounts{cfg.Auth.Username: cfg.Auth.Password}
	}
	h.RegisterRoutes(router, accounts)
	return router
}

func runServe(cfg *Config) error {
	db := database.Init(cfg.Database.Path)
	sqlDB, _ := db.DB()
	store := database.NewStore(db)

	jira := integrations.NewJiraClient(cfg.Jira.DefaultJQL, cfg.Jira.MaxPages, cfg.Jira.ProjectMap)
	if saved, err := store.GetTrackerConfig(context.Background()); err == nil {
		jira.SetConfig(saved)
		zap.L().Info("Loaded Jira configuration", zap.String("baseURL", saved.BaseURL))
	} else if !database.IsNotFound(err) {
		zap.L().Error("Unable to load Jira configuration", zap.Error(err))
	}

	var calClient *integrations.CalendarClient
	if cfg.calendarEnabled() {
		c, err := integrations.NewCalendarClient(context.Background(), cfg.Google.ServiceAccount, cfg.Google.Calendar.CalendarID)
		if err != nil {
			zap.L().Fatal("Failed to initialise Google Calendar client", zap.Error(err))
		}
		calClient = c
		zap.L().Info("Successfully authenticated with Google Calendar API.")
	}

	apiHandler := api.NewHandler(store, jira, calClient)
	apiHandler.WebhookSecret = cfg.Jira.WebhookSecret
	router := newRouter(apiHandler, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		apiHandler.Wait()

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
	return nil
}
