// Package jirasync copies Jira issues into cards. Every path here writes
// through the bulk update of the store and records no history.
package jirasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"go.uber.org/zap"
)

// ErrMissingIssue is returned for webhook events that carry no issue key.
var ErrMissingIssue = errors.New("jirasync: webhook carries no issue")

// Searcher is the part of the Jira client the sync needs.
type Searcher interface {
	Search(ctx context.Context, jql, project string) ([]models.TrackerIssue, error)
	MapIssue(baseURL string, issue models.JiraIssue, project string) models.TrackerIssue
	Config() (models.TrackerConfig, error)
}

type IssueError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type SyncResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Errors  []IssueError `json:"errors"`
}

type ImportResult struct {
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Skipped       int           `json:"skipped"`
	Errors        []IssueError  `json:"errors"`
	ImportedCards []models.Card `json:"importedCards"`
}

type Syncer struct {
	Store *database.Store
	Jira  Searcher
}

func New(store *database.Store, jira Searcher) *Syncer {
	return &Syncer{Store: store, Jira: jira}
}

// Sync searches Jira and upserts every issue found.
func (s *Syncer) Sync(ctx context.Context, jql, project string) (*SyncResult, error) {
	issues, err := s.Jira.Search(ctx, jql, project)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Errors: []IssueError{}}
	for _, issue := range issues {
		_, created, err := s.Upsert(ctx, issue)
		if err != nil {
			res.Errors = append(res.Errors, IssueError{Key: issue.JiraKey, Error: err.Error()})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	zap.L().Info("Jira sync finished",
		zap.Int("created", res.Created), zap.Int("updated", res.Updated), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// ImportSelected upserts issues picked by the user from a search result.
func (s *Syncer) ImportSelected(ctx context.Context, issues []models.TrackerIssue) *ImportResult {
	res := &ImportResult{Errors: []IssueError{}, ImportedCards: []models.Card{}}
	for _, issue := range issues {
		if issue.JiraKey == "" {
			res.Skipped++
			continue
		}
		card, created, err := s.Upsert(ctx, issue)
		if err != nil {
			res.Errors = append(res.Errors, IssueError{Key: issue.JiraKey, Error: err.Error()})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.ImportedCards = append(res.ImportedCards, *card)
	}
	return res
}

// Upsert updates the card carrying issue's key, or creates it. Existing cards
// only receive the fields Jira owns: summary, status, priority and URL.
func (s *Syncer) Upsert(ctx context.Context, issue models.TrackerIssue) (*models.Card, bool, error) {
	existing, err := s.Store.FindCardByJiraKey(ctx, issue.JiraKey)
	switch {
	case err == nil:
		cols := map[string]any{
			"summary":       issue.Summary,
			"status":        issue.Status,
			"jira_priority": issue.JiraPriority,
		}
		if issue.JiraURL != "" {
			cols["jira_url"] = issue.JiraURL
		}
		card, err := s.Store.ApplyBulkUpdate(ctx, existing.ID, cols)
		return card, false, err
	case !errors.Is(err, database.ErrNotFound):
		return nil, false, err
	}

	if issue.Summary == "" {
		return nil, false, fmt.Errorf("issue %s has no summary", issue.JiraKey)
	}
	createdAt := issue.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	card := &models.Card{
		JiraKey:      models.Ptr(issue.JiraKey),
		JiraURL:      optional(issue.JiraURL),
		Summary:      issue.Summary,
		Status:       issue.Status,
		JiraPriority: issue.JiraPriority,
		Project:      issue.Project,
		CreatedAt:    createdAt,
		DateKnown:    true,
	}
	if err := s.Store.CreateCard(ctx, card); err != nil {
		return nil, false, err
	}
	return card, true, nil
}

// ApplyWebhook handles a Jira issue event. Creations and updates are
// upserted; deletions are ignored since cards are only removed by users.
// It reports whether a card was written.
func (s *Syncer) ApplyWebhook(ctx context.Context, payload models.JiraWebhookPayload) (bool, error) {
	switch payload.WebhookEvent {
	case "jira:issue_created", "jira:issue_updated":
	default:
		zap.L().Debug("Ignoring Jira webhook event", zap.String("event", payload.WebhookEvent))
		return false, nil
	}
	if payload.Issue == nil || payload.Issue.Key == "" {
		return false, fmt.Errorf("%s: %w", payload.WebhookEvent, ErrMissingIssue)
	}

	baseURL := ""
	if cfg, err := s.Jira.Config(); err == nil {
		baseURL = cfg.BaseURL
	}
	issue := s.Jira.MapIssue(baseURL, *payload.Issue, "")
	card, created, err := s.Upsert(ctx, issue)
	if err != nil {
		return false, err
	}
	zap.L().Info("Applied Jira webhook",
		zap.String("event", payload.WebhookEvent), zap.String("key", issue.JiraKey),
		zap.Uint("cardID", card.ID), zap.Bool("created", created))
	return true, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
