package jirasync

import (
	"context"
	"testing"
	"time"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/integrations"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type fakeJira struct {
	issues []models.TrackerIssue
	err    error
	cfg    *models.TrackerConfig
	mapper *integrations.JiraClient
}

func (f *fakeJira) Search(ctx context.Context, jql, project string) ([]models.TrackerIssue, error) {
	return f.issues, f.err
}

func (f *fakeJira) MapIssue(baseURL string, issue models.JiraIssue, project string) models.TrackerIssue {
	return f.mapper.MapIssue(baseURL, issue, project)
}

func (f *fakeJira) Config() (models.TrackerConfig, error) {
	if f.cfg == nil {
		return models.TrackerConfig{}, integrations.ErrNotConfigured
	}
	return *f.cfg, nil
}

func newTestSyncer(t *testing.T, jira *fakeJira) (*Syncer, *database.Store) {
	t.Helper()
	db, err := database.Open(":memory:", logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if jira.mapper == nil {
		jira.mapper = integrations.NewJiraClient("", 0, nil)
	}
	store := database.NewStore(db)
	return New(store, jira), store
}

func TestSyncCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC)
	jira := &fakeJira{issues: []models.TrackerIssue{
		{JiraKey: "SIDEV-1", JiraURL: "https://acme.atlassian.net/browse/SIDEV-1", Summary: "Export", Status: "To Do", Project: "Dev", CreatedAt: created},
		{JiraKey: "SIDEV-2", Summary: "", Status: "To Do", Project: "Dev"},
	}}
	s, store := newTestSyncer(t, jira)

	res, err := s.Sync(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "SIDEV-2", res.Errors[0].Key)

	card, err := store.FindCardByJiraKey(ctx, "SIDEV-1")
	require.NoError(t, err)
	assert.True(t, card.DateKnown)
	assert.True(t, created.Equal(card.CreatedAt))

	// a local edit to the business priority survives the next sync
	_, err = store.ApplyBulkUpdate(ctx, card.ID, map[string]any{"business_priority": 3})
	require.NoError(t, err)

	jira.issues = []models.TrackerIssue{
		{JiraKey: "SIDEV-1", Summary: "Export comptable", Status: "Done", Project: "Dev", JiraPriority: models.Ptr("High")},
	}
	res, err = s.Sync(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	card, err = store.FindCardByJiraKey(ctx, "SIDEV-1")
	require.NoError(t, err)
	assert.Equal(t, "Export comptable", card.Summary)
	assert.Equal(t, "Done", card.Status)
	assert.Equal(t, "High", *card.JiraPriority)
	assert.Equal(t, 3, *card.BusinessPriority)
	assert.Equal(t, "https://acme.atlassian.net/browse/SIDEV-1", *card.JiraURL)

	entries, err := store.ListHistory(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSyncPropagatesSearchErrors(t *testing.T) {
	s, _ := newTestSyncer(t, &fakeJira{err: integrations.ErrNotConfigured})
	_, err := s.Sync(context.Background(), "", "")
	assert.ErrorIs(t, err, integrations.ErrNotConfigured)
}

func TestImportSelected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSyncer(t, &fakeJira{})

	res := s.ImportSelected(ctx, []models.TrackerIssue{
		{JiraKey: "SUPPIT-4", Summary: "Colis bloqué", Status: "Open", Project: "Support"},
		{JiraKey: "", Summary: "Sans clé"},
		{JiraKey: "SUPPIT-4", Summary: "Colis bloqué en douane", Status: "Open", Project: "Support"},
	})
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.ImportedCards, 2)
	assert.Equal(t, "Colis bloqué en douane", res.ImportedCards[1].Summary)
}

func TestApplyWebhook(t *testing.T) {
	ctx := context.Background()
	jira := &fakeJira{cfg: &models.TrackerConfig{BaseURL: "https://acme.atlassian.net"}}
	s, store := newTestSyncer(t, jira)

	issue := &models.JiraIssue{Key: "SIDEV-7", Fields: models.JiraIssueFields{
		Summary: "Nouveau flux EDI",
		Status:  &models.JiraNamed{Name: "In Progress"},
		Created: "2025-01-15T09:00:00.000+0000",
	}}
	applied, err := s.ApplyWebhook(ctx, models.JiraWebhookPayload{WebhookEvent: "jira:issue_created", Issue: issue})
	require.NoError(t, err)
	assert.True(t, applied)

	card, err := store.FindCardByJiraKey(ctx, "SIDEV-7")
	require.NoError(t, err)
	assert.Equal(t, "Dev", card.Project)
	assert.Equal(t, "In Progress", card.Status)
	assert.Equal(t, "https://acme.atlassian.net/browse/SIDEV-7", *card.JiraURL)

	applied, err = s.ApplyWebhook(ctx, models.JiraWebhookPayload{WebhookEvent: "jira:issue_deleted", Issue: issue})
	require.NoError(t, err)
	assert.False(t, applied)
	_, err = store.FindCardByJiraKey(ctx, "SIDEV-7")
	assert.NoError(t, err)

	_, err = s.ApplyWebhook(ctx, models.JiraWebhookPayload{WebhookEvent: "jira:issue_updated"})
	assert.ErrorIs(t, err, ErrMissingIssue)
}
