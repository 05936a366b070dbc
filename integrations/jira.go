package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultJQL      = "project IN (SIDEV, SUPPIT) ORDER BY created DESC"
	DefaultMaxPages = 10

	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond

	searchPageSize = 100
	searchFields   = "summary,status,priority,created,updated,assignee,description"
	issueFields    = searchFields + ",comment"
)

// DefaultProjectMap maps Jira project prefixes to internal project names.
var DefaultProjectMap = map[string]string{
	"SIDEV":  "Dev",
	"SUPPIT": "Support",
}

// ErrNotConfigured is returned when no Jira credentials have been saved.
var ErrNotConfigured = errors.New("jira: not configured")

// UpstreamError is a non-success response from Jira.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("jira: %s (status %d)", e.Message, e.StatusCode)
}

type JiraClient struct {
	Client     *http.Client
	DefaultJQL string
	MaxPages   int
	ProjectMap map[string]string
	// Attempts bounds tries per request; only rate limiting, server errors
	// and transport failures are retried.
	Attempts   uint
	RetryDelay time.Duration

	mu     sync.RWMutex
	config *models.TrackerConfig
}

func NewJiraClient(defaultJQL string, maxPages int, projectMap map[string]string) *JiraClient {
	if defaultJQL == "" {
		defaultJQL = DefaultJQL
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if len(projectMap) == 0 {
		projectMap = DefaultProjectMap
	}
	return &JiraClient{
		Client:     &http.Client{Timeout: 30 * time.Second},
		DefaultJQL: defaultJQL,
		MaxPages:   maxPages,
		ProjectMap: projectMap,
		Attempts:   defaultAttempts,
		RetryDelay: defaultRetryDelay,
	}
}

// SetConfig replaces the credentials used for subsequent calls.
func (jc *JiraClient) SetConfig(cfg *models.TrackerConfig) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if cfg == nil {
		jc.config = nil
		return
	}
	c := *cfg
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	jc.config = &c
}

// ClearConfig forgets the credentials.
func (jc *JiraClient) ClearConfig() {
	jc.SetConfig(nil)
}

// Config returns a copy of the current credentials, or ErrNotConfigured.
func (jc *JiraClient) Config() (models.TrackerConfig, error) {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	if jc.config == nil {
		return models.TrackerConfig{}, ErrNotConfigured
	}
	return *jc.config, nil
}

func (jc *JiraClient) get(ctx context.Context, cfg models.TrackerConfig, path string, query url.Values, out any, fallback string) error {
	attempts := jc.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			return jc.getOnce(ctx, cfg, path, query, out, fallback)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(jc.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("Retrying Jira request", zap.String("path", path), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == http.StatusTooManyRequests || upstream.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (jc *JiraClient) getOnce(ctx context.Context, cfg models.TrackerConfig, path string, query url.Values, out any, fallback string) error {
	apiURL := cfg.BaseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create get request: %w", err)
	}
	req.SetBasicAuth(cfg.Email, cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := jc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		msg := fallback
		var jerr models.JiraErrorResponse
		if json.Unmarshal(bodyBytes, &jerr) == nil && len(jerr.ErrorMessages) > 0 {
			msg = jerr.ErrorMessages[0]
		}
		return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}

// TestConnection checks the credentials and returns the account's display name.
func (jc *JiraClient) TestConnection(ctx context.Context) (string, error) {
	cfg, err := jc.Config()
	if err != nil {
		return "", err
	}
	var user struct {
		DisplayName string `json:"displayName"`
	}
	if err := jc.get(ctx, cfg, "/rest/api/3/myself", nil, &user, "Erreur de connexion Jira"); err != nil {
		return "", err
	}
	return user.DisplayName, nil
}

// Search runs jql (or the default query) and maps every issue found. Pages
// are fetched sequentially and at most MaxPages are read, even when Jira
// keeps reporting a next page. A non-empty project overrides the project
// derived from each issue key.
func (jc *JiraClient) Search(ctx context.Context, jql, project string) ([]models.TrackerIssue, error) {
	cfg, err := jc.Config()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(jql) == "" {
		jql = jc.DefaultJQL
	}

	issues := []models.TrackerIssue{}
	nextPageToken := ""
	for page := 0; page < jc.MaxPages; page++ {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("maxResults", fmt.Sprint(searchPageSize))
		query.Set("fields", searchFields)
		if nextPageToken != "" {
			query.Set("nextPageToken", nextPageToken)
		}

		var resp models.JiraSearchResponse
		if err := jc.get(ctx, cfg, "/rest/api/3/search/jql", query, &resp, "Erreur de recherche Jira"); err != nil {
			return nil, err
		}
		for _, issue := range resp.Issues {
			issues = append(issues, jc.MapIssue(cfg.BaseURL, issue, project))
		}

		nextPageToken = resp.NextPageToken
		if nextPageToken == "" {
			break
		}
		if page == jc.MaxPages-1 {
			zap.L().Warn("Jira search stopped at page limit", zap.Int("pages", jc.MaxPages), zap.String("jql", jql))
		}
	}

	zap.L().Debug("Jira search complete", zap.String("jql", jql), zap.Int("issues", len(issues)))
	return issues, nil
}

// GetIssue fetches one issue as raw JSON, comments included.
func (jc *JiraClient) GetIssue(ctx context.Context, key string) (json.RawMessage, error) {
	cfg, err := jc.Config()
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("fields", issueFields)

	var raw json.RawMessage
	path := "/rest/api/3/issue/" + url.PathEscape(key)
	if err := jc.get(ctx, cfg, path, query, &raw, "Erreur de récupération issue"); err != nil {
		return nil, err
	}
	return raw, nil
}

// MapIssue converts a Jira issue to the card shape. baseURL may be empty when
// the credentials are unknown; the browse URL is then left empty.
func (jc *JiraClient) MapIssue(baseURL string, issue models.JiraIssue, project string) models.TrackerIssue {
	ti := models.TrackerIssue{
		JiraKey: issue.Key,
		Summary: issue.Fields.Summary,
		Status:  "Unknown",
		Project: project,
	}
	if baseURL != "" {
		ti.JiraURL = baseURL + "/browse/" + issue.Key
	}
	if issue.Fields.Status != nil && issue.Fields.Status.Name != "" {
		ti.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Priority != nil && issue.Fields.Priority.Name != "" {
		name := issue.Fields.Priority.Name
		ti.JiraPriority = &name
	}
	if created, ok := ParseJiraTime(issue.Fields.Created); ok {
		ti.CreatedAt = created
	}
	if ti.Project == "" {
		ti.Project = jc.ProjectForKey(issue.Key)
	}
	return ti
}

// ProjectForKey maps the key prefix to an internal project name, falling
// back to the raw prefix.
func (jc *JiraClient) ProjectForKey(key string) string {
	prefix, _, _ := strings.Cut(key, "-")
	if name, ok := jc.ProjectMap[prefix]; ok {
		return name
	}
	return prefix
}

// ParseJiraTime parses Jira timestamps such as 2025-03-04T10:15:30.000+0100.
func ParseJiraTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
