package models

import "time"

// TrackerIssue is a remote issue mapped to the shape cards are built from.
type TrackerIssue struct {
	JiraKey      string    `json:"jiraKey"`
	JiraURL      string    `json:"jiraUrl"`
	Summary      string    `json:"summary"`
	Status       string    `json:"status"`
	JiraPriority *string   `json:"jiraPriority"`
	CreatedAt    time.Time `json:"createdAt"`
	Project      string    `json:"project"`
}

type JiraNamed struct {
	Name string `json:"name"`
}

type JiraIssueFields struct {
	Summary  string     `json:"summary"`
	Status   *JiraNamed `json:"status"`
	Priority *JiraNamed `json:"priority"`
	Created  string     `json:"created"`
	Updated  string     `json:"updated"`
}

type JiraIssue struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields JiraIssueFields `json:"fields"`
}

type JiraSearchResponse struct {
	Issues        []JiraIssue `json:"issues"`
	NextPageToken string      `json:"nextPageToken"`
	IsLast        bool        `json:"isLast"`
}

type JiraErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// JiraWebhookPayload is the subset of a Jira issue webhook the sync path reads.
type JiraWebhookPayload struct {
	WebhookEvent string     `json:"webhookEvent"` // e.g., "jira:issue_updated"
	Issue        *JiraIssue `json:"issue"`
}
