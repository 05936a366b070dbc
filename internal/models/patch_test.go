package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardPatch(t *testing.T) {
	patch, author, err := ParseCardPatch([]byte(`{
		"status": "En cours",
		"businessPriority": 3,
		"jiraUrl": "",
		"changedBy": "Laurine"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Laurine", author)
	require.Len(t, patch, 3)

	// fields come back sorted by name
	assert.Equal(t, "businessPriority", patch[0].Field)
	assert.Equal(t, 3, *patch[0].Value.(*int))
	assert.Equal(t, "jiraUrl", patch[1].Field)
	assert.Nil(t, patch[1].Value.(*string))
	assert.Equal(t, "status", patch[2].Field)
	assert.Equal(t, "En cours", patch[2].Value)

	cols := patch.Columns()
	assert.Contains(t, cols, "business_priority")
	assert.Contains(t, cols, "jira_url")
	assert.Equal(t, "En cours", cols["status"])
	assert.True(t, patch.Has("status"))
	assert.False(t, patch.Has("summary"))
}

func TestParseCardPatchDefaultAuthor(t *testing.T) {
	_, author, err := ParseCardPatch([]byte(`{"summary": "Nouveau titre"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthor, author)

	_, author, err = ParseCardPatch([]byte(`{"summary": "Nouveau titre", "changedBy": "  "}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthor, author)
}

func TestParseCardPatchCreatedAt(t *testing.T) {
	patch, _, err := ParseCardPatch([]byte(`{"createdAt": "2024-03-05"}`))
	require.NoError(t, err)
	require.Len(t, patch, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), patch[0].Value)
}

func TestParseCardPatchPriorityFromString(t *testing.T) {
	patch, _, err := ParseCardPatch([]byte(`{"businessPriority": "12"}`))
	require.NoError(t, err)
	assert.Equal(t, 12, *patch[0].Value.(*int))

	patch, _, err = ParseCardPatch([]byte(`{"businessPriority": null}`))
	require.NoError(t, err)
	assert.Nil(t, patch[0].Value.(*int))
}

func TestParseCardPatchRejects(t *testing.T) {
	bodies := map[string]string{
		"unknown field": `{"dateKnown": true}`,
		"empty summary": `{"summary": ""}`,
		"null status":   `{"status": null}`,
		"wrong type":    `{"summary": 12}`,
		"bad date":      `{"createdAt": "yesterday"}`,
		"bad priority":  `{"businessPriority": "high"}`,
		"not an object": `["summary"]`,
		"bad changedBy": `{"changedBy": 4}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseCardPatch([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPatch))
		})
	}
}

func TestTrackerConfigViewHidesToken(t *testing.T) {
	cfg := TrackerConfig{ID: 1, Email: "a@b.c", APIToken: "secret", BaseURL: "https://x.atlassian.net"}
	view := cfg.View()
	assert.True(t, view.HasToken)
	assert.Equal(t, "a@b.c", view.Email)

	cfg.APIToken = ""
	assert.False(t, cfg.View().HasToken)
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ProjectScope, ScopeFor(nil))
	assert.Equal(t, "card:7", ScopeFor(Ptr(uint(7))))
}
