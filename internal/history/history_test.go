package history

import (
	"testing"
	"time"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCard() *models.Card {
	return &models.Card{
		ID:               4,
		Summary:          "Refonte du tunnel de commande",
		Status:           "À définir",
		BusinessPriority: models.Ptr(2),
		Project:          "Dev",
		CreatedAt:        time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		DateKnown:        true,
	}
}

func mustPatch(t *testing.T, body string) models.CardPatch {
	t.Helper()
	patch, _, err := models.ParseCardPatch([]byte(body))
	require.NoError(t, err)
	return patch
}

func TestDiffOnlyChangedFields(t *testing.T) {
	card := sampleCard()
	patch := mustPatch(t, `{"summary": "Refonte du tunnel de commande", "status": "En cours", "businessPriority": 5}`)

	want := []Change{
		{Field: "businessPriority", Old: models.Ptr("2"), New: models.Ptr("5")},
		{Field: "status", Old: models.Ptr("À définir"), New: models.Ptr("En cours")},
	}
	if diff := cmp.Diff(want, Diff(card, patch)); diff != "" {
		t.Fatalf("Diff() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffSameInstantDifferentFormat(t *testing.T) {
	card := sampleCard()
	patch := mustPatch(t, `{"createdAt": "2024-03-05T11:00:00+01:00"}`)

	assert.Empty(t, Diff(card, patch))
}

func TestDiffClearingOptionalField(t *testing.T) {
	card := sampleCard()
	card.Comment = models.Ptr("à revoir")
	patch := mustPatch(t, `{"comment": "", "jiraUrl": null}`)

	changes := Diff(card, patch)
	require.Len(t, changes, 1)
	assert.Equal(t, "comment", changes[0].Field)
	assert.Equal(t, "à revoir", *changes[0].Old)
	assert.Nil(t, changes[0].New)
}

func TestStringify(t *testing.T) {
	assert.Nil(t, Stringify(nil))
	assert.Nil(t, Stringify(""))
	assert.Nil(t, Stringify((*string)(nil)))
	assert.Nil(t, Stringify((*int)(nil)))
	assert.Nil(t, Stringify(time.Time{}))
	assert.Equal(t, "7", *Stringify(7))
	assert.Equal(t, "true", *Stringify(true))

	paris := time.FixedZone("CET", 3600)
	ts := time.Date(2025, 2, 12, 13, 30, 0, 0, paris)
	assert.Equal(t, "2025-02-12T12:30:00.000Z", *Stringify(ts))
	assert.Equal(t, "2025-02-12T12:30:00.000Z", *Stringify(&ts))
}

func TestEntriesDefaultAuthor(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	changes := []Change{{Field: "status", Old: models.Ptr("A"), New: models.Ptr("B")}}

	entries := Entries(9, changes, "", at)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(9), entries[0].CardID)
	assert.Equal(t, models.DefaultAuthor, entries[0].ChangedBy)
	assert.Equal(t, at, entries[0].ChangedAt)

	entries = Entries(9, changes, "Nastia", at)
	assert.Equal(t, "Nastia", entries[0].ChangedBy)
}
