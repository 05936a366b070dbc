package importer

import (
	"testing"
	"time"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowOf(t *testing.T, headers []any, values ...any) Row {
	t.Helper()
	sheet := NewSheet("test", [][]any{headers, values})
	require.Len(t, sheet.Rows, 1)
	return sheet.Rows[0]
}

func TestExtractFullRow(t *testing.T) {
	rs := DefaultRuleset(nil)
	row := rowOf(t,
		[]any{"Clé de ticket", "Résumé", "État", "Priorité", "Commentaire", "Création", "Lien"},
		"SIDEV-42", "  Refonte du tunnel de commande ", "En cours", "P2", "à valider avec la logistique", 45356.0,
		"https://acme.atlassian.net/browse/SIDEV-42",
	)

	rec, reason, ok := rs.Extract(row)
	require.True(t, ok, reason)
	assert.Equal(t, "SIDEV-42", rec.JiraKey)
	assert.Equal(t, "https://acme.atlassian.net/browse/SIDEV-42", rec.JiraURL)
	assert.Equal(t, "Refonte du tunnel de commande", rec.Summary)
	assert.Equal(t, "En cours", rec.Status)
	require.NotNil(t, rec.BusinessPriority)
	assert.Equal(t, 2, *rec.BusinessPriority)
	assert.Nil(t, rec.JiraPriority)
	assert.Equal(t, "à valider avec la logistique", *rec.Comment)
	assert.True(t, rec.DateKnown)
	assert.True(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Equal(rec.CreatedAt))
}

// Keys glued to a word (XSIDEV-12, REF_SIDEV-12) are not taken. Older imports
// matched the prefix anywhere in the cell; the boundary is intentional.
func TestExtractKeyNeedsWordBoundary(t *testing.T) {
	rs := DefaultRuleset(nil)
	row := rowOf(t, []any{"Ref", "Résumé"}, "XSIDEV-12", "Corriger l'export comptable")
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.Empty(t, rec.JiraKey)

	row = rowOf(t, []any{"Ref", "Résumé"}, "REF_SIDEV-12", "Corriger l'export comptable")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.Empty(t, rec.JiraKey)

	row = rowOf(t, []any{"Ref", "Résumé"}, "voir SUPPIT-7 puis SIDEV-8", "Corriger l'export comptable")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, "SUPPIT-7", rec.JiraKey)
}

func TestExtractCustomKeyPrefixes(t *testing.T) {
	rs := DefaultRuleset([]string{"logi"})
	row := rowOf(t, []any{"Ref", "Résumé"}, "LOGI-3", "Nouveau quai de chargement")
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, "LOGI-3", rec.JiraKey)
}

func TestExtractSummaryFallback(t *testing.T) {
	rs := DefaultRuleset(nil)
	row := rowOf(t,
		[]any{"Lien", "", "Sujet"},
		"https://wiki.example.com/une-page-tres-longue", "texte d'une colonne sans titre assez long", "Automatiser la relance des colis bloqués",
	)
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, "Automatiser la relance des colis bloqués", rec.Summary)
}

func TestExtractSkips(t *testing.T) {
	rs := DefaultRuleset(nil)

	tests := []struct {
		name   string
		row    Row
		reason string
	}{
		{"single cell", rowOf(t, []any{"Résumé", "État"}, "Séparateur"), "blank or separator row"},
		{"short summary", rowOf(t, []any{"Résumé", "État"}, "Go", "En cours"), "no usable summary"},
		{"header row", rowOf(t, []any{"", "__EMPTY_1"}, "Clé", "Description"), "header row"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, ok := rs.Extract(tt.row)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestExtractStatusResetOnHeaderLabel(t *testing.T) {
	rs := DefaultRuleset(nil)
	row := rowOf(t, []any{"Résumé", "Statut"}, "Préparer l'inventaire annuel", "Status")
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, models.DefaultStatus, rec.Status)

	row = rowOf(t, []any{"Résumé", "Équipe"}, "Préparer l'inventaire annuel", "Logistique")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, models.DefaultStatus, rec.Status)
}

func TestExtractPriorities(t *testing.T) {
	rs := DefaultRuleset(nil)

	row := rowOf(t, []any{"Résumé", "Priorité"}, "Changer de transporteur", "High")
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.Nil(t, rec.BusinessPriority)
	require.NotNil(t, rec.JiraPriority)
	assert.Equal(t, "High", *rec.JiraPriority)

	row = rowOf(t, []any{"Résumé", "Priorité"}, "Changer de transporteur", 150.0)
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.Nil(t, rec.BusinessPriority)

	row = rowOf(t, []any{"Résumé", "Prioté Nastia"}, "Changer de transporteur", "#7")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.Equal(t, 7, *rec.BusinessPriority)
}

func TestExtractDates(t *testing.T) {
	rs := DefaultRuleset(nil)

	// the first date header holds garbage, the next one is used
	row := rowOf(t, []any{"Résumé", "Création", "Date"}, "Inventaire tournant", "à venir", "12/févr./25")
	rec, _, ok := rs.Extract(row)
	require.True(t, ok)
	assert.True(t, rec.DateKnown)
	assert.True(t, time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC).Equal(rec.CreatedAt))

	// update columns are never read as creation dates
	row = rowOf(t, []any{"Résumé", "Date de mise à jour", "Last update"}, "Inventaire tournant", "01/02/2024", "03/04/2024")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.False(t, rec.DateKnown)
	assert.True(t, models.PlaceholderDate.Equal(rec.CreatedAt))

	// scanned dates must fall in a plausible range
	row = rowOf(t, []any{"Résumé", "Échéance", "Livraison"}, "Inventaire tournant", "01/01/2019", "15/09/2024")
	rec, _, ok = rs.Extract(row)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC).Equal(rec.CreatedAt))
}
