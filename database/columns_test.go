package database

import (
	"context"
	"errors"
	"testing"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateColumnPositions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := models.CustomColumn{Project: "Veepee", Name: "Sprint"}
	second := models.CustomColumn{Project: "Veepee", Name: "Projet Veepee", Type: models.ColumnSelect}
	other := models.CustomColumn{Project: "WIMM", Name: "Sprint"}
	global := models.CustomColumn{Project: models.GlobalProject, Name: "Équipe"}
	for _, col := range []*models.CustomColumn{&first, &second, &other, &global} {
		require.NoError(t, s.CreateColumn(ctx, col, nil))
	}

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, 1, other.Position)
	assert.Equal(t, models.ColumnText, first.Type)

	columns, err := s.ColumnsForProject(ctx, "Veepee")
	require.NoError(t, err)
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	assert.ElementsMatch(t, []string{"Sprint", "Projet Veepee", "Équipe"}, names)
}

func TestCreateColumnDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateColumn(ctx, &models.CustomColumn{Project: "SAV", Name: "Sprint"}, nil))

	err := s.CreateColumn(ctx, &models.CustomColumn{Project: "SAV", Name: "Sprint"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateColumn))

	// same name in another project or on a card is a different scope
	require.NoError(t, s.CreateColumn(ctx, &models.CustomColumn{Project: "MAIA", Name: "Sprint"}, nil))
	card := createCard(t, s, models.Card{Summary: "Carte SAV", Project: "SAV"})
	require.NoError(t, s.CreateColumn(ctx, &models.CustomColumn{CardID: &card.ID, Name: "Sprint"}, nil))
}

func TestCreateColumnRejectsBadType(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateColumn(context.Background(), &models.CustomColumn{Project: "SAV", Name: "Taille", Type: "blob"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidColumn))
}

func TestCardColumnWithInitialValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	card := createCard(t, s, models.Card{Summary: "Carte MAIA", Project: "MAIA"})

	col := models.CustomColumn{CardID: &card.ID, Name: "Lien maquette"}
	require.NoError(t, s.CreateColumn(ctx, &col, models.Ptr("https://figma.com/m")))
	assert.Equal(t, "MAIA", col.Project)

	columns, err := s.ColumnsForCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, columns, 1)
	require.Len(t, columns[0].Values, 1)
	assert.Equal(t, "https://figma.com/m", columns[0].Values[0].Value)

	projectColumns, err := s.ColumnsForProject(ctx, "MAIA")
	require.NoError(t, err)
	assert.Empty(t, projectColumns)
}

func TestUpsertValueLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	card := createCard(t, s, models.Card{Summary: "Carte WIMM", Project: "WIMM"})
	col := models.CustomColumn{Project: "WIMM", Name: "Sprint"}
	require.NoError(t, s.CreateColumn(ctx, &col, nil))

	_, err := s.UpsertValue(ctx, card.ID, col.ID, "S1")
	require.NoError(t, err)
	v, err := s.UpsertValue(ctx, card.ID, col.ID, "S2")
	require.NoError(t, err)
	assert.Equal(t, "S2", v.Value)

	var n int64
	require.NoError(t, s.DB().Model(&models.CustomFieldValue{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	_, err = s.UpsertValue(ctx, card.ID, 999, "x")
	assert.True(t, IsNotFound(err))
	_, err = s.UpsertValue(ctx, 999, col.ID, "x")
	assert.True(t, IsNotFound(err))
}

func TestUpdateAndDeleteColumn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	card := createCard(t, s, models.Card{Summary: "Carte SAV", Project: "SAV"})
	col := models.CustomColumn{Project: "SAV", Name: "Sprint", Options: models.Ptr(`["S1"]`)}
	require.NoError(t, s.CreateColumn(ctx, &col, nil))
	_, err := s.UpsertValue(ctx, card.ID, col.ID, "S1")
	require.NoError(t, err)

	updated, err := s.UpdateColumn(ctx, col.ID, ColumnChanges{
		Name:       models.Ptr("Itération"),
		SetOptions: true,
		Position:   models.Ptr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "Itération", updated.Name)
	assert.Nil(t, updated.Options)
	assert.Equal(t, 7, updated.Position)

	_, err = s.UpdateColumn(ctx, col.ID, ColumnChanges{Type: models.Ptr("blob")})
	assert.True(t, errors.Is(err, ErrInvalidColumn))

	require.NoError(t, s.DeleteColumn(ctx, col.ID))
	var n int64
	require.NoError(t, s.DB().Model(&models.CustomFieldValue{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, IsNotFound(s.DeleteColumn(ctx, col.ID)))
}

func TestEnsureProjectColumnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.EnsureProjectColumn(ctx, "Veepee", "Priorité Nastia", models.ColumnText, 0)
	require.NoError(t, err)
	again, err := s.EnsureProjectColumn(ctx, "Veepee", "Priorité Nastia", models.ColumnNumber, 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.ColumnNumber, again.Type)
	assert.Equal(t, 3, again.Position)

	var n int64
	require.NoError(t, s.DB().Model(&models.CustomColumn{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
