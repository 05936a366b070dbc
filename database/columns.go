package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func columnWriteErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("database: %s: %w", op, ErrDuplicateColumn)
	}
	return fmt.Errorf("database: %s: %w", op, err)
}

// ColumnsForProject returns the project-level columns of project plus the
// global ones, ordered by position. Card-scoped columns are excluded.
func (s *Store) ColumnsForProject(ctx context.Context, project string) ([]models.CustomColumn, error) {
	columns := []models.CustomColumn{}
	err := s.db.WithContext(ctx).
		Where("card_id IS NULL AND project IN ?", []string{project, models.GlobalProject}).
		Order("position ASC").Order("id ASC").
		Find(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("database: columns of project %q: %w", project, err)
	}
	return columns, nil
}

// ColumnsForCard returns the columns owned by a card with the card's values.
func (s *Store) ColumnsForCard(ctx context.Context, cardID uint) ([]models.CustomColumn, error) {
	columns := []models.CustomColumn{}
	err := s.db.WithContext(ctx).
		Preload("Values", "card_id = ?", cardID).
		Where("card_id = ?", cardID).
		Order("position ASC").Order("id ASC").
		Find(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("database: columns of card %d: %w", cardID, err)
	}
	return columns, nil
}

// CreateColumn adds a column at the end of its scope. A card-scoped column
// may carry an initial value for that card.
func (s *Store) CreateColumn(ctx context.Context, col *models.CustomColumn, initial *string) error {
	if col.Type == "" {
		col.Type = models.ColumnText
	}
	if col.Name == "" || !models.ValidColumnType(col.Type) {
		return fmt.Errorf("database: create column %q of type %q: %w", col.Name, col.Type, ErrInvalidColumn)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Model(&models.CustomColumn{})
		if col.CardID != nil {
			var card models.Card
			if err := tx.Select("id", "project").First(&card, *col.CardID).Error; err != nil {
				return notFound(err, "card", *col.CardID)
			}
			if col.Project == "" {
				col.Project = card.Project
			}
			scope = scope.Where("card_id = ?", *col.CardID)
		} else {
			scope = scope.Where("project = ? AND card_id IS NULL", col.Project)
		}

		var maxPos int
		if err := scope.Select("COALESCE(MAX(position), 0)").Scan(&maxPos).Error; err != nil {
			return fmt.Errorf("database: column position: %w", err)
		}
		col.Position = maxPos + 1

		if err := tx.Create(col).Error; err != nil {
			return columnWriteErr("create column", err)
		}

		if col.CardID != nil && initial != nil {
			value := models.CustomFieldValue{CardID: *col.CardID, ColumnID: col.ID, Value: *initial}
			if err := tx.Create(&value).Error; err != nil {
				return fmt.Errorf("database: initial column value: %w", err)
			}
		}
		return nil
	})
}

// ColumnChanges lists the column attributes to modify. Nil fields are kept.
type ColumnChanges struct {
	Name       *string
	Type       *string
	SetOptions bool
	Options    *string
	Position   *int
}

// UpdateColumn modifies a column and returns it.
func (s *Store) UpdateColumn(ctx context.Context, id uint, ch ColumnChanges) (*models.CustomColumn, error) {
	var col models.CustomColumn
	db := s.db.WithContext(ctx)
	if err := db.First(&col, id).Error; err != nil {
		return nil, notFound(err, "column", id)
	}

	cols := map[string]any{}
	if ch.Name != nil && *ch.Name != "" {
		cols["name"] = *ch.Name
	}
	if ch.Type != nil && *ch.Type != "" {
		if !models.ValidColumnType(*ch.Type) {
			return nil, fmt.Errorf("database: update column: type %q: %w", *ch.Type, ErrInvalidColumn)
		}
		cols["type"] = *ch.Type
	}
	if ch.SetOptions {
		cols["options"] = ch.Options
	}
	if ch.Position != nil {
		cols["position"] = *ch.Position
	}
	if len(cols) > 0 {
		if err := db.Model(&col).Updates(cols).Error; err != nil {
			return nil, columnWriteErr("update column", err)
		}
	}
	if err := db.First(&col, id).Error; err != nil {
		return nil, notFound(err, "column", id)
	}
	return &col, nil
}

// DeleteColumn removes a column and its values.
func (s *Store) DeleteColumn(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("column_id = ?", id).Delete(&models.CustomFieldValue{}).Error; err != nil {
			return fmt.Errorf("database: delete values of column %d: %w", id, err)
		}
		res := tx.Delete(&models.CustomColumn{}, id)
		if res.Error != nil {
			return fmt.Errorf("database: delete column %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("column %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// UpsertValue stores the value of a column for a card; the last write wins.
func (s *Store) UpsertValue(ctx context.Context, cardID, columnID uint, value string) (*models.CustomFieldValue, error) {
	db := s.db.WithContext(ctx)
	if err := s.cardExists(ctx, cardID); err != nil {
		return nil, err
	}
	var n int64
	if err := db.Model(&models.CustomColumn{}).Where("id = ?", columnID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("database: look up column %d: %w", columnID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("column %d: %w", columnID, ErrNotFound)
	}

	fv := models.CustomFieldValue{CardID: cardID, ColumnID: columnID, Value: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}, {Name: "column_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&fv).Error
	if err != nil {
		return nil, fmt.Errorf("database: upsert value for card %d column %d: %w", cardID, columnID, err)
	}

	var stored models.CustomFieldValue
	if err := db.Where("card_id = ? AND column_id = ?", cardID, columnID).First(&stored).Error; err != nil {
		return nil, notFound(err, "value for card", cardID)
	}
	return &stored, nil
}

// EnsureProjectColumn creates or updates the project-level column name of
// project, setting its type and position.
func (s *Store) EnsureProjectColumn(ctx context.Context, project, name, typ string, position int) (*models.CustomColumn, error) {
	if typ == "" {
		typ = models.ColumnText
	}
	if !models.ValidColumnType(typ) {
		return nil, fmt.Errorf("database: ensure column %q: type %q: %w", name, typ, ErrInvalidColumn)
	}
	db := s.db.WithContext(ctx)
	col := models.CustomColumn{Project: project, Name: name, Type: typ, Position: position}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project"}, {Name: "scope"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "position"}),
	}).Create(&col).Error
	if err != nil {
		return nil, columnWriteErr("ensure column", err)
	}

	var stored models.CustomColumn
	err = db.Where("project = ? AND scope = ? AND name = ?", project, models.ProjectScope, name).First(&stored).Error
	if err != nil {
		return nil, notFound(err, "column", name)
	}
	return &stored, nil
}
