package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chxlky/roadmap-tracker/internal/history"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"gorm.io/gorm"
)

// listCommentLimit is how many of the latest comments list views carry.
const listCommentLimit = 3

// CardFilter narrows ListCards. Empty fields do not filter.
type CardFilter struct {
	Project string
	Status  string
	Search  string
}

// ListCards returns cards ordered by business priority, then newest first.
func (s *Store) ListCards(ctx context.Context, f CardFilter) ([]models.CardListItem, error) {
	q := s.db.WithContext(ctx).Model(&models.Card{})
	if f.Project != "" {
		q = q.Where("project = ?", f.Project)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("summary LIKE ? OR jira_key LIKE ? OR comment LIKE ?", like, like, like)
	}

	var cards []models.Card
	err := q.
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("CustomValues.Column").
		Order("business_priority ASC").
		Order("created_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("database: list cards: %w", err)
	}
	if len(cards) == 0 {
		return []models.CardListItem{}, nil
	}

	ids := make([]uint, len(cards))
	for i := range cards {
		ids[i] = cards[i].ID
	}
	commentCounts, err := s.countByCard(ctx, &models.Comment{}, ids)
	if err != nil {
		return nil, err
	}
	historyCounts, err := s.countByCard(ctx, &models.HistoryEntry{}, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.CardListItem, len(cards))
	for i, c := range cards {
		if len(c.Comments) > listCommentLimit {
			c.Comments = c.Comments[:listCommentLimit]
		}
		items[i] = models.CardListItem{
			Card:  c,
			Count: models.CardCounts{Comments: commentCounts[c.ID], History: historyCounts[c.ID]},
		}
	}
	return items, nil
}

func (s *Store) countByCard(ctx context.Context, model any, ids []uint) (map[uint]int64, error) {
	var rows []struct {
		CardID uint
		N      int64
	}
	err := s.db.WithContext(ctx).Model(model).
		Select("card_id, COUNT(*) AS n").
		Where("card_id IN ?", ids).
		Group("card_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("database: count related rows: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CardID] = r.N
	}
	return counts, nil
}

// GetCard loads a card with its comments and history, newest first.
func (s *Store) GetCard(ctx context.Context, id uint) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at DESC") }).
		First(&card, id).Error
	if err != nil {
		return nil, notFound(err, "card", id)
	}
	return &card, nil
}

// CreateCard inserts a card. Missing status and creation date get defaults.
func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	if strings.TrimSpace(card.Status) == "" {
		card.Status = models.DefaultStatus
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
		card.DateKnown = true
	}
	if err := s.db.WithContext(ctx).Create(card).Error; err != nil {
		return cardWriteErr("create card", err)
	}
	return nil
}

// UpdateCard applies patch to the card and records one history entry per
// changed field, all in a single transaction. Setting createdAt on a card
// whose date was unknown marks the date as known.
func (s *Store) UpdateCard(ctx context.Context, id uint, patch models.CardPatch, author string) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&card, id).Error; err != nil {
			return notFound(err, "card", id)
		}

		changes := history.Diff(&card, patch)
		cols := patch.Columns()
		if patch.Has("createdAt") && !card.DateKnown {
			cols["date_known"] = true
		}
		if len(cols) > 0 {
			if err := tx.Model(&card).Updates(cols).Error; err != nil {
				return cardWriteErr("update card", err)
			}
		}

		entries := history.Entries(card.ID, changes, author, time.Now().UTC())
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return fmt.Errorf("database: record history: %w", err)
			}
		}
		return tx.First(&card, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ApplyBulkUpdate writes columns on a card without recording history. It
// serves the importer and tracker sync paths.
func (s *Store) ApplyBulkUpdate(ctx context.Context, id uint, cols map[string]any) (*models.Card, error) {
	var card models.Card
	db := s.db.WithContext(ctx)
	if err := db.First(&card, id).Error; err != nil {
		return nil, notFound(err, "card", id)
	}
	if len(cols) == 0 {
		return &card, nil
	}
	if err := db.Model(&card).Updates(cols).Error; err != nil {
		return nil, cardWriteErr("bulk update card", err)
	}
	if err := db.First(&card, id).Error; err != nil {
		return nil, notFound(err, "card", id)
	}
	return &card, nil
}

// FindCardByJiraKey returns ErrNotFound when no card carries key.
func (s *Store) FindCardByJiraKey(ctx context.Context, key string) (*models.Card, error) {
	var card models.Card
	if err := s.db.WithContext(ctx).Where("jira_key = ?", key).First(&card).Error; err != nil {
		return nil, notFound(err, "card with key", key)
	}
	return &card, nil
}

// FindCardBySummary returns the first card of project with exactly summary.
func (s *Store) FindCardBySummary(ctx context.Context, project, summary string) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).
		Where("project = ? AND summary = ?", project, summary).
		Order("id ASC").
		First(&card).Error
	if err != nil {
		return nil, notFound(err, "card with summary", summary)
	}
	return &card, nil
}

// DeleteCard removes a card together with its comments, history, custom
// values and card-scoped columns. The deleted card is returned.
func (s *Store) DeleteCard(ctx context.Context, id uint) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&card, id).Error; err != nil {
			return notFound(err, "card", id)
		}

		cardColumns := tx.Model(&models.CustomColumn{}).Select("id").Where("card_id = ?", id)
		steps := []struct {
			what string
			run  func() error
		}{
			{"custom values", func() error {
				return tx.Where("card_id = ? OR column_id IN (?)", id, cardColumns).Delete(&models.CustomFieldValue{}).Error
			}},
			{"card columns", func() error { return tx.Where("card_id = ?", id).Delete(&models.CustomColumn{}).Error }},
			{"comments", func() error { return tx.Where("card_id = ?", id).Delete(&models.Comment{}).Error }},
			{"history", func() error { return tx.Where("card_id = ?", id).Delete(&models.HistoryEntry{}).Error }},
			{"card", func() error { return tx.Delete(&models.Card{}, id).Error }},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("database: delete %s of card %d: %w", step.what, id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// SetCalendarEventID records the calendar event mirroring the card.
func (s *Store) SetCalendarEventID(ctx context.Context, id uint, eventID string) error {
	res := s.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", id).
		UpdateColumn("calendar_event_id", eventID)
	if res.Error != nil {
		return fmt.Errorf("database: set calendar event of card %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	return nil
}

// Projects lists the distinct project names in use.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "project")
}

// Statuses lists the distinct statuses in use.
func (s *Store) Statuses(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "status")
}

func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	values := []string{}
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Distinct(column).
		Order(column).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("database: distinct %s: %w", column, err)
	}
	return values, nil
}

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
