package database

import (
	"context"
	"fmt"
	"time"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"gorm.io/gorm"
)

// AddComment attaches a comment to an existing card.
func (s *Store) AddComment(ctx context.Context, cardID uint, author, content string) (*models.Comment, error) {
	if err := s.cardExists(ctx, cardID); err != nil {
		return nil, err
	}
	comment := models.Comment{CardID: cardID, Author: author, Content: content}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("database: add comment to card %d: %w", cardID, err)
	}
	return &comment, nil
}

// ListHistory returns the history entries of a card, newest first.
func (s *Store) ListHistory(ctx context.Context, cardID uint) ([]models.HistoryEntry, error) {
	if err := s.cardExists(ctx, cardID); err != nil {
		return nil, err
	}
	entries := []models.HistoryEntry{}
	err := s.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("changed_at DESC").Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("database: list history of card %d: %w", cardID, err)
	}
	return entries, nil
}

func (s *Store) cardExists(ctx context.Context, cardID uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", cardID).Count(&n).Error; err != nil {
		return fmt.Errorf("database: look up card %d: %w", cardID, err)
	}
	if n == 0 {
		return fmt.Errorf("card %d: %w", cardID, ErrNotFound)
	}
	return nil
}

// TimelineMonth groups the cards created in one calendar month.
type TimelineMonth struct {
	Key   string        `json:"key"` // YYYY-MM
	Label string        `json:"label"`
	Cards []models.Card `json:"cards"`
}

// Timeline is the chronological view of a project's cards. Cards whose
// creation date is a placeholder are only counted.
type Timeline struct {
	Months       []TimelineMonth `json:"months"`
	UnknownDates int64           `json:"unknownDates"`
}

// BuildTimeline groups cards with a known creation date by month, newest
// month first.
func (s *Store) BuildTimeline(ctx context.Context, project string) (*Timeline, error) {
	db := s.db.WithContext(ctx).Model(&models.Card{})
	if project != "" {
		db = db.Where("project = ?", project)
	}
	db = db.Session(&gorm.Session{})

	var cards []models.Card
	if err := db.Where("date_known = ?", true).Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("database: timeline cards: %w", err)
	}
	var unknown int64
	if err := db.Where("date_known = ?", false).Count(&unknown).Error; err != nil {
		return nil, fmt.Errorf("database: count undated cards: %w", err)
	}

	return &Timeline{Months: groupByMonth(cards), UnknownDates: unknown}, nil
}

func groupByMonth(cards []models.Card) []TimelineMonth {
	months := []TimelineMonth{}
	for _, c := range cards {
		t := c.CreatedAt.UTC()
		key := t.Format("2006-01")
		if n := len(months); n == 0 || months[n-1].Key != key {
			first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			months = append(months, TimelineMonth{Key: key, Label: first.Format("January 2006")})
		}
		months[len(months)-1].Cards = append(months[len(months)-1].Cards, c)
	}
	return months
}
