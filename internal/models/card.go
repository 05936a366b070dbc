package models

import "time"

// DefaultStatus is stored when no status could be resolved for a card.
const DefaultStatus = "À définir"

// PlaceholderDate is stored as CreatedAt when the real creation date is unknown.
var PlaceholderDate = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

type Card struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	JiraKey          *string   `gorm:"uniqueIndex" json:"jiraKey"`
	JiraURL          *string   `json:"jiraUrl"`
	Summary          string    `gorm:"not null" json:"summary"`
	Status           string    `gorm:"not null" json:"status"`
	BusinessPriority *int      `json:"businessPriority"`
	JiraPriority     *string   `json:"jiraPriority"`
	Project          string    `gorm:"not null;index" json:"project"`
	Comment          *string   `gorm:"type:text" json:"comment"`
	CreatedAt        time.Time `json:"createdAt"`
	DateKnown        bool      `gorm:"not null" json:"dateKnown"`
	UpdatedAt        time.Time `json:"updatedAt"`
	CalendarEventID  string    `json:"calendarEventId,omitempty"` // Google Calendar Event ID

	Comments     []Comment          `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	History      []HistoryEntry     `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
	CustomValues []CustomFieldValue `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"customValues,omitempty"`
}

// CardCounts is the number of related rows shown on list views.
type CardCounts struct {
	Comments int64 `json:"comments"`
	History  int64 `json:"history"`
}

// CardListItem is a card as returned by list queries: the latest comments,
// custom values with their column, and related row counts.
type CardListItem struct {
	Card
	Count CardCounts `json:"_count"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CardID    uint      `gorm:"not null;index" json:"cardId"`
	Author    string    `gorm:"not null" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryEntry records one field change made through the single-card edit path.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CardID    uint      `gorm:"not null;index" json:"cardId"`
	Field     string    `gorm:"not null" json:"field"`
	OldValue  *string   `gorm:"type:text" json:"oldValue"`
	NewValue  *string   `gorm:"type:text" json:"newValue"`
	ChangedBy string    `gorm:"not null" json:"changedBy"`
	ChangedAt time.Time `gorm:"autoCreateTime" json:"changedAt"`
}

func (HistoryEntry) TableName() string { return "history" }

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
