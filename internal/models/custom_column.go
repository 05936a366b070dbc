package models

import (
	"fmt"

	"gorm.io/gorm"
)

// GlobalProject marks a column visible on the cards of every project.
const GlobalProject = "__global__"

// Column types accepted for custom columns.
const (
	ColumnText   = "text"
	ColumnNumber = "number"
	ColumnDate   = "date"
	ColumnSelect = "select"
)

// ProjectScope is the Scope of columns shared by all cards of a project.
const ProjectScope = "project"

// CustomColumn is a user-defined field attached either to a project (CardID
// nil) or to a single card. Scope is derived from CardID so that the
// (project, scope, name) unique index also holds for project-level columns.
type CustomColumn struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Project  string  `gorm:"not null;uniqueIndex:idx_column_scope_name,priority:1" json:"project"`
	Scope    string  `gorm:"not null;uniqueIndex:idx_column_scope_name,priority:2" json:"-"`
	CardID   *uint   `gorm:"index" json:"cardId"`
	Name     string  `gorm:"not null;uniqueIndex:idx_column_scope_name,priority:3" json:"name"`
	Type     string  `gorm:"not null" json:"type"`
	Options  *string `gorm:"type:text" json:"options"` // JSON array of select options
	Position int     `gorm:"not null" json:"position"`

	Values []CustomFieldValue `gorm:"foreignKey:ColumnID;constraint:OnDelete:CASCADE" json:"values,omitempty"`
}

// ScopeFor returns the Scope value for a column owned by cardID, or the
// project scope when cardID is nil.
func ScopeFor(cardID *uint) string {
	if cardID == nil {
		return ProjectScope
	}
	return fmt.Sprintf("card:%d", *cardID)
}

func (c *CustomColumn) BeforeSave(tx *gorm.DB) error {
	c.Scope = ScopeFor(c.CardID)
	if c.Type == "" {
		c.Type = ColumnText
	}
	return nil
}

// ValidColumnType reports whether t is one of the declared column types.
func ValidColumnType(t string) bool {
	switch t {
	case ColumnText, ColumnNumber, ColumnDate, ColumnSelect:
		return true
	}
	return false
}

// CustomFieldValue holds one value per (card, column); values are text
// whatever the column's declared type.
type CustomFieldValue struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	CardID   uint          `gorm:"not null;uniqueIndex:idx_card_column,priority:1" json:"cardId"`
	ColumnID uint          `gorm:"not null;uniqueIndex:idx_card_column,priority:2" json:"columnId"`
	Value    string        `gorm:"type:text" json:"value"`
	Column   *CustomColumn `gorm:"foreignKey:ColumnID" json:"column,omitempty"`
}
