// Package history computes the field-level audit trail of a card update.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/chxlky/roadmap-tracker/internal/models"
)

// TimestampLayout is the canonical form dates are compared and stored in.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Change is one differing field.
type Change struct {
	Field string
	Old   *string
	New   *string
}

// Stringify renders a field value the way it is stored in history. Empty
// strings and nil pointers both map to nil.
func Stringify(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case *string:
		if x == nil {
			return nil
		}
		s = *x
	case int:
		s = strconv.Itoa(x)
	case *int:
		if x == nil {
			return nil
		}
		s = strconv.Itoa(*x)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		s = x.UTC().Format(TimestampLayout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		s = x.UTC().Format(TimestampLayout)
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return nil
	}
	return &s
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Diff compares the proposed patch against card and returns one Change per
// field whose stringified value differs. Unchanged fields produce nothing.
func Diff(card *models.Card, patch models.CardPatch) []Change {
	var changes []Change
	for _, u := range patch {
		oldStr := Stringify(card.FieldValue(u.Field))
		newStr := Stringify(u.Value)
		if equal(oldStr, newStr) {
			continue
		}
		changes = append(changes, Change{Field: u.Field, Old: oldStr, New: newStr})
	}
	return changes
}

// Entries turns changes into history rows for cardID.
func Entries(cardID uint, changes []Change, author string, at time.Time) []models.HistoryEntry {
	if author == "" {
		author = models.DefaultAuthor
	}
	entries := make([]models.HistoryEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, models.HistoryEntry{
			CardID:    cardID,
			Field:     c.Field,
			OldValue:  c.Old,
			NewValue:  c.New,
			ChangedBy: author,
			ChangedAt: at,
		})
	}
	return entries
}
