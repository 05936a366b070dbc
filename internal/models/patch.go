package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPatch is returned for update bodies naming unknown fields or
// carrying values of the wrong type.
var ErrInvalidPatch = errors.New("invalid card update")

// DefaultAuthor labels history entries when the caller supplies no author.
const DefaultAuthor = "Utilisateur"

type fieldKind int

const (
	kindText fieldKind = iota
	kindOptText
	kindOptInt
	kindTime
)

type cardField struct {
	column string
	kind   fieldKind
}

// cardFields lists the fields editable through the single-card update path,
// keyed by their JSON name.
var cardFields = map[string]cardField{
	"jiraKey":          {"jira_key", kindOptText},
	"jiraUrl":          {"jira_url", kindOptText},
	"summary":          {"summary", kindText},
	"status":           {"status", kindText},
	"businessPriority": {"business_priority", kindOptInt},
	"jiraPriority":     {"jira_priority", kindOptText},
	"project":          {"project", kindText},
	"comment":          {"comment", kindOptText},
	"createdAt":        {"created_at", kindTime},
}

// FieldUpdate is one proposed field value. Value is a string, *string, *int
// or time.Time depending on the field.
type FieldUpdate struct {
	Field string
	Value any
}

// CardPatch is a validated set of field updates, ordered by field name.
type CardPatch []FieldUpdate

// Has reports whether the patch touches field.
func (p CardPatch) Has(field string) bool {
	for _, u := range p {
		if u.Field == field {
			return true
		}
	}
	return false
}

// Columns returns the patch as a column → value map suitable for gorm Updates.
func (p CardPatch) Columns() map[string]any {
	cols := make(map[string]any, len(p))
	for _, u := range p {
		cols[cardFields[u.Field].column] = u.Value
	}
	return cols
}

// ParseCardPatch decodes a JSON update body. The optional "changedBy" member
// is returned separately as the author label.
func ParseCardPatch(body []byte) (CardPatch, string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	author := DefaultAuthor
	if v, ok := raw["changedBy"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, "", fmt.Errorf("%w: changedBy must be a string", ErrInvalidPatch)
		}
		if s != nil && strings.TrimSpace(*s) != "" {
			author = *s
		}
		delete(raw, "changedBy")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	patch := make(CardPatch, 0, len(names))
	for _, name := range names {
		f, ok := cardFields[name]
		if !ok {
			return nil, "", fmt.Errorf("%w: unknown field %q", ErrInvalidPatch, name)
		}
		v, err := decodeField(f.kind, raw[name])
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s: %v", ErrInvalidPatch, name, err)
		}
		patch = append(patch, FieldUpdate{Field: name, Value: v})
	}
	return patch, author, nil
}

func decodeField(kind fieldKind, raw json.RawMessage) (any, error) {
	isNull := string(raw) == "null"
	switch kind {
	case kindText:
		var s string
		if isNull {
			return nil, errors.New("value is required")
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.New("expected a string")
		}
		if strings.TrimSpace(s) == "" {
			return nil, errors.New("value is required")
		}
		return s, nil
	case kindOptText:
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.New("expected a string or null")
		}
		if s != nil && *s == "" {
			s = nil
		}
		return s, nil
	case kindOptInt:
		if isNull {
			return (*int)(nil), nil
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, errors.New("expected a number or null")
			}
			if strings.TrimSpace(s) == "" {
				return (*int)(nil), nil
			}
			n = json.Number(strings.TrimSpace(s))
		}
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return nil, errors.New("expected an integer")
		}
		return &i, nil
	case kindTime:
		var s string
		if isNull {
			return nil, errors.New("value is required")
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.New("expected a date string")
		}
		return ParseTimestamp(s)
	}
	return nil, errors.New("unsupported field")
}

// ParseTimestamp accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FieldValue returns the current value of a patchable field, typed the same
// way ParseCardPatch types new values.
func (c *Card) FieldValue(field string) any {
	switch field {
	case "jiraKey":
		return c.JiraKey
	case "jiraUrl":
		return c.JiraURL
	case "summary":
		return c.Summary
	case "status":
		return c.Status
	case "businessPriority":
		return c.BusinessPriority
	case "jiraPriority":
		return c.JiraPriority
	case "project":
		return c.Project
	case "comment":
		return c.Comment
	case "createdAt":
		return c.CreatedAt
	}
	return nil
}
