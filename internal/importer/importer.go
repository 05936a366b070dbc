// Package importer turns roadmap spreadsheets into cards. Each row goes
// through an ordered rule table, then is created, updated or matched as a
// duplicate; a bad row never aborts its file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/models"
	"go.uber.org/zap"
)

// Store is what the importer needs from the record store.
type Store interface {
	FindCardByJiraKey(ctx context.Context, key string) (*models.Card, error)
	FindCardBySummary(ctx context.Context, project, summary string) (*models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	ApplyBulkUpdate(ctx context.Context, id uint, cols map[string]any) (*models.Card, error)
	EnsureProjectColumn(ctx context.Context, project, name, typ string, position int) (*models.CustomColumn, error)
	UpsertValue(ctx context.Context, cardID, columnID uint, value string) (*models.CustomFieldValue, error)
}

// ExtraColumn copies a spreadsheet column into a project custom column.
// Headers are tried in order; the first non-empty one wins.
type ExtraColumn struct {
	Name    string   `mapstructure:"name"`
	Type    string   `mapstructure:"type"`
	Headers []string `mapstructure:"headers"`
}

// Source is one file to import into a project.
type Source struct {
	File    string        `mapstructure:"file"`
	Project string        `mapstructure:"project"`
	Columns []ExtraColumn `mapstructure:"columns"`
}

type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Duplicate Outcome = "duplicate"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// RowResult reports what happened to one row. Row is 0 for file-level
// failures.
type RowResult struct {
	File    string  `json:"file"`
	Sheet   string  `json:"sheet,omitempty"`
	Row     int     `json:"row,omitempty"`
	Outcome Outcome `json:"outcome"`
	CardID  uint    `json:"cardId,omitempty"`
	Key     string  `json:"key,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Summary accumulates the results of a batch.
type Summary struct {
	Counts   map[Outcome]int `json:"counts"`
	Failures []RowResult     `json:"failures"`
}

func newSummary() *Summary {
	return &Summary{Counts: make(map[Outcome]int), Failures: []RowResult{}}
}

func (s *Summary) add(r RowResult) {
	s.Counts[r.Outcome]++
	if r.Outcome == Failed {
		s.Failures = append(s.Failures, r)
	}
}

// Imported counts rows that ended up as a card.
func (s *Summary) Imported() int {
	return s.Counts[Created] + s.Counts[Updated] + s.Counts[Duplicate]
}

type Importer struct {
	Store Store
	Rules *Ruleset
	// BaseDir resolves relative source paths.
	BaseDir string
}

func New(store Store, rules *Ruleset) *Importer {
	if rules == nil {
		rules = DefaultRuleset(nil)
	}
	return &Importer{Store: store, Rules: rules}
}

// ImportSources imports every source in order. A file that cannot be read is
// recorded as one failure and the batch moves on.
func (im *Importer) ImportSources(ctx context.Context, sources []Source) *Summary {
	sum := newSummary()
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			sum.add(RowResult{File: src.File, Outcome: Failed, Reason: err.Error()})
			break
		}
		im.importSource(ctx, src, sum)
	}
	zap.L().Info("Import finished",
		zap.Int("created", sum.Counts[Created]),
		zap.Int("updated", sum.Counts[Updated]),
		zap.Int("duplicates", sum.Counts[Duplicate]),
		zap.Int("skipped", sum.Counts[Skipped]),
		zap.Int("failed", sum.Counts[Failed]))
	return sum
}

// ImportFile imports a single file into project with no extra columns.
func (im *Importer) ImportFile(ctx context.Context, path, project string) *Summary {
	sum := newSummary()
	im.importSource(ctx, Source{File: path, Project: project}, sum)
	return sum
}

func (im *Importer) importSource(ctx context.Context, src Source, sum *Summary) {
	path := src.File
	if im.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(im.BaseDir, path)
	}
	log := zap.L().With(zap.String("file", path), zap.String("project", src.Project))

	sheets, err := ReadWorkbook(path)
	if err != nil {
		log.Error("Unable to read workbook", zap.Error(err))
		sum.add(RowResult{File: src.File, Outcome: Failed, Reason: err.Error()})
		return
	}

	columns, err := im.provisionColumns(ctx, src)
	if err != nil {
		log.Error("Unable to provision custom columns", zap.Error(err))
		sum.add(RowResult{File: src.File, Outcome: Failed, Reason: err.Error()})
		return
	}

	log.Info("Importing workbook", zap.Int("sheets", len(sheets)))
	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			res := im.importRow(ctx, src.Project, row, columns)
			res.File = src.File
			res.Sheet = sheet.Name
			if res.Outcome == Failed {
				log.Warn("Row failed", zap.String("sheet", sheet.Name), zap.Int("row", row.Number), zap.String("reason", res.Reason))
			}
			sum.add(res)
		}
	}
}

type boundColumn struct {
	id  uint
	def ExtraColumn
}

func (im *Importer) provisionColumns(ctx context.Context, src Source) ([]boundColumn, error) {
	bound := make([]boundColumn, 0, len(src.Columns))
	for i, def := range src.Columns {
		col, err := im.Store.EnsureProjectColumn(ctx, src.Project, def.Name, def.Type, i)
		if err != nil {
			return nil, fmt.Errorf("importer: column %q: %w", def.Name, err)
		}
		bound = append(bound, boundColumn{id: col.ID, def: def})
	}
	return bound, nil
}

// importRow extracts and stores one row.
func (im *Importer) importRow(ctx context.Context, project string, row Row, columns []boundColumn) RowResult {
	res := RowResult{Row: row.Number}

	rec, reason, ok := im.Rules.Extract(row)
	if !ok {
		res.Outcome = Skipped
		res.Reason = reason
		return res
	}
	res.Key = rec.JiraKey

	card, outcome, err := im.upsert(ctx, project, rec)
	if err != nil {
		res.Outcome = Failed
		res.Reason = err.Error()
		return res
	}
	res.Outcome = outcome
	res.CardID = card.ID

	for _, col := range columns {
		value := firstText(row, col.def.Headers)
		if value == "" {
			continue
		}
		if _, err := im.Store.UpsertValue(ctx, card.ID, col.id, value); err != nil {
			zap.L().Warn("Unable to save custom value",
				zap.Uint("cardID", card.ID), zap.String("column", col.def.Name), zap.Error(err))
		}
	}
	return res
}

func (im *Importer) upsert(ctx context.Context, project string, rec Extracted) (*models.Card, Outcome, error) {
	if rec.JiraKey != "" {
		existing, err := im.Store.FindCardByJiraKey(ctx, rec.JiraKey)
		switch {
		case err == nil:
			card, err := im.Store.ApplyBulkUpdate(ctx, existing.ID, updateColumns(project, rec))
			if err != nil {
				return nil, Failed, err
			}
			return card, Updated, nil
		case !errors.Is(err, database.ErrNotFound):
			return nil, Failed, err
		}
	} else {
		existing, err := im.Store.FindCardBySummary(ctx, project, rec.Summary)
		switch {
		case err == nil:
			return existing, Duplicate, nil
		case !errors.Is(err, database.ErrNotFound):
			return nil, Failed, err
		}
	}

	card := &models.Card{
		JiraKey:          optionalText(rec.JiraKey),
		JiraURL:          optionalText(rec.JiraURL),
		Summary:          rec.Summary,
		Status:           rec.Status,
		BusinessPriority: rec.BusinessPriority,
		JiraPriority:     rec.JiraPriority,
		Project:          project,
		Comment:          rec.Comment,
		CreatedAt:        rec.CreatedAt,
		DateKnown:        rec.DateKnown,
	}
	if err := im.Store.CreateCard(ctx, card); err != nil {
		return nil, Failed, err
	}
	return card, Created, nil
}

// updateColumns keeps the stored value of every optional field the row left
// empty. The project is always overwritten by the importing source.
func updateColumns(project string, rec Extracted) map[string]any {
	cols := map[string]any{
		"summary": rec.Summary,
		"status":  rec.Status,
		"project": project,
	}
	if rec.BusinessPriority != nil {
		cols["business_priority"] = *rec.BusinessPriority
	}
	if rec.JiraPriority != nil {
		cols["jira_priority"] = *rec.JiraPriority
	}
	if rec.Comment != nil {
		cols["comment"] = *rec.Comment
	}
	if rec.JiraURL != "" {
		cols["jira_url"] = rec.JiraURL
	}
	return cols
}

func firstText(row Row, headers []string) string {
	for _, h := range headers {
		if s := strings.TrimSpace(textOf(row.Value(h))); s != "" {
			return s
		}
	}
	return ""
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
