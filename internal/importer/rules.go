package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chxlky/roadmap-tracker/internal/models"
)

// Field tags the card attribute a rule chain resolves.
type Field string

const (
	FieldKey              Field = "jiraKey"
	FieldURL              Field = "jiraUrl"
	FieldSummary          Field = "summary"
	FieldStatus           Field = "status"
	FieldBusinessPriority Field = "businessPriority"
	FieldJiraPriority     Field = "jiraPriority"
	FieldComment          Field = "comment"
	FieldCreatedAt        Field = "createdAt"
)

// DefaultKeyPrefixes are the Jira projects whose keys are recognized in cells.
var DefaultKeyPrefixes = []string{"SIDEV", "SUPPIT", "SIOVERVIEW", "PROJ"}

const (
	browseURLMarker   = "atlassian.net/browse/"
	minSummaryLength  = 5
	longTextThreshold = 20
	minDateYear       = 2020
	maxDateYear       = 2030
)

// Header labels that, found as a value, reveal a header row leaking into data.
var (
	summaryHeaderLabels = []string{"Résumé", "Description", "Ticket JIRA", "Clé de ticket", "Type de ticket"}
	statusHeaderLabels  = []string{"État", "Etat", "Status", "Priorité"}
	jiraPriorityNames   = []string{"high", "medium", "low", "highest", "lowest"}
)

// Rule produces candidate values from a row and converts them; the first
// candidate that converts is the rule's result.
//
// A rule with Headers looks at those headers in order. By default only the
// first non-empty one is a candidate; with EachHeader every non-empty one is
// tried in turn. A rule with Cells instead scans every cell whose header the
// predicate accepts, in column order.
type Rule struct {
	Name       string
	Headers    []string
	EachHeader bool
	Cells      func(header string) bool
	Convert    func(v any) (any, bool)
}

func (r Rule) eval(row Row) (any, bool) {
	if r.Cells != nil {
		for _, c := range row.Cells {
			if isEmpty(c.Value) || !r.Cells(c.Header) {
				continue
			}
			if out, ok := r.Convert(c.Value); ok {
				return out, true
			}
		}
		return nil, false
	}

	for _, h := range r.Headers {
		v := row.Value(h)
		if isEmpty(v) {
			continue
		}
		if out, ok := r.Convert(v); ok {
			return out, true
		}
		if !r.EachHeader {
			return nil, false
		}
	}
	return nil, false
}

// Chain is the ordered list of rules resolving one field.
type Chain struct {
	Field Field
	Rules []Rule
}

// Resolve evaluates the rules in order and stops at the first success.
func (c Chain) Resolve(row Row) (any, string, bool) {
	for _, r := range c.Rules {
		if v, ok := r.eval(row); ok {
			return v, r.Name, true
		}
	}
	return nil, "", false
}

// Ruleset holds one chain per field.
type Ruleset struct {
	Chains map[Field]Chain
}

// DefaultRuleset builds the rule table for the roadmap spreadsheets. Key
// prefixes default to DefaultKeyPrefixes.
func DefaultRuleset(keyPrefixes []string) *Ruleset {
	if len(keyPrefixes) == 0 {
		keyPrefixes = DefaultKeyPrefixes
	}
	quoted := make([]string, len(keyPrefixes))
	for i, p := range keyPrefixes {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(strings.TrimSpace(p)))
	}
	keyRe := regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)-\d+`)

	anyCell := func(string) bool { return true }

	chains := []Chain{
		{FieldKey, []Rule{
			{Name: "key-pattern", Cells: anyCell, Convert: matchString(keyRe)},
		}},
		{FieldURL, []Rule{
			{Name: "browse-url", Cells: anyCell, Convert: containsString(browseURLMarker)},
		}},
		{FieldSummary, []Rule{
			{Name: "summary-headers", Headers: []string{
				"Résumé", "Description", "Summary", "Titre",
				"Backlog logistique (mise à jour le 29/01/2025)",
				"Détails des développements liés à Parcel Cube",
				"__EMPTY_1",
			}, Convert: trimmedText},
			{Name: "long-text", Cells: func(h string) bool { return !strings.Contains(h, "EMPTY") }, Convert: longText},
		}},
		{FieldStatus, []Rule{
			{Name: "status-headers", Headers: []string{
				"État", "Etat", "Etat d'avancement", "Etat d'avancement ", "Status", "Statut", "__EMPTY_2",
			}, Convert: trimmedText},
		}},
		{FieldBusinessPriority, []Rule{
			{Name: "priority-headers", Headers: []string{
				"Priorité", "Prioté Nastia", "Priorité Laurine", "__EMPTY_1",
			}, Convert: businessPriority},
		}},
		{FieldJiraPriority, []Rule{
			{Name: "jira-priority-headers", Headers: []string{"Priorité", "__EMPTY_3"}, Convert: jiraPriority},
		}},
		{FieldComment, []Rule{
			{Name: "comment-headers", Headers: []string{
				"Commentaire", "Commentaire IT", "Comments", "Note", "__EMPTY_3", "__EMPTY_6",
			}, Convert: trimmedText},
		}},
		{FieldCreatedAt, []Rule{
			{Name: "date-headers", Headers: []string{
				"Création", "Date", "Created", "Date de création", "__EMPTY_5",
			}, EachHeader: true, Convert: anyDate},
			{Name: "date-scan", Cells: notLastModified, Convert: plausibleDate},
		}},
	}

	rs := &Ruleset{Chains: make(map[Field]Chain, len(chains))}
	for _, c := range chains {
		rs.Chains[c.Field] = c
	}
	return rs
}

// Extracted is what the rules found in one row.
type Extracted struct {
	JiraKey          string
	JiraURL          string
	Summary          string
	Status           string
	BusinessPriority *int
	JiraPriority     *string
	Comment          *string
	CreatedAt        time.Time
	DateKnown        bool
}

// Extract applies the rule table to row. When the row cannot become a card,
// ok is false and reason says why.
func (rs *Ruleset) Extract(row Row) (rec Extracted, reason string, ok bool) {
	if row.NonEmpty() < 2 {
		return rec, "blank or separator row", false
	}

	rec.JiraKey = rs.text(FieldKey, row)
	rec.JiraURL = rs.text(FieldURL, row)

	rec.Summary = rs.text(FieldSummary, row)
	if utf8.RuneCountInString(rec.Summary) < minSummaryLength {
		return rec, "no usable summary", false
	}
	if contains(summaryHeaderLabels, rec.Summary) {
		return rec, "header row", false
	}

	rec.Status = rs.text(FieldStatus, row)
	if rec.Status == "" || contains(statusHeaderLabels, rec.Status) {
		rec.Status = models.DefaultStatus
	}

	if v, _, found := rs.Chains[FieldBusinessPriority].Resolve(row); found {
		n := v.(int)
		rec.BusinessPriority = &n
	}
	if s := rs.text(FieldJiraPriority, row); s != "" {
		rec.JiraPriority = &s
	}
	if s := rs.text(FieldComment, row); s != "" {
		rec.Comment = &s
	}

	rec.CreatedAt = models.PlaceholderDate
	if v, _, found := rs.Chains[FieldCreatedAt].Resolve(row); found {
		rec.CreatedAt = v.(time.Time)
		rec.DateKnown = true
	}
	return rec, "", true
}

func (rs *Ruleset) text(f Field, row Row) string {
	v, _, ok := rs.Chains[f].Resolve(row)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func matchString(re *regexp.Regexp) func(any) (any, bool) {
	return func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		m := re.FindString(s)
		return m, m != ""
	}
}

func containsString(marker string) func(any) (any, bool) {
	return func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, marker) {
			return nil, false
		}
		return strings.TrimSpace(s), true
	}
}

func trimmedText(v any) (any, bool) {
	s := strings.TrimSpace(textOf(v))
	return s, s != ""
}

func longText(v any) (any, bool) {
	s, ok := v.(string)
	if !ok || utf8.RuneCountInString(s) <= longTextThreshold || strings.Contains(s, "http") {
		return nil, false
	}
	return strings.TrimSpace(s), true
}

// businessPriority keeps only the digits of the value, so "P-3" reads as 3,
// and accepts results in [1, 100].
func businessPriority(v any) (any, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, textOf(v))
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > 100 {
		return nil, false
	}
	return n, true
}

func jiraPriority(v any) (any, bool) {
	s := strings.TrimSpace(textOf(v))
	if !contains(jiraPriorityNames, strings.ToLower(s)) {
		return nil, false
	}
	return s, true
}

func anyDate(v any) (any, bool) {
	t, ok := ParseDate(v)
	if !ok {
		return nil, false
	}
	return t, true
}

func plausibleDate(v any) (any, bool) {
	t, ok := ParseDate(v)
	if !ok || t.Year() < minDateYear || t.Year() > maxDateYear {
		return nil, false
	}
	return t, true
}

func notLastModified(header string) bool {
	h := strings.ToLower(header)
	return !strings.Contains(h, "mise à jour") && !strings.Contains(h, "update")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
