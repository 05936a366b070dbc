package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNormalizeHeaders(t *testing.T) {
	got := normalizeHeaders([]any{"A", "", "A", " ", nil}, 6)
	assert.Equal(t, []string{"A", "__EMPTY", "A_1", "__EMPTY_1", "__EMPTY_2", "__EMPTY_3"}, got)
}

func TestNewSheetSkipsBlankRows(t *testing.T) {
	sheet := NewSheet("Backlog", [][]any{
		{"Résumé", "État"},
		{"Premier sujet", "En cours"},
		{nil, "  "},
		{"Dernier sujet"},
	})
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, 4, sheet.Rows[1].Number)
	assert.Nil(t, sheet.Rows[1].Value("État"))
	assert.Equal(t, 1, sheet.Rows[1].NonEmpty())
}

func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()
	return writeWorkbookAt(t, sheets, 1, 1)
}

// writeWorkbookAt writes every sheet with its first row at (col, firstRow).
func writeWorkbookAt(t *testing.T, sheets map[string][][]any, col, firstRow int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(col, firstRow+i)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	path := filepath.Join(t.TempDir(), "roadmap.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbookXLSX(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Backlog": {
			{"Clé de ticket", "Résumé", "", "Création"},
			{"SIDEV-1", "Refonte du tunnel", "note", 45356},
			{"SIDEV-2", "Nouveau back-office", nil, "5/3/24"},
		},
	})

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	sheet := sheets[0]
	assert.Equal(t, "Backlog", sheet.Name)
	assert.Equal(t, []string{"Clé de ticket", "Résumé", "__EMPTY", "Création"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "SIDEV-1", sheet.Rows[0].Value("Clé de ticket"))
	assert.Equal(t, 45356.0, sheet.Rows[0].Value("Création"))
	assert.Equal(t, "note", sheet.Rows[0].Value("__EMPTY"))
	assert.Equal(t, "5/3/24", sheet.Rows[1].Value("Création"))
}

func TestReadWorkbookXLSXOffsetRange(t *testing.T) {
	path := writeWorkbookAt(t, map[string][][]any{
		"Veepee": {
			{"Résumé", nil, "État"},
			{"Refonte du tunnel de commande", "x", "En cours"},
			{"Nouveau back-office logistique", nil, "À faire"},
		},
	}, 2, 2)

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	sheet := sheets[0]
	assert.Equal(t, []string{"Résumé", "__EMPTY", "État"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 3, sheet.Rows[0].Number)
	assert.Equal(t, "En cours", sheet.Rows[0].Value("État"))
	assert.Equal(t, "x", sheet.Rows[0].Value("__EMPTY"))

	rec, reason, ok := DefaultRuleset(nil).Extract(sheet.Rows[0])
	require.True(t, ok, reason)
	assert.Equal(t, "Refonte du tunnel de commande", rec.Summary)
	assert.Equal(t, "En cours", rec.Status)
}

func TestUsedRange(t *testing.T) {
	grid, top := usedRange([][]any{
		{},
		{nil, nil},
		{nil, "Résumé", "État"},
		{nil, nil, "À faire"},
	})
	assert.Equal(t, 2, top)
	assert.Equal(t, [][]any{{"Résumé", "État"}, {nil, "À faire"}}, grid)

	grid, top = usedRange([][]any{{"A", "B"}})
	assert.Equal(t, 0, top)
	assert.Equal(t, [][]any{{"A", "B"}}, grid)
}

func TestReadWorkbookCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sav.csv")
	content := "\xef\xbb\xbfRésumé;État;;Création\n" +
		"\"Relance; colis bloqués\";En cours;x;12/févr./25\n" +
		";;;\n" +
		"Inventaire;À faire;;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	sheet := sheets[0]
	assert.Equal(t, "sav", sheet.Name)
	assert.Equal(t, []string{"Résumé", "État", "__EMPTY", "Création"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Relance; colis bloqués", sheet.Rows[0].Value("Résumé"))
	assert.Equal(t, "12/févr./25", sheet.Rows[0].Value("Création"))
	assert.Nil(t, sheet.Rows[1].Value("Création"))
}

func TestReadWorkbookUnsupported(t *testing.T) {
	_, err := ReadWorkbook("roadmap.ods")
	assert.Error(t, err)

	_, err = ReadWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
