package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// blankHeader names columns whose header cell is empty.
const blankHeader = "__EMPTY"

// Cell is one value of a row. Value is nil, a string, a float64 (numeric
// cells, including serial dates) or a time.Time.
type Cell struct {
	Header string
	Value  any
}

// Row is a data row keyed by the sheet's normalized headers, in column order.
type Row struct {
	Number int // 1-based row number in the sheet
	Cells  []Cell
}

// Value returns the value under header, or nil.
func (r Row) Value(header string) any {
	for _, c := range r.Cells {
		if c.Header == header {
			return c.Value
		}
	}
	return nil
}

// NonEmpty counts the cells holding a value.
func (r Row) NonEmpty() int {
	n := 0
	for _, c := range r.Cells {
		if !isEmpty(c.Value) {
			n++
		}
	}
	return n
}

type Sheet struct {
	Name    string
	Headers []string
	Rows    []Row
}

// NewSheet turns a grid whose first line is the header row into a Sheet.
func NewSheet(name string, grid [][]any) Sheet {
	return newSheetAt(name, grid, 1)
}

// newSheetAt is NewSheet for a grid whose header sits on sheet row headerRow.
func newSheetAt(name string, grid [][]any, headerRow int) Sheet {
	sheet := Sheet{Name: name}
	if len(grid) == 0 {
		return sheet
	}

	width := 0
	for _, line := range grid {
		width = max(width, len(line))
	}
	sheet.Headers = normalizeHeaders(grid[0], width)

	for i, line := range grid[1:] {
		row := Row{Number: headerRow + i + 1, Cells: make([]Cell, width)}
		for c := 0; c < width; c++ {
			row.Cells[c].Header = sheet.Headers[c]
			if c < len(line) {
				row.Cells[c].Value = line[c]
			}
		}
		if row.NonEmpty() == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// normalizeHeaders names blank headers __EMPTY, __EMPTY_1, ... and suffixes
// repeated headers with _1, _2, ...
func normalizeHeaders(raw []any, width int) []string {
	headers := make([]string, width)
	used := make(map[string]bool, width)
	counts := make(map[string]int, width)
	for c := 0; c < width; c++ {
		name := ""
		if c < len(raw) {
			name = textOf(raw[c])
		}
		if strings.TrimSpace(name) == "" {
			name = blankHeader
		}
		unique := name
		for used[unique] {
			counts[name]++
			unique = fmt.Sprintf("%s_%d", name, counts[name])
		}
		used[unique] = true
		headers[c] = unique
	}
	return headers
}

// ReadWorkbook loads every sheet of an .xlsx/.xlsm workbook or a .csv file.
func ReadWorkbook(path string) ([]Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readXLSX(path)
	case ".csv", ".txt":
		return readCSV(path)
	}
	return nil, fmt.Errorf("importer: unsupported file type %q", filepath.Ext(path))
}

func readXLSX(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open %s: %w", path, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("importer: read sheet %q of %s: %w", name, path, err)
		}

		grid := make([][]any, len(rows))
		for r, line := range rows {
			grid[r] = make([]any, len(line))
			for c, raw := range line {
				if raw == "" {
					continue
				}
				grid[r][c] = typedCell(f, name, r, c, raw)
			}
		}
		used, top := usedRange(grid)
		sheets = append(sheets, newSheetAt(name, used, top+1))
	}
	return sheets, nil
}

// usedRange drops the blank rows above and the blank columns left of the
// data, so the header row is the first non-empty one and starts at the
// leftmost filled column. It returns the number of rows dropped.
func usedRange(grid [][]any) ([][]any, int) {
	top := 0
	for top < len(grid) && !rowFilled(grid[top]) {
		top++
	}
	grid = grid[top:]

	left := -1
	for _, line := range grid {
		for c, v := range line {
			if !isEmpty(v) {
				if left < 0 || c < left {
					left = c
				}
				break
			}
		}
	}
	if left <= 0 {
		return grid, top
	}

	trimmed := make([][]any, len(grid))
	for r, line := range grid {
		if len(line) > left {
			trimmed[r] = line[left:]
		}
	}
	return trimmed, top
}

func rowFilled(line []any) bool {
	for _, v := range line {
		if !isEmpty(v) {
			return true
		}
	}
	return false
}

// typedCell keeps text cells as strings and turns numeric cells into float64
// so that serial dates can be told apart from typed-in dates.
func typedCell(f *excelize.File, sheet string, r, c int, raw string) any {
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}

func readCSV(path string) ([]Sheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open %s: %w", path, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	first, _ := br.Peek(4096)

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(string(first))

	var grid [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importer: read %s: %w", path, err)
		}
		line := make([]any, len(record))
		for i, v := range record {
			if v != "" {
				line[i] = v
			}
		}
		grid = append(grid, line)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	used, top := usedRange(grid)
	return []Sheet{newSheetAt(name, used, top+1)}, nil
}

// sniffDelimiter picks ';' when the header line uses it more than ','.
func sniffDelimiter(sample string) rune {
	header, _, _ := strings.Cut(sample, "\n")
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// textOf renders a cell value as text.
func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
