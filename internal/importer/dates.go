package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// serialEpochOffset is the spreadsheet serial number of 1970-01-01; serial
// day zero is 1899-12-30.
const serialEpochOffset = 25569

// maxMillis bounds timestamps to the range spreadsheets and browsers accept.
const maxMillis = 8.64e15

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	frenchDateRe  = regexp.MustCompile(`(?i)^(\d{1,2})/([a-zéûô]+)\.?/(\d{2,4})`)
)

var frenchMonths = map[string]time.Month{
	"janv": time.January, "jan": time.January, "janvier": time.January,
	"févr": time.February, "fev": time.February, "fevr": time.February, "février": time.February,
	"mars": time.March, "mar": time.March,
	"avr": time.April, "avril": time.April,
	"mai":  time.May,
	"juin": time.June, "jun": time.June,
	"juil": time.July, "juill": time.July, "juillet": time.July,
	"août": time.August, "aout": time.August, "ao": time.August,
	"sept": time.September, "sep": time.September, "septembre": time.September,
	"oct": time.October, "octobre": time.October,
	"nov": time.November, "novembre": time.November,
	"déc": time.December, "dec": time.December, "décembre": time.December,
}

var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate interprets a cell value as a date. It accepts time values,
// spreadsheet serial numbers, D/M/Y and D/M/YY dates, D/<french month>/Y
// dates and ISO timestamps. Anything else yields false.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case float64:
		return fromSerial(x)
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case string:
		return parseDateString(x)
	default:
		return parseDateString(fmt.Sprint(x))
	}
}

func fromSerial(serial float64) (time.Time, bool) {
	if serial == 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	ms := (serial - serialEpochOffset) * 86400 * 1000
	if math.Abs(ms) > maxMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return calendarDate(m[3], time.Month(month), day)
	}

	if m := frenchDateRe.FindStringSubmatch(s); m != nil {
		if month, ok := frenchMonths[strings.ToLower(m[2])]; ok {
			day, _ := strconv.Atoi(m[1])
			return calendarDate(m[3], month, day)
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// calendarDate builds a UTC midnight date; two-digit years are in the 2000s.
// Out-of-range days and months roll over the way spreadsheet dates do.
func calendarDate(yearText string, month time.Month, day int) (time.Time, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
