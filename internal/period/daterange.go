package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abverdict/abverdict/internal/stats"
)

// DateRange is an inclusive range of calendar days, both ends at UTC midnight.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// Years outside this window are typos, not experiment data.
const (
	minYear = 1970
	maxYear = 2200
)

// maxWrapMonths bounds how far a year-less side may reach across New Year.
// "Dec 28 - Jan 3, 2025" wraps by one month; "Sep 1 - Aug 24, 2025" would
// need eleven and is rejected as reversed.
const maxWrapMonths = 2

// String formats the range as "Jan 2, 2006 - Jan 2, 2006".
func (r DateRange) String() string {
	return r.Start.Format(displayLayout) + " - " + r.End.Format(displayLayout)
}

const displayLayout = "Jan 2, 2006"

var englishMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Short month names as shown by the Turkish analytics UI.
var turkishMonths = map[string]time.Month{
	"oca": time.January, "şub": time.February, "mar": time.March,
	"nis": time.April, "may": time.May, "haz": time.June,
	"tem": time.July, "ağu": time.August, "eyl": time.September,
	"eki": time.October, "kas": time.November, "ara": time.December,
}

// dayParts is a partially parsed date; year is 0 when the text had none.
type dayParts struct {
	year  int
	month time.Month
	day   int
}

// ParseDateRange parses "<start> - <end>". Accepted day formats:
//
//	Aug 24 / Aug 24, 2025 / 24 Aug 2025
//	2025-08-24
//	1 Oca 2024 (Turkish short months)
//
// A side without a year takes the other side's year. When the months run
// backwards by no more than maxWrapMonths across New Year, the year rolls
// over ("Dec 28 - Jan 3, 2025" starts in 2024); otherwise the range is
// reversed and rejected. defaultYear is used when neither side has a year.
func ParseDateRange(s string, defaultYear int) (DateRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateRange{}, &stats.ValidationError{Field: "date_range", Reason: "missing date range"}
	}

	left, right, ok := splitRange(s)
	if !ok {
		return DateRange{}, &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("expected \"<start> - <end>\", got %q", s)}
	}

	start, err := parseDay(left)
	if err != nil {
		return DateRange{}, err
	}
	end, err := parseDay(right)
	if err != nil {
		return DateRange{}, err
	}

	switch {
	case start.year == 0 && end.year == 0:
		start.year, end.year = defaultYear, defaultYear
	case start.year == 0:
		start.year = end.year
		if wrapsNewYear(start.month, end.month) {
			start.year--
		}
	case end.year == 0:
		end.year = start.year
		if wrapsNewYear(start.month, end.month) {
			end.year++
		}
	}
	if !validYear(start.year) || !validYear(end.year) {
		return DateRange{}, &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("range %q falls outside %d-%d", s, minYear, maxYear)}
	}

	r := DateRange{
		Start: time.Date(start.year, start.month, start.day, 0, 0, 0, 0, time.UTC),
		End:   time.Date(end.year, end.month, end.day, 0, 0, 0, 0, time.UTC),
	}
	if r.Start.Day() != start.day || r.End.Day() != end.day {
		return DateRange{}, &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("range %q names a day that does not exist", s)}
	}
	if r.End.Before(r.Start) {
		return DateRange{}, &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("range %q ends before it starts", s)}
	}
	return r, nil
}

func wrapsNewYear(start, end time.Month) bool {
	if start <= end {
		return false
	}
	return int(end)+12-int(start) <= maxWrapMonths
}

// splitRange splits on the " - " separator. ISO dates contain bare hyphens,
// so the separator must carry spaces, except for the "2025-08-24-2025-09-01"
// style which is split at the middle hyphen.
func splitRange(s string) (string, string, bool) {
	for _, sep := range []string{" - ", " – ", " — "} {
		if i := strings.Index(s, sep); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):]), true
		}
	}
	if len(s) == 21 && s[10] == '-' {
		return s[:10], s[11:], true
	}
	return "", "", false
}

func parseDay(s string) (dayParts, error) {
	invalid := &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("cannot parse date %q", s)}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		if !validYear(t.Year()) {
			return dayParts{}, invalid
		}
		return dayParts{year: t.Year(), month: t.Month(), day: t.Day()}, nil
	}

	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) < 2 || len(fields) > 3 {
		return dayParts{}, invalid
	}

	var p dayParts
	var ok bool
	if day, err := strconv.Atoi(fields[0]); err == nil {
		// "24 Aug 2025" or "1 Oca 2024"
		p.day = day
		p.month, ok = lookupMonth(fields[1])
	} else {
		// "Aug 24" or "Aug 24 2025"
		p.month, ok = lookupMonth(fields[0])
		p.day, err = strconv.Atoi(fields[1])
		if err != nil {
			return dayParts{}, invalid
		}
	}
	if !ok {
		return dayParts{}, invalid
	}

	if len(fields) == 3 {
		year, err := strconv.Atoi(fields[2])
		if err != nil || !validYear(year) {
			return dayParts{}, invalid
		}
		p.year = year
	}

	if p.day < 1 || p.day > daysIn(p.month, p.year) {
		return dayParts{}, invalid
	}
	return p, nil
}

func validYear(year int) bool {
	return year >= minYear && year <= maxYear
}

func lookupMonth(name string) (time.Month, bool) {
	key := strings.ToLower(name)
	if len([]rune(key)) > 3 {
		key = string([]rune(key)[:3])
	}
	if m, ok := englishMonths[key]; ok {
		return m, true
	}
	m, ok := turkishMonths[key]
	return m, ok
}

// daysIn returns the length of month; year 0 is treated as a leap year so
// "Feb 29" without a year is accepted and checked once the year is known.
func daysIn(m time.Month, year int) int {
	if year == 0 {
		year = 2000
	}
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
