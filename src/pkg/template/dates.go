package template

import "time"

// isoLayouts are the ISO-8601 shapes accepted by the date filters. Fractional
// seconds are accepted by time.Parse after any seconds field.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseISO parses an ISO-8601 date or timestamp.
func ParseISO(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders an ISO timestamp as YYYY-MM-DD; unparsable input is
// returned unchanged.
func FormatDate(s string) string {
	t, ok := ParseISO(s)
	if !ok {
		return s
	}
	return t.Format(DateLayout)
}

// FormatDatetime renders an ISO timestamp as YYYY-MM-DD HH:MM:SS in its own
// offset; unparsable input is returned unchanged.
func FormatDatetime(s string) string {
	t, ok := ParseISO(s)
	if !ok {
		return s
	}
	return t.Format(DatetimeLayout)
}
