package format

import (
	"fmt"
	"strings"
	"time"
)

const longDate = "January 2, 2006"

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func (r *Registry) formatDate(value any, opts Options) string {
	if !truthy(value) {
		return ""
	}
	t, ok := ParseTime(value)
	if !ok {
		return String(value)
	}
	if opts["format"] == "relative" {
		return Relative(t, r.now())
	}
	return t.UTC().Format(longDate)
}

func (r *Registry) formatTimeAgo(value any, _ Options) string {
	if !truthy(value) {
		return ""
	}
	t, ok := ParseTime(value)
	if !ok {
		return String(value)
	}
	return Relative(t, r.now())
}

// ParseTime accepts time.Time, ISO-8601 style strings and numbers holding
// milliseconds since the Unix epoch.
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := toNumber(v); ok {
		return time.UnixMilli(int64(ms)), true
	}
	return time.Time{}, false
}

// Relative describes how long before now t was, truncating each unit:
// 59 seconds is "just now" and 119 minutes is "an hour ago". Times in the
// future read as "just now".
func Relative(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int64(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	case hours > 0:
		if hours == 1 {
			return "an hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case minutes > 0:
		if minutes == 1 {
			return "a minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	return "just now"
}
