package database

import (
	"errors"
	"time"
)

// storedTimeLayout is fixed width so lexical order in SQL matches time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t the way every timestamp column stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// NullableTime returns nil for a nil pointer so the column stays NULL.
func NullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return FormatTime(*value)
}

// NullableString returns nil for an empty string so the column stays NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// ParseTime parses a stored timestamp.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
