package log

import (
	"log/slog"
)

// Err returns an Attr for the given error value, resolved through its
// Error method. A nil error is logged as "no-error".
func Err(key string, value error) slog.Attr {
	if value == nil {
		return slog.String(key, "no-error")
	}
	return slog.String(key, value.Error())
}

// Stringer returns an Attr holding v.String(). Dates and references in
// the lending package implement fmt.Stringer.
func Stringer(key string, v interface{ String() string }) slog.Attr {
	return slog.String(key, v.String())
}
