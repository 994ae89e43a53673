package applog

// AppLogger is the structured logger used across the service. Arguments are
// alternating key/value pairs as accepted by log/slog.
type AppLogger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
	Trace(msg string, args ...any)
	Fatal(msg string, args ...any)
}
