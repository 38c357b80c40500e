package core

// Person identifies the authenticated principal attached to a log entry.
type Person struct {
	ID    string
	Role  string
	Email string
}

// Logger is the logging interface used across the apps.
// args may hold an error, a map[string]interface{} of extra fields or a Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
