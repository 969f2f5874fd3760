package core

// Logger is any service that can record application events.
// expected args: error, map[string]interface{} or any value the implementation knows how to attach.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
