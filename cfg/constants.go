package cfg

// Logging-level constants, matching the values package internal/logger
// accepts for LoggingConfig.Severity.
const (
	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)
