package cfg

// GetDefaultLoggingConfig returns the default configuration that is to be used
// during the application startup - when the provided configuration hasn't been
// parsed yet.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: "INFO",
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}
