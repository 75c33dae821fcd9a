package cfg

import "fmt"

var validSeverities = map[string]bool{
	"TRACE": true, "DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "OFF": true,
}

func isValidLogRotateConfig(c *LogRotateLoggingConfig) error {
	if c.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if c.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}

func isValidLoggingConfig(c *LoggingConfig) error {
	if !validSeverities[c.Severity] {
		return fmt.Errorf("invalid logging.severity %q", c.Severity)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid logging.format %q, want text or json", c.Format)
	}
	return isValidLogRotateConfig(&c.LogRotate)
}

func isValidRateLimitConfig(c *RateLimitConfig) error {
	if c.OpsPerSecond < 0 {
		return fmt.Errorf("rate-limit.ops-per-second cannot be negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("rate-limit.burst cannot be negative")
	}
	return nil
}

func isValidRegistryConfig(c *RegistryConfig) error {
	if c.DefaultFSName == "" {
		return fmt.Errorf("registry.default-fs-name must not be empty")
	}
	return nil
}

// ValidateConfig returns a non-nil error if config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}
	if err := isValidRateLimitConfig(&config.RateLimit); err != nil {
		return fmt.Errorf("error parsing rate-limit config: %w", err)
	}
	if err := isValidRegistryConfig(&config.Registry); err != nil {
		return fmt.Errorf("error parsing registry config: %w", err)
	}
	return nil
}
