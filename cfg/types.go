// Package cfg is the typed configuration surface for kvfsd: a Config
// struct whose fields bind 1:1 to CLI flags via pflag/viper, the way
// gcsfuse's generated cfg package binds its mount flags.
package cfg

import (
	"strconv"
)

// Octal is the datatype for file-mode, which accepts a base-8 value on
// the command line (e.g. "0755").
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// Config is the root configuration object for one kvfsd process.
type Config struct {
	AppName string `mapstructure:"app-name" yaml:"app-name"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`

	RateLimit RateLimitConfig `mapstructure:"rate-limit" yaml:"rate-limit"`

	Debug DebugConfig `mapstructure:"debug" yaml:"debug"`
}

// LoggingConfig mirrors the severity/format/rotation knobs package
// internal/logger exposes.
type LoggingConfig struct {
	Severity string `mapstructure:"severity" yaml:"severity"`
	Format   string `mapstructure:"format" yaml:"format"`
	FilePath string `mapstructure:"file-path" yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `mapstructure:"log-rotate" yaml:"log-rotate"`
}

// LogRotateLoggingConfig configures gopkg.in/natefinch/lumberjack.v2.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `mapstructure:"max-file-size-mb" yaml:"max-file-size-mb"`
	BackupFileCount int  `mapstructure:"backup-file-count" yaml:"backup-file-count"`
	Compress        bool `mapstructure:"compress" yaml:"compress"`
}

// RegistryConfig configures the default filesystem a freshly initialized
// registry bootstraps. RootMode is parsed but not applied anywhere:
// registry.FSCreate always creates a root with mode 0777.
type RegistryConfig struct {
	DefaultFSName string `mapstructure:"default-fs-name" yaml:"default-fs-name"`
	RootMode      Octal  `mapstructure:"root-mode" yaml:"root-mode"`
}

// RateLimitConfig holds the knobs for a ratelimit.TokenBucketThrottle.
// It is parsed and validated only: no KVS/DSTORE adapter in this module
// is throttled by it.
type RateLimitConfig struct {
	OpsPerSecond float64 `mapstructure:"ops-per-second" yaml:"ops-per-second"`
	Burst        int     `mapstructure:"burst" yaml:"burst"`
}

// DebugConfig mirrors the teacher's "exit on invariant violation" debug
// knob. It is parsed but not read anywhere: registry's invariant check
// panics on a violation regardless of this setting.
type DebugConfig struct {
	ExitOnInvariantViolation bool `mapstructure:"exit-on-invariant-violation" yaml:"exit-on-invariant-violation"`
}
