package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every kvfsd flag on flagSet and binds it into viper
// under the dotted key its Config field reads from, the way gcsfuse's
// generated cfg.BindFlags wires pflag to viper one field at a time.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "kvfsd", "The application name of this process.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum severity to log: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to write logs to; empty means stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-max-file-size-mb", "", 512, "Maximum size in MB a log file is allowed to reach before rotation.")
	if err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-max-file-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-backup-file-count", "", 10, "Number of rotated log files to retain; 0 retains all.")
	if err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-backup-file-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-compress", "", true, "Compress rotated log files.")
	if err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-compress")); err != nil {
		return err
	}

	flagSet.StringP("default-fs-name", "", "default", "Name of the filesystem to create on first startup if none are registered.")
	if err = viper.BindPFlag("registry.default-fs-name", flagSet.Lookup("default-fs-name")); err != nil {
		return err
	}

	flagSet.IntP("root-mode", "", 0755, "Permission bits for new filesystem roots, in octal (not applied: roots are created with 0777).")
	if err = viper.BindPFlag("registry.root-mode", flagSet.Lookup("root-mode")); err != nil {
		return err
	}

	flagSet.Float64P("rate-limit-ops-per-second", "", 0, "Operations per second for the rate limiter; 0 disables it (not applied to any KVS/DSTORE adapter).")
	if err = viper.BindPFlag("rate-limit.ops-per-second", flagSet.Lookup("rate-limit-ops-per-second")); err != nil {
		return err
	}

	flagSet.IntP("rate-limit-burst", "", 1, "Burst size for the operation rate limiter.")
	if err = viper.BindPFlag("rate-limit.burst", flagSet.Lookup("rate-limit-burst")); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit on internal invariant violation (not read: invariant violations always panic).")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	return nil
}

// Decode unmarshals v (typically the global viper instance, post-BindFlags
// and post-config-file-merge) into a Config using mapstructure, matching
// the decode step gcsfuse's cfg package runs after BindFlags.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c, viper.DecodeHook(decodeHook)); err != nil {
		return nil, err
	}
	return &c, nil
}
