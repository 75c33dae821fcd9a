package cmd

import (
	"context"

	"github.com/kvsfs/kvsfs-core/cfg"
)

type configKey struct{}

func withConfig(ctx context.Context, c *cfg.Config) context.Context {
	return context.WithValue(ctx, configKey{}, c)
}

func configFromContext(ctx context.Context) *cfg.Config {
	c, _ := ctx.Value(configKey{}).(*cfg.Config)
	if c == nil {
		return &cfg.Config{Registry: cfg.RegistryConfig{DefaultFSName: "default"}}
	}
	return c
}
