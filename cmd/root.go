// Package cmd wires the cfg/logger/registry ambient stack into a cobra
// command line, the way the teacher's own cmd package assembles a mount
// command from BindFlags + viper + a fileSystem. kvfsd has no FUSE/NFS
// frontend of its own (out of scope per spec §1); NewRootCmd's RunE simply
// boots a Registry, creates the default filesystem if it is missing, and
// logs the names of the registered filesystems, as a smoke test a real
// frontend binary would replace.
package cmd

import (
	"context"
	"fmt"

	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kvsfs/kvsfs-core/cfg"
	"github.com/kvsfs/kvsfs-core/dstore"
	"github.com/kvsfs/kvsfs-core/internal/logger"
	"github.com/kvsfs/kvsfs-core/kvs"
	"github.com/kvsfs/kvsfs-core/registry"
)

// Backends bundles the pluggable KVS/DSTORE implementations the process
// should boot the registry against. A real deployment supplies concrete
// backends here; package kvstest/dstoretest supply in-memory ones for
// local smoke-testing.
type Backends struct {
	KVS    kvs.Store
	DStore dstore.Store
}

var cfgFile string

// NewRootCmd builds the kvfsd root command. backends is injected rather
// than constructed here because concrete KVS/DSTORE implementations are
// outside this module's scope.
func NewRootCmd(backends Backends) *cobra.Command {
	root := &cobra.Command{
		Use:   "kvfsd",
		Short: "kvfsd runs the metadata core registry against a KVS/DSTORE backend pair",
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
				if err := viper.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config file %q: %w", cfgFile, err)
				}
			}
			conf, err := cfg.Decode(viper.GetViper())
			if err != nil {
				return fmt.Errorf("decoding config: %w", err)
			}
			if err := cfg.ValidateConfig(conf); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}
			logger.Init(conf.Logging)
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			c.SetContext(withConfig(ctx, conf))
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return runBootstrap(c, backends)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	if err := cfg.BindFlags(root.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("cmd: BindFlags on root command: %v", err))
	}

	return root
}

func runBootstrap(c *cobra.Command, backends Backends) error {
	conf := configFromContext(c.Context())

	clock := timeutil.RealClock()
	reg := registry.Init(backends.KVS, backends.DStore, clock)

	if _, err := reg.Lookup(c.Context(), conf.Registry.DefaultFSName); err != nil {
		logger.Infof("bootstrapping default filesystem %q", conf.Registry.DefaultFSName)
		if _, err := reg.FSCreate(c.Context(), conf.Registry.DefaultFSName); err != nil {
			return fmt.Errorf("bootstrapping default filesystem: %w", err)
		}
	}

	names := reg.ScanList(c.Context())
	logger.Infof("registry ready: %d filesystem(s) registered: %v", len(names), names)
	return nil
}
