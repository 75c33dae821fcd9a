package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/kvsfs/kvsfs-core/dstore/dstoretest"
	"github.com/kvsfs/kvsfs-core/kvs/kvstest"
)

func TestRootCommandBootstrapsDefaultFilesystem(t *testing.T) {
	viper.Reset()
	cfgFile = ""

	root := NewRootCmd(Backends{
		KVS:    kvstest.NewStore(),
		DStore: dstoretest.NewStore(),
	})
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
}
