// Command kvfsd boots the metadata-core registry against an in-memory
// KVS/DSTORE pair for local smoke-testing. A production deployment links
// the cmd package against real KVS/DSTORE backends instead of
// kvstest/dstoretest.
package main

import (
	"os"

	"github.com/kvsfs/kvsfs-core/cmd"
	"github.com/kvsfs/kvsfs-core/dstore/dstoretest"
	"github.com/kvsfs/kvsfs-core/kvs/kvstest"
)

func main() {
	root := cmd.NewRootCmd(cmd.Backends{
		KVS:    kvstest.NewStore(),
		DStore: dstoretest.NewStore(),
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
