// Command supera voxelizes simulated detector events and labels every
// voxel with its owning particle.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
