package main

import (
	"os"

	snapscmder "github.com/papercomputeco/snaps/cmd/snaps"
)

func main() {
	cmd := snapscmder.NewSnapsCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
