package main

import (
	"os"

	servecmder "github.com/papercomputeco/snaps/cmd/snaps/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "snapsapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .snaps/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
