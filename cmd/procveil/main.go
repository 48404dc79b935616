package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// These should be set via `go build` during a release.
var (
	GitCommit = "undefined"
	GitRef    = "no-ref"
	Version   = "local"
)

func main() {
	root := cobra.Command{
		Use: "procveil",
	}

	root.AddCommand(
		NewRunCommand(Version),
		NewViewCommand(),
	)

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
