// Package main provides the entry point for the berth CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/berth/internal/cli"
	"github.com/mrz1836/berth/internal/signal"
)

// Set via -ldflags at release time.
var (
	version = "dev"     //nolint:gochecknoglobals // ldflags target
	commit  = "none"    //nolint:gochecknoglobals // ldflags target
	date    = "unknown" //nolint:gochecknoglobals // ldflags target
)

func main() {
	os.Exit(run())
}

func run() int {
	h := signal.NewHandler(context.Background())
	defer h.Stop()
	defer cli.CloseLogFile()

	err := cli.Execute(h.Context(), cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err != nil && signal.IsInterrupted(h.Context()) {
		return cli.ExitInterrupted
	}
	return cli.ExitCodeForError(err)
}
