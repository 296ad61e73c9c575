package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set at build time via -ldflags.
var Version = "v0.1.0-dev"

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	os.Exit(exitCode(err))
}
