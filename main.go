package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"shelf-meta-srv/cmd"
)

// version is stamped at build time:
//
//	go build -ldflags "-X main.version=$(git describe --tags)"
var version = "dev"

func main() {
	// fang adds --version, completions and manpages, and cancels the
	// command context on interrupt so serve can shut down cleanly
	if err := fang.Execute(
		context.Background(),
		cmd.NewRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
