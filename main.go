package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/runcat/cmd"
	"github.com/tphakala/runcat/internal/buildinfo"
	"github.com/tphakala/runcat/internal/config"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := config.NewContext(buildinfo.NewContext(version, buildDate))
	rootCmd := cmd.RootCommand(app)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_ = app.Close()
		fmt.Fprintf(os.Stderr, "runcat: %v\n", err)
		return 1
	}
	return 0
}
