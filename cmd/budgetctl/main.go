package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"budgetbook/internal/cli"
	"budgetbook/internal/log"

	"github.com/alecthomas/kong"
)

var (
	// Version is set via ldflags when building.
	Version = ""

	app CLI
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	res := cli.OpenBackend(context.Background(), logger, cfg, false)
	defer res.Cleanup()

	s := &session{
		cfg:    cfg,
		store:  res.Store,
		events: res.Events(),
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
	}

	parser, err := newParser(&app, s, kong.UsageOnError())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(); err != nil {
		cli.NewPrinter(os.Stderr).Error(err.Error())
		res.Cleanup()
		os.Exit(1)
	}
}

func newParser(c *CLI, s *session, options ...kong.Option) (*kong.Kong, error) {
	version := Version
	if version == "" {
		version = "dev"
	}
	options = append([]kong.Option{
		kong.Name("budgetctl"),
		kong.Description("Manage a budgetbook ledger from the terminal."),
		kong.Vars{
			"version": version,
			"today":   s.now().Format(time.DateOnly),
		},
		kong.Bind(&c.Globals, s),
	}, options...)
	return kong.New(c, options...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
