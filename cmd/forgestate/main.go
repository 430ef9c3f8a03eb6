// Package main is the forgestate command line: browse templates, instantiate
// them and validate workflow states offline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/forgestate/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// Exit coder errors terminate inside Run with their own status.
	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "forgestate",
		Usage:                 "Generate and validate Agent Forge workflow states",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			logger := log.New(command.Root().ErrWriter, command.String("log-level"), log.ModeProduction)

			return log.ContextWithLogger(ctx, logger.With("module", "cli")), nil
		},
		Commands: []*cli.Command{
			templatesCommand(),
			instantiateCommand(),
			validateCommand(),
			blocksCommand(),
		},
	}
}
