// Package main provides the refiner command line.
package main

import (
	"context"
	"os"

	"github.com/dukex/refiner/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "refiner",
		Usage:                 "Validate, evaluate and recursively refine workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewValidateCommand(),
			NewEvaluateCommand(),
			NewRunCommand(),
			NewScheduleCommand(),
			NewWatchCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("refiner").Error("Command failed", "error", err)
		os.Exit(1)
	}
}
