package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/marketlens/internal/bootstrap"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger(false)
	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		logger.ErrorContext(ctx, "command failed", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "marketlens-admin",
		Usage:  "Operate marketlens analyses from the command line",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Run a full analysis synchronously and print the finished job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "idea",
						Usage:    "business idea to analyze",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "problem",
						Usage: "optional problem statement",
					},
				},
				Action: analyzeAction,
			},
			{
				Name:      "size",
				Usage:     "Size a market from a JSON file of raw sources",
				ArgsUsage: "<file|->",
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:  "geo",
						Usage: "geographic focus in (0,1]; overrides the file and the default",
					},
				},
				Action: sizeAction,
			},
			{
				Name:   "sweep",
				Usage:  "Run one retention pass over the job store",
				Action: sweepAction,
			},
		},
	}
}
