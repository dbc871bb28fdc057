package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletlink",
		Usage: "Drive a walletlink daemon: connect a mobile wallet, check balance, send SOL",
		Description: `A command-line client for the walletlink daemon's HTTP API.

Every transfer is approved on the phone; the daemon never holds keys.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			statusCommand(),
			connectCommand(),
			disconnectCommand(),
			balanceCommand(),
			airdropCommand(),
			sendCommand(),
			draftCommands(),
			qrCommand(),
			watchCommand(),
			healthCommand(),
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "walletlink daemon URL",
				EnvVars: []string{"WALLETLINK_SERVER_URL"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log client requests to stderr",
			},
		},
	}
}
