package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brojonat/walletlink/client"
	"github.com/urfave/cli/v2"
)

func jqFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "jq",
		Usage: "jq filter applied to the JSON result (e.g. '.balance')",
	}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "timeout",
		Value: 2 * time.Minute,
		Usage: "Give up waiting after this long (approvals happen on the phone)",
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the session: connection, address, balance, draft",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			s, err := newClient(c).Status(c.Context)
			if err != nil {
				return err
			}
			return emit(c, s, func(w io.Writer) { printSession(w, s) })
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Ask the wallet app to authorize this daemon",
		Flags: []cli.Flag{jqFlag(), timeoutFlag()},
		Action: func(c *cli.Context) error {
			return sessionAction(c, (*client.Client).Connect)
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "End the session and forget the authorization",
		Flags: []cli.Flag{jqFlag(), timeoutFlag()},
		Action: func(c *cli.Context) error {
			return sessionAction(c, (*client.Client).Disconnect)
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Refetch the balance from the ledger",
		Flags: []cli.Flag{jqFlag(), timeoutFlag()},
		Action: func(c *cli.Context) error {
			return sessionAction(c, (*client.Client).RefreshBalance)
		},
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:  "airdrop",
		Usage: "Request faucet SOL (devnet and testnet only)",
		Flags: []cli.Flag{jqFlag(), timeoutFlag()},
		Action: func(c *cli.Context) error {
			ctx, cancel := withTimeout(c)
			defer cancel()

			t, err := newClient(c).Airdrop(ctx)
			if err != nil {
				return describeError(err)
			}
			return emit(c, t, func(w io.Writer) { printTransfer(w, t) })
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the daemon is up",
		Action: func(c *cli.Context) error {
			req, err := http.NewRequestWithContext(c.Context, http.MethodGet, c.String("server")+"/health", nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			httpClient := &http.Client{Timeout: 10 * time.Second}
			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check failed: status %d", resp.StatusCode)
			}
			fmt.Fprintln(c.App.Writer, "OK")
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "Version: %s\nCommit:  %s\nBuilt:   %s\n", version, commit, date)
			return nil
		},
	}
}

type sessionCall func(*client.Client, context.Context) (*client.Session, error)

func sessionAction(c *cli.Context, call sessionCall) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	s, err := call(newClient(c), ctx)
	if err != nil {
		return err
	}
	return emit(c, s, func(w io.Writer) { printSession(w, s) })
}

// withTimeout bounds a command by --timeout when the command has one.
func withTimeout(c *cli.Context) (context.Context, context.CancelFunc) {
	if d := c.Duration("timeout"); d > 0 {
		return context.WithTimeout(c.Context, d)
	}
	return context.WithCancel(c.Context)
}
