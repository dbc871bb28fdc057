package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brojonat/walletlink/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send SOL; the wallet app asks for approval",
		ArgsUsage: "RECIPIENT [AMOUNT]",
		Description: `RECIPIENT is a base58 address or a solana: payment URI. AMOUNT is in SOL
and may be omitted when the URI carries one.`,
		Flags: []cli.Flag{jqFlag(), timeoutFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("recipient is required")
			}
			recipient, amount := c.Args().Get(0), c.Args().Get(1)

			ctx, cancel := withTimeout(c)
			defer cancel()

			t, err := newClient(c).Send(ctx, recipient, amount)
			if err != nil {
				return describeError(err)
			}
			return emit(c, t, func(w io.Writer) { printTransfer(w, t) })
		},
	}
}

func draftCommands() *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Compose a transfer before sending it",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Replace the draft",
				ArgsUsage: "RECIPIENT [AMOUNT]",
				Flags:     []cli.Flag{jqFlag()},
				Action: func(c *cli.Context) error {
					s, err := newClient(c).SetDraft(c.Context, c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					return emit(c, s, func(w io.Writer) { printSession(w, s) })
				},
			},
			{
				Name:  "send",
				Usage: "Send the draft",
				Flags: []cli.Flag{jqFlag(), timeoutFlag()},
				Action: func(c *cli.Context) error {
					ctx, cancel := withTimeout(c)
					defer cancel()

					t, err := newClient(c).SendDraft(ctx)
					if err != nil {
						return describeError(err)
					}
					return emit(c, t, func(w io.Writer) { printTransfer(w, t) })
				},
			},
		},
	}
}

func qrCommand() *cli.Command {
	return &cli.Command{
		Name:  "qr",
		Usage: "Save a QR code for receiving SOL at the session address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "receive.png",
				Usage:   "Output PNG path",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Image size in pixels (0 for the daemon default)",
			},
		},
		Action: func(c *cli.Context) error {
			png, err := newClient(c).ReceiveQR(c.Context, c.Int("size"))
			if err != nil {
				return err
			}
			if err := os.WriteFile(c.String("out"), png, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", c.String("out"), err)
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", c.String("out"))
			return nil
		},
	}
}

var errUntilMatched = errors.New("until condition matched")

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print the session every time it changes",
		Flags: []cli.Flag{
			jqFlag(),
			&cli.StringFlag{
				Name:  "until",
				Usage: "Exit once this jq filter is true for a snapshot (e.g. '.connection == \"connected\"')",
			},
		},
		Action: func(c *cli.Context) error {
			var until *gojq.Code
			if filter := c.String("until"); filter != "" {
				code, err := compileJQ(filter)
				if err != nil {
					return err
				}
				until = code
			}

			err := newClient(c).Stream(c.Context, func(s *client.Session) error {
				if err := emit(c, s, func(w io.Writer) {
					printSession(w, s)
					fmt.Fprintln(w)
				}); err != nil {
					return err
				}
				if until == nil {
					return nil
				}
				ok, err := matchJQ(until, s)
				if err != nil {
					return err
				}
				if ok {
					return errUntilMatched
				}
				return nil
			})
			if errors.Is(err, errUntilMatched) {
				return nil
			}
			return err
		},
	}
}
