package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/walletlink/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func newClient(c *cli.Context) *client.Client {
	var logger *slog.Logger
	if c.Bool("debug") {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return client.NewClient(c.String("server"), nil, logger)
}

func compileJQ(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// jqInput converts v into the plain maps and slices gojq walks.
func jqInput(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// printJQ writes each result of code applied to v, one per line. Strings are
// written raw.
func printJQ(w io.Writer, code *gojq.Code, v interface{}) error {
	input, err := jqInput(v)
	if err != nil {
		return err
	}
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if s, isStr := result.(string); isStr {
			fmt.Fprintln(w, s)
			continue
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(raw))
	}
}

// matchJQ reports whether code yields a truthy first result for v.
func matchJQ(code *gojq.Code, v interface{}) (bool, error) {
	input, err := jqInput(v)
	if err != nil {
		return false, err
	}
	result, ok := code.Run(input).Next()
	if !ok {
		return false, nil
	}
	if err, isErr := result.(error); isErr {
		return false, fmt.Errorf("jq: %w", err)
	}
	return isTruthy(result), nil
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v with --jq if given, as JSON with --json, or with the human
// formatter otherwise.
func emit(c *cli.Context, v interface{}, human func(io.Writer)) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		code, err := compileJQ(filter)
		if err != nil {
			return err
		}
		return printJQ(w, code, v)
	}
	if c.Bool("json") {
		return printJSON(w, v)
	}
	human(w)
	return nil
}

func printSession(w io.Writer, s *client.Session) {
	if !s.Connected() {
		fmt.Fprintln(w, "Status:   disconnected")
	} else {
		fmt.Fprintln(w, "Status:   connected")
		fmt.Fprintf(w, "Address:  %s\n", s.Address)
		fmt.Fprintf(w, "Balance:  %s SOL (%d lamports)\n", s.Balance, s.BalanceLamports)
	}
	if s.Draft.Recipient != "" || s.Draft.Amount != "" {
		fmt.Fprintf(w, "Draft:    %s SOL to %s\n", s.Draft.Amount, s.Draft.Recipient)
	}
	if s.TransferInFlight {
		fmt.Fprintln(w, "Transfer: in flight")
	}
	if s.LastSignature != "" {
		fmt.Fprintf(w, "Last tx:  %s\n", s.LastSignature)
		fmt.Fprintf(w, "Explorer: %s\n", s.LastExplorerURL)
	}
}

func printTransfer(w io.Writer, t *client.Transfer) {
	fmt.Fprintf(w, "Signature: %s\n", t.Signature)
	fmt.Fprintf(w, "Recipient: %s\n", t.Recipient)
	fmt.Fprintf(w, "Amount:    %s SOL (%d lamports)\n", t.Amount, t.Lamports)
	fmt.Fprintf(w, "Explorer:  %s\n", t.ExplorerURL)
	fmt.Fprintf(w, "Balance:   %s SOL\n", t.Session.Balance)
}

// describeError adds the signature of a submitted-but-unconfirmed transfer to
// the error so the user can look it up.
func describeError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Signature == "" {
		return err
	}
	return fmt.Errorf("%w\nsubmitted as %s, check %s", err, apiErr.Signature, apiErr.ExplorerURL)
}
