// Command wellnest is a terminal client for a Wellnest server: account
// login, listing and editing sessions, and watching a local draft file with
// debounced auto-save.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/keyxmakerx/wellnest/internal/client"
)

const usage = `usage: wellnest [-server URL] <command> [args]

commands:
  register -email EMAIL          create an account (prompts for password)
  login -email EMAIL             log in and store the token
  logout                         forget the stored token
  list [-tag TAG]                published sessions
  mine                           your sessions
  get ID                         one of your sessions
  draft -title T -url U [-tags a,b] [-id ID]
  publish -title T -url U [-tags a,b] [-id ID]
  delete ID                      delete one of your sessions
  watch [-delay 5s] FILE.json    auto-save a local draft file as you edit it
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "error (%d): %s\n", apiErr.Status, apiErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses global flags and dispatches to a subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("wellnest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	server := fs.String("server", envOr("WELLNEST_URL", "http://localhost:8080"), "server base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	store, err := defaultTokenStore()
	if err != nil {
		return err
	}
	token, err := store.Load()
	if err != nil {
		return err
	}

	app := &cliApp{
		api:    client.New(*server, client.WithToken(token)),
		tokens: store,
		out:    stdout,
		errOut: stderr,
		in:     os.Stdin,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	handler, ok := app.commands()[cmd]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return handler(ctx, rest)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
