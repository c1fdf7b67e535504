package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/keyxmakerx/wellnest/internal/client"
)

type command func(ctx context.Context, args []string) error

// cliApp holds what every subcommand needs.
type cliApp struct {
	api    *client.Client
	tokens *tokenStore
	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

func (a *cliApp) commands() map[string]command {
	return map[string]command{
		"register": a.register,
		"login":    a.login,
		"logout":   a.logout,
		"list":     a.list,
		"mine":     a.mine,
		"get":      a.get,
		"draft":    a.saveCommand("draft", a.api.SaveDraft),
		"publish":  a.saveCommand("publish", a.api.Publish),
		"delete":   a.delete,
		"watch":    a.watch,
	}
}

func (a *cliApp) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *cliApp) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *cliApp) register(ctx context.Context, args []string) error {
	return a.authenticate(ctx, "register", args, a.api.Register)
}

func (a *cliApp) login(ctx context.Context, args []string) error {
	return a.authenticate(ctx, "login", args, a.api.Login)
}

func (a *cliApp) authenticate(ctx context.Context, name string, args []string,
	call func(ctx context.Context, email, password string) (*client.AuthResult, error)) error {
	fs := a.newFlagSet(name)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}

	password, err := promptPassword(a.in, a.errOut)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	res, err := call(ctx, *email, password)
	if err != nil {
		return err
	}
	if err := a.tokens.Save(res.Token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", res.User.Email)
	return nil
}

func (a *cliApp) logout(_ context.Context, _ []string) error {
	if err := a.tokens.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *cliApp) list(ctx context.Context, args []string) error {
	fs := a.newFlagSet("list")
	tag := fs.String("tag", "", "only sessions with this tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sessions, err := a.api.ListPublished(ctx, *tag)
	if err != nil {
		return err
	}
	return a.printJSON(sessions)
}

func (a *cliApp) mine(ctx context.Context, _ []string) error {
	sessions, err := a.api.ListMine(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(sessions)
}

func (a *cliApp) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get ID")
	}
	s, err := a.api.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printJSON(s)
}

func (a *cliApp) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete ID")
	}
	s, err := a.api.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s (%s)\n", s.ID, s.Title)
	return nil
}

// saveCommand builds the draft and publish subcommands, which share flags.
func (a *cliApp) saveCommand(name string, save func(context.Context, client.Draft) (*client.Session, error)) command {
	return func(ctx context.Context, args []string) error {
		fs := a.newFlagSet(name)
		id := fs.String("id", "", "existing session id (omit to create)")
		title := fs.String("title", "", "session title")
		url := fs.String("url", "", "http(s) URL of the session JSON file")
		tags := fs.String("tags", "", "comma-separated tags")
		if err := fs.Parse(args); err != nil {
			return err
		}

		s, err := save(ctx, client.Draft{
			ID:          *id,
			Title:       *title,
			Tags:        splitTags(*tags),
			JSONFileURL: *url,
		})
		if err != nil {
			return err
		}
		return a.printJSON(s)
	}
}

// watch polls a local JSON draft file and feeds every change to an
// AutoSaver. On interrupt, unsaved changes are flushed before exiting.
func (a *cliApp) watch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("watch")
	delay := fs.Duration("delay", client.DefaultAutoSaveDelay, "quiet period before saving")
	interval := fs.Duration("poll", 500*time.Millisecond, "file poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: watch [-delay 5s] FILE.json")
	}
	path := fs.Arg(0)

	initial, stamp, err := readDraftFile(path)
	if err != nil {
		return err
	}

	saver := client.NewAutoSaver(a.api, initial,
		client.WithDelay(*delay),
		client.WithErrorHandler(func(err error) {
			fmt.Fprintf(a.errOut, "auto-save failed: %v\n", err)
		}),
		client.WithSavedHandler(func(s *client.Session) {
			fmt.Fprintf(a.out, "saved %s at %s\n", s.ID, s.UpdatedAt.Format(time.TimeOnly))
		}),
	)
	defer saver.Stop()
	saver.Update(initial)

	fmt.Fprintf(a.out, "watching %s (Ctrl-C to stop)\n", path)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saver.Stop()
			if !saver.Dirty() || !saver.Draft().Ready() {
				return nil
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
			defer cancel()
			_, err := saver.Flush(flushCtx)
			return err
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				fmt.Fprintf(a.errOut, "stat %s: %v\n", path, err)
				continue
			}
			if info.ModTime().Equal(stamp.ModTime()) && info.Size() == stamp.Size() {
				continue
			}
			d, next, err := readDraftFile(path)
			if err != nil {
				// Half-written files are common while an editor saves.
				fmt.Fprintf(a.errOut, "skipping unreadable draft: %v\n", err)
				continue
			}
			stamp = next
			saver.Update(d)
		}
	}
}

// readDraftFile parses a draft file in the API's session shape.
func readDraftFile(path string) (client.Draft, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return client.Draft{}, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Draft{}, nil, err
	}
	var d client.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return client.Draft{}, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return d, info, nil
}
