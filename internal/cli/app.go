// Package cli implements ampctl, a terminal client that keeps a signed-in
// session on disk and talks to the auth API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hitoshi/amp/internal/client/api"
	"github.com/hitoshi/amp/internal/client/session"
	"github.com/hitoshi/amp/internal/client/store"
)

// ErrNotSignedIn is returned by commands that need a session when none is held.
var ErrNotSignedIn = errors.New("not signed in")

// ErrUsage is returned for a missing or unknown command.
var ErrUsage = errors.New("usage: ampctl <register|signin|me|refresh|signout|status> [email]")

// App runs one ampctl command.
type App struct {
	client  *api.Client
	session *session.Manager
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp creates an App reading prompts from in and writing to out.
func NewApp(client *api.Client, sess *session.Manager, in io.Reader, out io.Writer) *App {
	return &App{
		client:  client,
		session: sess,
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

// Run dispatches args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "register":
		return a.credentialsCommand(ctx, args[1:], a.client.Register, "Registered")
	case "signin":
		return a.credentialsCommand(ctx, args[1:], a.client.SignIn, "Signed in")
	case "me":
		return a.me(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "signout":
		return a.signOut(ctx)
	case "status":
		return a.status()
	default:
		return ErrUsage
	}
}

type credentialsFunc func(ctx context.Context, email, password string) (*session.Session, error)

func (a *App) credentialsCommand(ctx context.Context, args []string, call credentialsFunc, verb string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = getSimpleText(a.reader, "Email", a.out); err != nil {
			return err
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	s, err := call(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s as %s (%s)\n", verb, s.User.Email, s.User.ID)
	return nil
}

// me is gated on a held session, like a protected route.
func (a *App) me(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		return ErrNotSignedIn
	}
	p, err := a.client.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			return ErrNotSignedIn
		}
		return err
	}
	fmt.Fprintf(a.out, "userId: %s\nemail:  %s\n", p.UserID, p.Email)
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if _, err := a.client.Refresh(ctx); err != nil {
		if api.IsUnauthorized(err) {
			return ErrNotSignedIn
		}
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) signOut(ctx context.Context) error {
	if err := a.client.SignOut(ctx); err != nil {
		fmt.Fprintf(a.out, "Signed out locally (server call failed: %v)\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *App) status() error {
	s := a.session.Current()
	if s == nil || s.Tokens.AccessToken == "" {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", s.User.Email, s.User.ID)
	return nil
}

// Main wires the session store and API client from cfg and runs args.
// It returns the process exit code.
func Main(ctx context.Context, cfg *Config, args []string, in io.Reader, out, errOut io.Writer) int {
	st, err := store.Open(ctx, cfg.SessionDB)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer st.Close()

	sess, err := session.NewManager(ctx, st)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	app := NewApp(api.New(cfg.APIURL, sess, nil, nil), sess, in, out)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(errOut, err)
		if errors.Is(err, ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
