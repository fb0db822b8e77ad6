// Package cli implements the arrow3 command line front end. Subcommands are
// dispatched by hand; the surface is small enough that a framework would be
// more code than the dispatch itself.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KshitijGomber/arrow3-sub001/internal/app"
	"github.com/KshitijGomber/arrow3-sub001/internal/session"
)

const usage = `arrow3 - Arrow3 Aerospace storefront client

Usage:
  arrow3 <command> [options]

Account:
  login [--google]        sign in with email/password or Google
  register                create an account
  logout                  sign out
  whoami                  show the signed-in user
  forgot-password <email> request a password reset email
  reset-password <token>  set a new password with a reset token

Catalog:
  drones list [--category c] [--in-stock] [--search q] [--page n]
  drones get <id> [--slug]
  drones featured

Orders:
  orders list [--page n]
  orders get <id>
  orders create --drone <id> [--quantity n]
  orders cancel <id> [--reason text]

Media & payments:
  media list --owner-type <drone|user> --owner-id <id>
  pay --order <id>

Other:
  status                  backend health and session state
`

// CLI runs subcommands against a wired App.
type CLI struct {
	app *app.App
	out io.Writer
	in  *bufio.Reader
}

// New creates a CLI reading prompts from in and writing to out.
func New(a *app.App, out io.Writer, in io.Reader) *CLI {
	return &CLI{app: a, out: out, in: bufio.NewReader(in)}
}

// Run hydrates the session and dispatches the subcommand.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}

	c.app.Bootstrap(ctx)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "register":
		return c.register(ctx)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "forgot-password":
		return c.forgotPassword(ctx, rest)
	case "reset-password":
		return c.resetPassword(ctx, rest)
	case "drones":
		return c.drones(ctx, rest)
	case "orders":
		return c.orders(ctx, rest)
	case "media":
		return c.media(ctx, rest)
	case "pay":
		return c.pay(ctx, rest)
	case "status":
		return c.status(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// prompt reads one line of input.
func (c *CLI) prompt(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// requireAuth fails fast for commands that need a signed-in session.
func (c *CLI) requireAuth() error {
	if !c.app.Session().State().IsAuthenticated() {
		return fmt.Errorf("not signed in: run `arrow3 login` first")
	}
	return nil
}

func renderUser(out io.Writer, s session.State) {
	user := s.User()
	fmt.Fprintf(out, "%s <%s>\n", user.FullName(), user.Email)
	fmt.Fprintf(out, "  role:           %s\n", user.Role)
	fmt.Fprintf(out, "  email verified: %t\n", user.IsEmailVerified)
	fmt.Fprintf(out, "  google linked:  %t\n", user.GoogleLinked)
}
