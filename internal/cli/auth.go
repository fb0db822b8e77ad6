package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/KshitijGomber/arrow3-sub001/internal/session"
)

func (c *CLI) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.out)
	google := fs.Bool("google", false, "sign in with Google")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *google {
		return c.loginWithGoogle(ctx)
	}

	email, err := c.prompt("email")
	if err != nil {
		return err
	}
	password, err := c.prompt("password")
	if err != nil {
		return err
	}

	res := c.app.Session().Login(ctx, session.Credentials{Email: email, Password: password})
	if !res.Success {
		return fmt.Errorf("login failed: %s", res.Error)
	}

	fmt.Fprintf(c.out, "signed in as %s\n", res.User.Email)
	return nil
}

func (c *CLI) loginWithGoogle(ctx context.Context) error {
	mgr := c.app.Session()

	authURL, err := mgr.LoginWithGoogle(ctx, "")
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Open this URL in your browser to sign in:\n\n  %s\n\nWaiting for the sign-in to complete...\n", authURL)

	srv := session.NewCallbackServer(mgr, c.app.Config().OAuthCallbackPort, c.app.Logger())
	res, err := srv.Listen(ctx)
	if err != nil {
		return fmt.Errorf("google sign-in: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("google sign-in failed: %s", res.Error)
	}

	fmt.Fprintf(c.out, "signed in as %s\n", res.User.Email)
	return nil
}

func (c *CLI) register(ctx context.Context) error {
	first, err := c.prompt("first name")
	if err != nil {
		return err
	}
	last, err := c.prompt("last name")
	if err != nil {
		return err
	}
	email, err := c.prompt("email")
	if err != nil {
		return err
	}
	password, err := c.prompt("password (min 8 characters)")
	if err != nil {
		return err
	}

	res := c.app.Session().Register(ctx, session.Registration{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  password,
	})
	if !res.Success {
		return fmt.Errorf("registration failed: %s", res.Error)
	}

	fmt.Fprintf(c.out, "welcome, %s\n", res.User.FullName())
	return nil
}

func (c *CLI) logout(ctx context.Context) error {
	c.app.Session().Logout(ctx)
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func (c *CLI) whoami() error {
	state := c.app.Session().State()
	if !state.IsAuthenticated() {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	renderUser(c.out, state)
	return nil
}

func (c *CLI) forgotPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: arrow3 forgot-password <email>")
	}

	res := c.app.Session().ForgotPassword(ctx, args[0])
	if !res.Success {
		return fmt.Errorf("request failed: %s", res.Error)
	}

	fmt.Fprintln(c.out, "if that address has an account, a reset email is on its way")
	return nil
}

func (c *CLI) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: arrow3 reset-password <token>")
	}

	password, err := c.prompt("new password (min 8 characters)")
	if err != nil {
		return err
	}

	res := c.app.Session().ResetPassword(ctx, args[0], password)
	if !res.Success {
		return fmt.Errorf("reset failed: %s", res.Error)
	}

	fmt.Fprintln(c.out, "password updated, you can sign in now")
	return nil
}
