package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/bookstore-session/gateway"
	"github.com/jrsteele09/bookstore-session/guard"
	"github.com/jrsteele09/bookstore-session/sessions"
	"github.com/jrsteele09/bookstore-session/users"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "account password, read from stdin when empty")
	_ = cmd.MarkFlagRequired("email")
}

// resolve reads the password from in when the flag was not given.
func (f *credentialFlags) resolve(in io.Reader) error {
	if f.password != "" {
		return nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return WrapExitError(ExitCommandError, "failed to read password", err)
	}
	f.password = strings.TrimRight(line, "\r\n")
	if f.password == "" {
		return NewExitError(ExitCommandError, "password is required")
	}
	return nil
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	creds := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd.InOrStdin()); err != nil {
				return err
			}
			return runGuarded(rootOpts, cmd, guard.Public, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				err := app.Session.Login(ctx, gateway.Credentials{Email: creds.email, Password: creds.password})
				return signedIn(app.Session.Snapshot(), err, out)
			})
		},
	}
	creds.register(cmd)
	return cmd
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	creds := &credentialFlags{}
	var fullName string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd.InOrStdin()); err != nil {
				return err
			}
			return runGuarded(rootOpts, cmd, guard.Public, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				err := app.Session.Register(ctx, gateway.RegistrationData{
					Email:    creds.email,
					Password: creds.password,
					FullName: fullName,
				})
				return signedIn(app.Session.Snapshot(), err, out)
			})
		},
	}
	creds.register(cmd)
	cmd.Flags().StringVarP(&fullName, "name", "n", "", "full name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func signedIn(session sessions.Session, err error, out *OutputFormatter) error {
	if err != nil {
		if session.Err != "" {
			return WrapExitError(ExitFailure, session.Err, err)
		}
		return err
	}
	return out.Success(session, func(w io.Writer) {
		fmt.Fprintf(w, "Signed in as %s\n", describeUser(session.User))
	})
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Public, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Session.Logout(ctx); err != nil {
					return err
				}
				return out.Success(app.Session.Snapshot(), func(w io.Writer) {
					fmt.Fprintln(w, "Signed out")
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Authenticated, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				session := app.Session.Snapshot()
				return out.Success(session, func(w io.Writer) {
					fmt.Fprintln(w, describeUser(session.User))
				})
			})
		},
	}
}

func describeUser(p *users.Profile) string {
	if p == nil {
		return "unknown user"
	}
	name := p.DisplayName
	if name == "" {
		name = p.Email
	}
	return fmt.Sprintf("%s <%s> (%s)", name, p.Email, p.Role)
}
