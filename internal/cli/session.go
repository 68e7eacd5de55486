package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/bookstore-session/guard"
	"github.com/jrsteele09/bookstore-session/internal/config"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/sessions"
)

const loginHint = "run 'bookstore login'"

// action is the body of a command once the guard has let it through.
type action func(ctx context.Context, app *App, out *OutputFormatter) error

// runGuarded loads the config, wires the session layer and checks the
// session against required before running fn. With restore the stored
// session is confirmed with the server first.
func runGuarded(opts *RootOptions, cmd *cobra.Command, required guard.Capability, restore bool, fn action) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return out.Error(WrapExitError(ExitCommandError, "failed to load config", err))
	}
	if !opts.Verbose {
		if level, err := zerolog.ParseLevel(cfg.GetLogLevel()); err == nil && cfg.GetLogLevel() != "" {
			zerolog.SetGlobalLevel(level)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return out.Error(WrapExitError(ExitCommandError, "failed to start session", err))
	}
	defer app.Close()
	defer app.logMetrics()

	if restore {
		if err := app.Session.Init(ctx); err != nil {
			log.Debug().Err(err).Msg("stored session not restored")
		}
	}
	if err := authorize(app.Session.Snapshot(), required); err != nil {
		return out.Error(err)
	}
	if err := fn(ctx, app, out); err != nil {
		return out.Error(commandError(app.Session.Snapshot(), err))
	}
	return nil
}

// authorize turns a guard decision into the error a denied command exits with.
func authorize(session sessions.Session, required guard.Capability) error {
	decision := guard.Decide(session, required)
	switch {
	case decision.Allowed:
		return nil
	case decision.Pending:
		if session.Err != "" {
			return WrapExitError(ExitFailure, "session could not be verified", errors.New(session.Err))
		}
		return NewExitError(ExitFailure, "session could not be verified")
	case decision.Redirect == guard.RouteLogin:
		if session.Status == sessions.Failed && session.Err != "" {
			return NewExitError(ExitAccessDenied, session.Err+": "+loginHint)
		}
		return NewExitError(ExitAccessDenied, "login required: "+loginHint)
	}
	return NewExitError(ExitAccessDenied, "admin role required")
}

func commandError(session sessions.Session, err error) error {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return err
	case session.Status == sessions.Failed && session.Err == apperrors.ErrRefreshRejected.Error():
		return WrapExitError(ExitAccessDenied, session.Err+": "+loginHint, err)
	case errors.Is(err, apperrors.ErrForbidden):
		return WrapExitError(ExitAccessDenied, "admin role required", err)
	}
	return WrapExitError(ExitFailure, "request failed", err)
}
