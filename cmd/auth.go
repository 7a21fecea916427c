package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/session"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/urfave/cli/v3"
)

// statusView is the JSON form of the local session.
type statusView struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Credential    string `json:"credential,omitempty"`
	Refresh       bool   `json:"hasRefreshCredential"`
	API           string `json:"api"`
	LastError     string `json:"error,omitempty"`
}

// valueOrPrompt returns the flag value, prompting on input when it is empty.
func (r *Runner) valueOrPrompt(cmd *cli.Command, flag, label string) (string, error) {
	if v := cmd.String(flag); v != "" {
		return v, nil
	}
	v, err := r.prompt(label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, flag)
	}
	return v, nil
}

// sessionOutcome turns the committed snapshot after a login or register into a CLI result.
func (r *Runner) sessionOutcome(verb string, err error) error {
	if err != nil {
		return fmt.Errorf("%s failed: %w", verb, err)
	}

	snap := r.session.Snapshot()
	if !snap.Authenticated {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, snap.LastError)
	}

	if snap.Principal == nil {
		r.logger.Warn("signed in without a profile")
		return r.writePlain("✓ Signed in\n")
	}
	return r.writePlain("✓ Signed in as %s (%s)\n", snap.Principal.Name(), snap.Principal.Email)
}

// AuthLogin signs in and stores the issued credentials.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.session.Snapshot().Authenticated {
		r.logger.Info("replacing existing session")
	}

	email, err := r.valueOrPrompt(cmd, "email", "Email")
	if err != nil {
		return err
	}
	password, err := r.valueOrPrompt(cmd, "password", "Password")
	if err != nil {
		return err
	}

	r.logger.Debug("signing in", "email", email, "api", r.baseURL)
	return r.sessionOutcome("login", r.session.Login(ctx, email, password))
}

// AuthRegister creates an account and signs in with it.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	password, err := r.valueOrPrompt(cmd, "password", "Password")
	if err != nil {
		return err
	}

	in := session.RegisterInput{
		Email:       cmd.String("email"),
		Password:    password,
		DisplayName: cmd.String("name"),
		PhoneNumber: cmd.String("phone"),
	}
	return r.sessionOutcome("register", r.session.Register(ctx, in))
}

// AuthLogout ends the session. Local credentials are cleared even if the server is unreachable.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.session.Snapshot().Empty() {
		return r.writePlain("Not signed in\n")
	}

	if err := r.session.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus prints the local session without contacting the server.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	snap := r.session.Snapshot()

	view := statusView{
		Authenticated: snap.Authenticated,
		Credential:    shared.MaskToken(snap.AccessCredential),
		Refresh:       snap.RefreshCredential != "",
		API:           r.baseURL,
		LastError:     snap.LastError,
	}
	if snap.Principal != nil {
		view.Name = snap.Principal.Name()
		view.Email = snap.Principal.Email
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Session")
	r.writePlain("API:            %s\n", view.API)
	if view.Authenticated {
		r.writePlain("Authentication: ✓ Authenticated\n")
		if view.Email != "" {
			r.writePlain("Admin:          %s (%s)\n", view.Name, view.Email)
		}
	} else {
		r.writePlain("Authentication: ✗ Not authenticated\n")
	}
	if view.Credential != "" {
		r.writePlain("Credential:     %s\n", view.Credential)
	}

	if _, err := r.session.RequireCredential(); err != nil {
		r.logger.Warn(err.Error())
	}
	return nil
}

// AuthWhoami fetches the principal from the server.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	p, err := r.session.Profile(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: server returned no profile", shared.ErrAPIRequest)
	}

	if cmd.Bool("json") {
		return r.writeJSON(p, cmd.Bool("pretty"))
	}
	r.writePlain("%s <%s>\n", p.Name(), p.Email)
	if p.PhoneNumber != "" {
		r.writePlain("Phone: %s\n", p.PhoneNumber)
	}
	return r.writePlain("ID:    %s\n", p.ID)
}

// reportResponse prints the server message of an auth envelope, failing on an unsuccessful one.
func (r *Runner) reportResponse(resp *services.Response, err error, done string) error {
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, resp.Message)
	}
	if resp.Message != "" {
		done = resp.Message
	}
	return r.writePlain("✓ %s\n", done)
}

// AuthVerifyOTP confirms a one-time code.
func (r *Runner) AuthVerifyOTP(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.client.VerifyOTP(ctx, cmd.String("email"), cmd.String("otp"))
	return r.reportResponse(resp, err, "Code verified")
}

// AuthForgotPassword asks the server to send a reset code.
func (r *Runner) AuthForgotPassword(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.client.ForgotPassword(ctx, cmd.String("email"))
	return r.reportResponse(resp, err, "Reset code sent")
}

// AuthResetPassword sets a new password.
func (r *Runner) AuthResetPassword(ctx context.Context, cmd *cli.Command) error {
	password, err := r.valueOrPrompt(cmd, "password", "New password")
	if err != nil {
		return err
	}
	resp, err := r.client.ResetPassword(ctx, cmd.String("email"), cmd.String("otp"), password)
	return r.reportResponse(resp, err, "Password reset")
}

// AuthHistory lists recent session events from the local audit trail.
func (r *Runner) AuthHistory(ctx context.Context, cmd *cli.Command) error {
	if r.events == nil {
		return fmt.Errorf("%w: session history requires the sqlite storage driver", shared.ErrMissingConfig)
	}

	events, err := r.events.Recent(cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return r.writePlain("No session events recorded\n")
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-18s %s", ev.CreatedAt.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.PrincipalEmail)
		if ev.Message != "" {
			line += "  " + ev.Message
		}
		r.writePlain("%s\n", line)
	}
	return nil
}
