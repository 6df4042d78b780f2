package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/ariana-dev/ariana-cli/internal/auth"
	"github.com/ariana-dev/ariana-cli/internal/config"
)

// runLogin implements `--login`: an interactive flow against the vault
// service's auth endpoints, persisting the returned JWT to the CLI config
// file. A previously persisted session is reused as long as it still
// validates; otherwise the user chooses between registering a new account
// and authenticating an existing one (by password or by emailed code)
// before the session is (re)persisted. Session management beyond that
// persistence is out of scope; this is a thin entry point onto the auth
// contract.
func (prog *program) runLogin(ctx context.Context) error {
	client := auth.NewClient(prog.opts.APIURL)
	reader := bufio.NewReader(prog.stdin())

	if cfg, err := config.Load(prog.fsys, prog.configDir()); err == nil && cfg.JWT != "" {
		if account, err := client.Account(ctx, cfg.JWT); err == nil {
			fmt.Fprintf(prog.stdout, "already logged in as %s.\n", accountEmail(account, ""))

			return nil
		}
	}

	fmt.Fprint(prog.stdout, "email: ")

	email, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	fmt.Fprint(prog.stdout, "new account? [y/N]: ")

	newAccount, err := readYesNo(reader)
	if err != nil {
		return fmt.Errorf("failed to read answer: %w", err)
	}

	var jwt string
	if newAccount {
		jwt, err = prog.registerAccount(ctx, client, reader, email)
	} else {
		jwt, err = prog.authenticateExisting(ctx, client, reader, email)
	}
	if err != nil {
		return err
	}

	if account, err := client.Account(ctx, jwt); err == nil {
		fmt.Fprintf(prog.stdout, "signed in as %s.\n", accountEmail(account, email))
	}

	if err := config.Save(prog.fsys, prog.configDir(), config.File{JWT: jwt}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	fmt.Fprintln(prog.stdout, "logged in.")

	return nil
}

// registerAccount creates a new account with a chosen password, then
// confirms it with the emailed verification code.
func (prog *program) registerAccount(ctx context.Context, client *auth.Client, reader *bufio.Reader, email string) (string, error) {
	fmt.Fprint(prog.stdout, "choose a password: ")

	password, err := readLine(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	jwt, err := client.Register(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("failed to register account: %w", err)
	}

	fmt.Fprintf(prog.stdout, "a verification code was sent to %s, enter it: ", email)

	code, err := readLine(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read verification code: %w", err)
	}

	if err := client.ValidateEmail(ctx, email, code); err != nil {
		return "", fmt.Errorf("failed to validate email: %w", err)
	}

	return jwt, nil
}

// authenticateExisting signs into an existing account, either by password
// or by the emailed one-time code.
func (prog *program) authenticateExisting(ctx context.Context, client *auth.Client, reader *bufio.Reader, email string) (string, error) {
	fmt.Fprint(prog.stdout, "log in with a password instead of an emailed code? [y/N]: ")

	withPassword, err := readYesNo(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}

	if withPassword {
		fmt.Fprint(prog.stdout, "password: ")

		password, err := readLine(reader)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		jwt, err := client.Login(ctx, email, password)
		if err != nil {
			return "", fmt.Errorf("failed to log in: %w", err)
		}

		return jwt, nil
	}

	if err := client.RequestLoginCode(ctx, email); err != nil {
		return "", fmt.Errorf("failed to request login code: %w", err)
	}

	fmt.Fprintf(prog.stdout, "a login code was sent to %s, enter it: ", email)

	code, err := readLine(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read login code: %w", err)
	}

	jwt, err := client.ValidateLoginCode(ctx, email, code)
	if err != nil {
		return "", fmt.Errorf("failed to validate login code: %w", err)
	}

	return jwt, nil
}

// accountEmail pulls the "email" field out of an Account response, falling
// back to fallback if it's absent or not a string.
func accountEmail(account map[string]any, fallback string) string {
	if email, ok := account["email"].(string); ok && email != "" {
		return email
	}

	return fallback
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return strings.TrimSpace(line), nil
}

// readYesNo reads a line and reports whether it's an affirmative answer
// ("y" or "yes", case-insensitive); anything else, including an empty
// line, is treated as no.
func readYesNo(r *bufio.Reader) (bool, error) {
	line, err := readLine(r)
	if err != nil {
		return false, err
	}

	answer := strings.ToLower(line)

	return answer == "y" || answer == "yes", nil
}
