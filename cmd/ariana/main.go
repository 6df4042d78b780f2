/*
ariana runs a user-supplied command against an instrumented copy of the
current project, intercepting its output to extract runtime trace records
and shipping them, along with the raw output, to a remote vault.

By default it materializes a mirror workspace under .ariana/, instruments
eligible source files through the remote transform service, runs the
command inside the mirror, and deletes the mirror when done. With
--inplace, it instruments the project's own files instead, keeping a
restorable backup, and restores them once the command exits.

# USAGE

	ariana [--api-url URL] [--recap] [--restore] [--login]
	       [--inplace] -- <command> [args...]

# FLAGS

	--api-url string
		Base URL of the vault/instrumentation service.

	--config string
		Path to a YAML configuration file. Direct CLI flags win over it.

	--recap
		Skip the run; fetch and print a textual summary of the last vault.

	--restore
		Skip the run; invoke the archive-driven restorer against the
		current project's .ariana/__ariana_backups.zip.

	--login
		Skip the run; perform interactive authentication and persist the
		session JWT to the CLI config file.

	--inplace
		Instrument the project's own files instead of a mirror; a backup
		is kept and restored when the command exits.

	--import-style [cjs|esm]
		Module import style forwarded on every instrumentation request.
		Manifest-based detection is outside this tool's scope; pass the
		project's actual style explicitly when it is not the default.

	--log-level [debug|info|warn|error]
	--json

# EXIT CODES

0 on clean success; the child's exit code otherwise; 1 on interrupt or an
internal error before the child runs.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

const (
	exitCodeSuccess       = 0
	exitCodeFailure       = 1
	exitCodeInterrupted   = 1
	exitCodeInternalError = 1

	exitTimeout = 10 * time.Second
)

var (
	errArgConfigMalformed    = errors.New("--config yaml file is malformed")
	errArgConfigMissing      = errors.New("--config yaml file does not exist")
	errArgInvalidLogLevel    = errors.New("--log-level has a not recognized value")
	errArgInvalidImportStyle = errors.New("--import-style must be 'cjs' or 'esm'")
	errArgMissingCommand     = errors.New("a command is required unless --recap, --restore, or --login is given")
)

type programOptions struct {
	APIURL      string   `yaml:"api-url"`
	Recap       bool     `yaml:"-"`
	Restore     bool     `yaml:"-"`
	Login       bool     `yaml:"-"`
	InPlace     bool     `yaml:"-"`
	ImportStyle string   `yaml:"import-style"`
	LogLevel    string   `yaml:"log-level"`
	JSON        bool     `yaml:"json"`
	Command     []string `yaml:"-"`
}

type program struct {
	fsys   afero.Fs
	stdout io.Writer
	stderr io.Writer
	stdinR io.Reader

	opts    *programOptions
	log     *slog.Logger
	flags   *flag.FlagSet
	homeDir string
}

func (prog *program) stdin() io.Reader {
	if prog.stdinR != nil {
		return prog.stdinR
	}

	return os.Stdin
}

func (prog *program) configDir() string {
	return filepath.Join(prog.homeDir, ".config")
}

func main() {
	var prog *program
	var exitCode int

	defer func() {
		if prog != nil && prog.log != nil {
			prog.log.Info("program exited", "code", exitCode)
		}
		os.Exit(exitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: failed to resolve home directory: %v\n", err)
		exitCode = exitCodeInternalError

		return
	}

	prog, err = newProgram(os.Args, afero.NewOsFs(), os.Stdout, os.Stderr, homeDir)
	if prog == nil || err != nil {
		exitCode = exitCodeInternalError

		return
	}

	doneChan := make(chan int, 1)

	go func() {
		code, _ := prog.run(ctx)
		doneChan <- code
	}()

	select {
	case code := <-doneChan:
		exitCode = code

		return

	case <-sigChan:
		prog.log.Warn("received interrupt signal; shutting down (waiting up to 10s)...")
		cancel()

		select {
		case code := <-doneChan:
			exitCode = code

			return

		case <-time.After(exitTimeout):
			prog.log.Error("timed out while waiting for program exit; killing...", "error-type", "fatal")
			exitCode = exitCodeFailure

			return
		}
	}
}

func newProgram(cliArgs []string, fsys afero.Fs, stdout, stderr io.Writer, homeDir string) (*program, error) {
	prog := &program{
		fsys:    fsys,
		stdout:  stdout,
		stderr:  stderr,
		opts:    &programOptions{},
		homeDir: homeDir,
	}

	if err := prog.parseArgs(cliArgs); err != nil {
		fmt.Fprintf(prog.stderr, "fatal: failed to parse configuration: %v\n\n", err)
		prog.flags.Usage()

		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := prog.validateOpts(); err != nil {
		fmt.Fprintf(prog.stderr, "fatal: failed to validate configuration: %v\n\n", err)
		prog.flags.Usage()

		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}

	prog.log = slog.New(prog.logHandler())

	return prog, nil
}

func (prog *program) run(ctx context.Context) (retExitCode int, retError error) {
	defer func() {
		if r := recover(); r != nil {
			prog.log.Error("internal panic recovered", "error", r, "error-type", "fatal")
			debug.PrintStack()
			retExitCode = exitCodeFailure
		}
	}()

	switch {
	case prog.opts.Login:
		if err := prog.runLogin(ctx); err != nil {
			prog.log.Error("login failed", "error", err, "error-type", "fatal")

			return exitCodeFailure, err
		}

		return exitCodeSuccess, nil

	case prog.opts.Recap:
		if err := prog.runRecap(ctx); err != nil {
			prog.log.Error("recap failed", "error", err, "error-type", "fatal")

			return exitCodeFailure, err
		}

		return exitCodeSuccess, nil

	case prog.opts.Restore:
		if err := prog.runRestore(ctx); err != nil {
			prog.log.Error("restore failed", "error", err, "error-type", "fatal")

			return exitCodeFailure, err
		}

		return exitCodeSuccess, nil

	default:
		return prog.runHarness(ctx)
	}
}
