package main

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"
)

const defaultAPIURL = "https://api.ariana.dev"

func (prog *program) parseArgs(cliArgs []string) error {
	var yamlFile string
	var yamlOpts programOptions

	prog.flags = flag.NewFlagSet("ariana", flag.ContinueOnError)
	prog.flags.SetOutput(prog.stderr)
	prog.flags.Usage = func() {
		fmt.Fprintf(prog.stderr, "usage: ariana [--api-url URL] [--recap] [--restore] [--login]\n")
		fmt.Fprintf(prog.stderr, "              [--inplace] -- <command> [args...]\n\n")
		prog.flags.PrintDefaults()
	}

	prog.flags.StringVar(&prog.opts.APIURL, "api-url", "", "base URL of the vault/instrumentation service")
	prog.flags.StringVar(&yamlFile, "config", "", "path to a yaml configuration file; used with the specified mode")
	prog.flags.BoolVar(&prog.opts.Recap, "recap", false, "skip run; fetch a textual summary of the last vault and print it")
	prog.flags.BoolVar(&prog.opts.Restore, "restore", false, "skip run; invoke the archive-driven restorer")
	prog.flags.BoolVar(&prog.opts.Login, "login", false, "skip run; perform interactive authentication and persist the session")
	prog.flags.BoolVar(&prog.opts.InPlace, "inplace", false, "instrument originals rather than a mirror; backup+restore applies")
	prog.flags.StringVar(&prog.opts.ImportStyle, "import-style", "cjs", "module import style forwarded to the instrumentation service: cjs or esm")
	prog.flags.StringVar(&prog.opts.LogLevel, "log-level", "info", "decides the verbosity of emitted logs; debug, info, warn, error")
	prog.flags.BoolVar(&prog.opts.JSON, "json", false, "output all emitted logs in the JSON format; results can be read from stderr")

	argv, command := splitCommand(cliArgs[1:])

	if err := prog.flags.Parse(argv); err != nil {
		return fmt.Errorf("failed parsing flags: %w", err)
	}

	prog.opts.Command = command

	setFlags := make(map[string]bool)
	prog.flags.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	if yamlFile != "" {
		f, err := prog.fsys.Open(yamlFile)
		if err != nil {
			return fmt.Errorf("%w: %w", errArgConfigMissing, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)

		if err := dec.Decode(&yamlOpts); err != nil {
			return fmt.Errorf("%w: %w", errArgConfigMalformed, err)
		}
	}

	if !setFlags["api-url"] && yamlOpts.APIURL != "" {
		prog.opts.APIURL = yamlOpts.APIURL
	}
	if !setFlags["import-style"] && yamlOpts.ImportStyle != "" {
		prog.opts.ImportStyle = yamlOpts.ImportStyle
	}
	if !setFlags["log-level"] && yamlOpts.LogLevel != "" {
		prog.opts.LogLevel = yamlOpts.LogLevel
	}
	if !setFlags["json"] {
		prog.opts.JSON = yamlOpts.JSON
	}

	return nil
}

// splitCommand divides args on the first bare "--" separator: everything
// before is parsed as flags, everything after is the user's command.
func splitCommand(args []string) (flagArgs, command []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}

	return args, nil
}

func (prog *program) validateOpts() error {
	if prog.opts.APIURL == "" {
		prog.opts.APIURL = defaultAPIURL
	}
	prog.opts.APIURL = strings.TrimSuffix(prog.opts.APIURL, "/")

	if prog.opts.ImportStyle != "cjs" && prog.opts.ImportStyle != "esm" {
		return fmt.Errorf("%w: %q", errArgInvalidImportStyle, prog.opts.ImportStyle)
	}

	skipRun := prog.opts.Recap || prog.opts.Restore || prog.opts.Login
	if !skipRun && len(prog.opts.Command) == 0 {
		return errArgMissingCommand
	}

	if _, err := parseLogLevel(prog.opts.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", err, prog.opts.LogLevel)
	}

	return nil
}

func (prog *program) logHandler() slog.Handler {
	logLevel, _ := parseLogLevel(prog.opts.LogLevel)

	if prog.opts.JSON {
		return slog.NewJSONHandler(prog.stderr, &slog.HandlerOptions{Level: logLevel})
	}

	return tint.NewHandler(prog.stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.TimeOnly,
	})
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errArgInvalidLogLevel
	}
}
