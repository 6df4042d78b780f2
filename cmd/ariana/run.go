package main

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariana-dev/ariana-cli/internal/instrument"
	"github.com/ariana-dev/ariana-cli/internal/outputio"
	"github.com/ariana-dev/ariana-cli/internal/prepare"
	"github.com/ariana-dev/ariana-cli/internal/supervisor"
	"github.com/ariana-dev/ariana-cli/internal/traceio"
	"github.com/ariana-dev/ariana-cli/internal/vault"
)

const arianaDirName = ".ariana"

// runHarness is the default mode (component pipeline B through H): prepare
// the working tree, launch the command, ship its trace and output streams,
// and restore the tree on exit.
func (prog *program) runHarness(ctx context.Context) (int, error) {
	projectRoot, err := prog.workingDirAbs()
	if err != nil {
		return exitCodeFailure, err
	}

	arianaDir := filepath.Join(projectRoot, arianaDirName)
	importStyle := prepare.ImportStyleCJS
	if prog.opts.ImportStyle == "esm" {
		importStyle = prepare.ImportStyleESM
	}

	machineHash, err := vault.MachineHash(ctx, prog.fsys, prog.homeDir)
	if err != nil {
		return exitCodeFailure, fmt.Errorf("failed to derive machine hash: %w", err)
	}

	vaultClient := vault.NewClient(prog.opts.APIURL, machineHash)

	secretKey, err := vaultClient.Create(ctx, strings.Join(prog.opts.Command, " "), projectRoot)
	if err != nil {
		return exitCodeFailure, fmt.Errorf("failed to register run: %w", err)
	}

	if err := vault.PersistSecretKey(prog.fsys, arianaDir, secretKey); err != nil {
		return exitCodeFailure, fmt.Errorf("failed to persist vault key: %w", err)
	}

	if err := prepare.AmendGitignore(prog.fsys, projectRoot); err != nil {
		prog.log.Error("failed to amend .gitignore", "error", err, "error-type", "runtime")
	}

	symlinkOK := prepare.ProbeSymlinkSupport(prog.fsys)
	if !symlinkOK {
		prog.log.Warn("symlink creation is not permitted on this filesystem; falling back to copies")
	}

	items, err := prepare.Collect(prog.fsys, projectRoot, arianaDir)
	if err != nil {
		return exitCodeFailure, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	dirs, toInstrument, toCopy := items.Stats()
	prog.log.Info("workspace scanned", "dirs", dirs, "files_to_instrument", toInstrument, "files_to_copy", toCopy)

	workingDir := arianaDir
	if prog.opts.InPlace {
		workingDir = projectRoot
	} else {
		if failures := prepare.MaterializeAll(ctx, prog.fsys, prog.log, items, symlinkOK); len(failures) > 0 {
			prog.log.Warn("some paths failed to mirror", "count", len(failures))
		}
	}

	var backup *prepare.Backup
	if prog.opts.InPlace {
		backup, err = prepare.OpenBackup(prog.fsys, arianaDir)
		if err != nil {
			return exitCodeFailure, fmt.Errorf("failed to open backup archive: %w", err)
		}
	}

	prog.instrumentAndWrite(ctx, secretKey, projectRoot, importStyle, items, backup)

	if backup != nil {
		if err := backup.Close(); err != nil {
			return exitCodeFailure, fmt.Errorf("failed to finalize backup archive: %w", err)
		}
	}

	exitCode, interrupted, runErr := prog.launchAndPipe(ctx, workingDir, prog.opts.APIURL, secretKey)

	if prog.opts.InPlace {
		if restoreErr := prepare.Restore(prog.fsys, arianaDir); restoreErr != nil {
			prog.log.Error("failed to restore original files", "error", restoreErr, "error-type", "fatal")

			if runErr == nil {
				runErr = restoreErr
			}
		}
	} else {
		if removeErr := prepare.RemoveMirror(prog.fsys, arianaDir); removeErr != nil {
			prog.log.Error("failed to remove mirror workspace", "error", removeErr, "error-type", "runtime")
		}
	}

	if interrupted {
		return exitCodeInterrupted, runErr
	}

	return exitCode, runErr
}

// instrumentAndWrite reads, instruments, and writes back every instrument
// candidate. Per-file read/write failures are logged and counted rather
// than aborting the run (spec §7): the command still launches against
// whatever the workspace ended up with.
func (prog *program) instrumentAndWrite(
	ctx context.Context,
	secretKey, projectRoot string,
	importStyle prepare.ImportStyle,
	items prepare.CollectedItems,
	backup *prepare.Backup,
) {
	originals, readFailures := instrument.ReadOriginals(ctx, prog.fsys, prog.log, items.FilesToInstrument)
	if len(readFailures) > 0 {
		prog.log.Warn("some files failed to read during instrumentation", "count", len(readFailures))
	}

	client := instrument.NewClient(prog.opts.APIURL, secretKey, prog.log)
	instrumented := client.InstrumentFiles(ctx, projectRoot, importStyle, originals)

	writeFailures := instrument.WriteResults(prog.fsys, prog.log, backup, prog.opts.InPlace, items.FilesToInstrument, originals, instrumented)
	if len(writeFailures) > 0 {
		prog.log.Warn("some files failed to write during instrumentation", "count", len(writeFailures))
	}
}

// launchAndPipe spawns the child, pumps its stdout/stderr through the
// extractor and the two shippers, and blocks until it exits (or is
// interrupted).
func (prog *program) launchAndPipe(ctx context.Context, workingDir, apiURL, secretKey string) (exitCode int, interrupted bool, err error) {
	sup, err := supervisor.Launch(workingDir, prog.opts.Command, prog.log)
	if err != nil {
		return exitCodeFailure, false, fmt.Errorf("failed to launch command: %w", err)
	}

	traceShipper := traceio.NewShipper(apiURL, secretKey, prog.log)
	shipperCtx, cancelShipper := context.WithCancel(context.Background())
	defer cancelShipper()
	go traceShipper.Run(shipperCtx)

	outputLines := make(chan outputio.Line, 1024)
	outputShipper := outputio.NewShipper(wsURL(apiURL, secretKey), outputio.DefaultDialer, outputLines, prog.log)
	go outputShipper.Run(context.Background())

	readersDone := make(chan struct{}, 2)

	go func() {
		defer func() { readersDone <- struct{}{} }()
		prog.pumpStdout(ctx, sup, traceShipper, outputLines)
	}()

	go func() {
		defer func() { readersDone <- struct{}{} }()
		prog.pumpStderr(sup, outputLines)
	}()

	readersFinished := make(chan struct{})
	go func() {
		<-readersDone
		<-readersDone
		close(readersFinished)
	}()

	// sup.Wait closes the child's pipes, so it only runs once both readers
	// have hit EOF, or once an interrupt asks for the child to be terminated.
	select {
	case <-readersFinished:
	case <-ctx.Done():
	}

	code, wasInterrupted := sup.Wait(ctx)

	<-readersFinished

	close(outputLines)
	outputShipper.Stop()
	outputShipper.Wait()

	traceShipper.Drain(context.Background())

	return code, wasInterrupted, nil
}

func (prog *program) pumpStdout(ctx context.Context, sup *supervisor.Supervisor, shipper *traceio.Shipper, out chan<- outputio.Line) {
	scanner := bufio.NewScanner(sup.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		clean, payloads := traceio.Scan(line)

		for _, payload := range payloads {
			shipper.Enqueue(ctx, payload)
		}

		if !traceio.IsBlank(clean) {
			fmt.Fprintln(prog.stdout, clean)
		}

		out <- outputio.Line{
			Text:      outputio.TrimCR(clean),
			Source:    outputio.SourceStdout,
			Timestamp: outputio.TimestampMillis(time.Now()),
		}
	}
}

func (prog *program) pumpStderr(sup *supervisor.Supervisor, out chan<- outputio.Line) {
	scanner := bufio.NewScanner(sup.Stderr())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		fmt.Fprintln(prog.stderr, line)

		out <- outputio.Line{
			Text:      outputio.TrimCR(line),
			Source:    outputio.SourceStderr,
			Timestamp: outputio.TimestampMillis(time.Now()),
		}
	}
}

func (prog *program) workingDirAbs() (string, error) {
	abs, err := filepath.Abs(".")
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}

	return abs, nil
}

func wsURL(apiURL, secretKey string) string {
	url := apiURL
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)

	return fmt.Sprintf("%s/vaults/%s/subprocess-stdout/stream", url, secretKey)
}
