// Package cli wires the whole tool together: it parses the command line into
// an explicit request, merges it with the config file, runs the ordered
// validation checks, and drives the processing pipeline. Run returns an exit
// code instead of exiting so it stays testable end to end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/SychAndrii/infusion/internal/config"
	"github.com/SychAndrii/infusion/internal/conlog"
	"github.com/SychAndrii/infusion/internal/credentials"
	"github.com/SychAndrii/infusion/internal/infuser"
	"github.com/SychAndrii/infusion/internal/llmmodel"
	"github.com/SychAndrii/infusion/internal/pipeline"
	"github.com/SychAndrii/infusion/internal/sink"
)

// Version is the infusion version. It is a var (not a const) so build
// tooling can override it via `-ldflags "-X .../internal/cli.Version=1.2.3"`.
var Version = "0.4.0"

// NewServiceFunc constructs the documentation service for a validated run.
type NewServiceFunc func(model llmmodel.ModelID, apiKey string, logger *slog.Logger) (infuser.Service, error)

// RunOptions override process defaults; zero fields fall back to real stdio,
// the default config path, the terminal prompter, and real provider clients.
// Overriding is useful for testing.
type RunOptions struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	ConfigPath string
	Getenv     func(string) string
	Prompter   credentials.Prompter
	NewService NewServiceFunc
}

// Run executes the CLI with args (typically os.Args) and returns the process
// exit code plus the run-ending error, if any. All user-facing diagnostics
// are already written by the time Run returns; callers just exit with code.
func Run(ctx context.Context, args []string, opts *RunOptions) (code int, err error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	in := io.Reader(os.Stdin)
	out := io.Writer(os.Stdout)
	errW := io.Writer(os.Stderr)
	if opts.In != nil {
		in = opts.In
	}
	if opts.Out != nil {
		out = opts.Out
	}
	if opts.Err != nil {
		errW = opts.Err
	}

	logger := conlog.New(out, errW, false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("internal error", "panic", fmt.Sprint(r))
			code = ExitInternal
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	argv := args
	if len(argv) > 0 {
		argv = argv[1:]
	}
	inv, helped, err := parseArgs(argv, out, errW)
	if err != nil {
		logger.Error(err.Error())
		return exitCodeFor(err), err
	}
	if helped {
		return ExitOK, nil
	}

	logger = conlog.New(out, errW, inv.Verbose)

	if inv.Version {
		fmt.Fprintln(out, "infusion "+Version)
		return ExitOK, nil
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			verr := ValidationError{Kind: KindConfig, Message: err.Error()}
			logger.Error(verr.Message)
			return ExitFatal, verr
		}
		configPath = p
	}
	frag, err := config.Load(configPath)
	if err != nil {
		verr := ValidationError{Kind: KindConfig, Message: err.Error()}
		logger.Error(verr.Message)
		return ExitFatal, verr
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = &credentials.TerminalPrompter{In: in, Out: errW}
	}
	resolver := &credentials.Resolver{Config: frag, Env: getenv, Prompter: prompter}

	plan, err := validate(inv.Files, mergeSettings(frag, inv), resolver)
	if err != nil {
		logger.Error(err.Error())
		return exitCodeFor(err), err
	}
	logger.Debug("run validated",
		"model", string(plan.Model),
		"files", len(plan.Files),
		"stream", plan.Stream,
		"output", plan.OutputDir,
		"credential_source", string(plan.Credential.Source),
	)

	newService := opts.NewService
	if newService == nil {
		newService = infuser.New
	}
	svc, err := newService(plan.Model, plan.Credential.Key, logger)
	if err != nil {
		logger.Error(err.Error())
		return ExitFatal, err
	}
	if plan.TokenUsage {
		if plan.Stream {
			logger.Warn("--token-usage has no effect in streaming mode; ignoring")
		} else {
			// Usage reports belong on the diagnostic stream, away from
			// documented output.
			svc = infuser.WithUsageLogging(svc, slog.New(conlog.NewHandler(errW, errW, diagLevel(inv.Verbose))))
		}
	}

	pipe := &pipeline.Pipeline{
		Service: svc,
		Output:  &sink.Sink{Dir: plan.OutputDir, Console: out},
		Logger:  logger,
		Model:   plan.Model,
		Stream:  plan.Stream,
	}
	failed, err := pipe.Run(ctx, plan.Files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted; stopping")
			return ExitInterrupt, ExitError{Code: ExitInterrupt, Err: err}
		}
		logger.Error(err.Error())
		return ExitFatal, err
	}
	if failed > 0 {
		// Deliberate: per-file failures never turn the run's exit code
		// non-zero. Automation that needs stricter behavior should watch the
		// diagnostic stream.
		logger.Warn(fmt.Sprintf("%d of %d files failed", failed, len(plan.Files)))
	}
	return ExitOK, nil
}

func exitCodeFor(err error) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFatal
}

func diagLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
