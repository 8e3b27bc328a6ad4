package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SychAndrii/infusion/internal/infuser"
	"github.com/SychAndrii/infusion/internal/llmmodel"
)

type scriptedPrompter struct {
	key    string
	err    error
	called int
}

func (p *scriptedPrompter) PromptSecret(string) (string, error) {
	p.called++
	return p.key, p.err
}

// recordedConstruction captures how Run built the documentation service.
type recordedConstruction struct {
	model  llmmodel.ModelID
	apiKey string
}

func serviceRunner(mock *infuser.MockService) (NewServiceFunc, *recordedConstruction) {
	rec := &recordedConstruction{}
	return func(model llmmodel.ModelID, apiKey string, _ *slog.Logger) (infuser.Service, error) {
		rec.model = model
		rec.apiKey = apiKey
		return mock, nil
	}, rec
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runForTest invokes Run with harmless defaults: no config file, empty
// environment, a prompter that yields a key, and a service that documents
// anything.
func runForTest(t *testing.T, args []string, mut func(*RunOptions)) (code int, err error, stdout, stderr string) {
	t.Helper()
	var out, errW bytes.Buffer
	opts := &RunOptions{
		In:         strings.NewReader(""),
		Out:        &out,
		Err:        &errW,
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Getenv:     func(string) string { return "" },
		Prompter:   &scriptedPrompter{key: "prompted-key"},
	}
	opts.NewService, _ = serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{
		"": {Reply: "documented\n"},
	}})
	if mut != nil {
		mut(opts)
	}
	code, err = Run(context.Background(), append([]string{"infusion"}, args...), opts)
	return code, err, out.String(), errW.String()
}

func TestScenarioNoFiles(t *testing.T) {
	code, err, _, stderr := runForTest(t, nil, nil)
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "No files provided")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindNoFiles, verr.Kind)
}

func TestScenarioInvalidModel(t *testing.T) {
	file := writeSource(t, "main.py", "print('hi')")
	prompter := &scriptedPrompter{key: "never-used"}

	code, err, _, stderr := runForTest(t, []string{file, "--model", "unsupported-x"}, func(o *RunOptions) {
		o.Prompter = prompter
	})
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "unsupported-x")
	assert.Zero(t, prompter.called, "credential resolution must not run after a model failure")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInvalidModel, verr.Kind)
}

func TestScenarioConsoleEcho(t *testing.T) {
	file := writeSource(t, "app.js", "foo()")
	mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
		"foo": {Reply: "// doc\nfoo()"},
	}}
	newService, _ := serviceRunner(mock)

	code, err, stdout, _ := runForTest(t, []string{file}, func(o *RunOptions) {
		o.NewService = newService
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, file, "console output names the source file")
	assert.Contains(t, stdout, "// doc\nfoo()")

	// Nothing is written next to the input.
	entries, readErr := os.ReadDir(filepath.Dir(file))
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
}

func TestScenarioMissingFile(t *testing.T) {
	existing := writeSource(t, "here.py", "print('hi')")
	missing := filepath.Join(t.TempDir(), "gone.py")
	mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "documented\n"}}}
	newService, _ := serviceRunner(mock)
	prompter := &scriptedPrompter{key: "never-used"}

	code, err, _, stderr := runForTest(t, []string{existing, missing}, func(o *RunOptions) {
		o.NewService = newService
		o.Prompter = prompter
	})
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, missing)
	assert.NotContains(t, stderr, existing, "only the missing path is reported")
	assert.Empty(t, mock.Requests, "the existing file is never processed")
	assert.Zero(t, prompter.called)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindFileNotFound, verr.Kind)
}

func TestUnreadableInputIsFatal(t *testing.T) {
	t.Run("directory argument", func(t *testing.T) {
		dir := t.TempDir()
		mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}}
		newService, _ := serviceRunner(mock)

		code, err, _, stderr := runForTest(t, []string{dir}, func(o *RunOptions) {
			o.NewService = newService
		})
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, dir)
		assert.Empty(t, mock.Requests)

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, KindFileNotFound, verr.Kind)
	})

	t.Run("permission denied", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("file modes are not enforced on Windows")
		}
		if os.Geteuid() == 0 {
			t.Skip("root reads files regardless of mode")
		}
		readable := writeSource(t, "ok.py", "print('ok')")
		locked := writeSource(t, "locked.py", "print('secret')")
		require.NoError(t, os.Chmod(locked, 0o000))
		mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}}
		newService, _ := serviceRunner(mock)

		code, err, _, stderr := runForTest(t, []string{readable, locked}, func(o *RunOptions) {
			o.NewService = newService
		})
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, locked)
		assert.NotContains(t, stderr, readable)
		assert.Empty(t, mock.Requests, "validation fails before any file is processed")

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, KindFileNotFound, verr.Kind)
	})
}

func TestCheckOrderNoFilesBeforeInvalidModel(t *testing.T) {
	_, err, _, stderr := runForTest(t, []string{"--model", "unsupported-x"}, nil)
	assert.Contains(t, stderr, "No files provided")
	assert.NotContains(t, stderr, "invalid model")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindNoFiles, verr.Kind)
}

func TestCheckOrderConflictBeforeFileExistence(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.py")

	code, err, _, stderr := runForTest(t, []string{missing, "--output", t.TempDir(), "--stream"}, nil)
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "cannot be combined")
	assert.NotContains(t, stderr, "not found")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindStreamConflict, verr.Kind)
}

func TestConflictMergesFromConfigFile(t *testing.T) {
	t.Run("output from config, stream from flag", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		cfg := writeConfig(t, "output: /tmp/docs\n")

		code, err, _, _ := runForTest(t, []string{file, "--stream"}, func(o *RunOptions) {
			o.ConfigPath = cfg
		})
		assert.Equal(t, ExitFatal, code)

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, KindStreamConflict, verr.Kind)
	})

	t.Run("stream from config, output from flag", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		cfg := writeConfig(t, "stream: true\n")

		code, err, _, _ := runForTest(t, []string{file, "--output", t.TempDir()}, func(o *RunOptions) {
			o.ConfigPath = cfg
		})
		assert.Equal(t, ExitFatal, code)

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, KindStreamConflict, verr.Kind)
	})
}

func TestVersionSkipsEverything(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		t.Run(flag, func(t *testing.T) {
			code, err, stdout, _ := runForTest(t, []string{flag}, nil)
			require.NoError(t, err)
			assert.Equal(t, ExitOK, code)
			assert.Contains(t, stdout, "infusion "+Version)
		})
	}
}

func TestHelp(t *testing.T) {
	for _, flag := range []string{"--help", "-h"} {
		t.Run(flag, func(t *testing.T) {
			code, err, stdout, _ := runForTest(t, []string{flag}, nil)
			require.NoError(t, err)
			assert.Equal(t, ExitOK, code)
			assert.Contains(t, stdout, "--stream")
			assert.Contains(t, stdout, "--token-usage")
		})
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	code, err, _, stderr := runForTest(t, []string{"--bogus"}, nil)
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "--help")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindUsage, verr.Kind)
}

func TestMalformedConfigIsFatal(t *testing.T) {
	file := writeSource(t, "main.py", "print('hi')")
	cfg := writeConfig(t, "model: [unclosed\n")

	code, err, _, stderr := runForTest(t, []string{file}, func(o *RunOptions) {
		o.ConfigPath = cfg
	})
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "parse config")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindConfig, verr.Kind)
}

func TestModelPrecedence(t *testing.T) {
	t.Run("config file overrides default", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		cfg := writeConfig(t, "model: command-r\n")
		newService, rec := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})

		code, err, _, _ := runForTest(t, []string{file}, func(o *RunOptions) {
			o.ConfigPath = cfg
			o.NewService = newService
			o.Getenv = func(k string) string {
				if k == "COHERE_API_KEY" {
					return "env-cohere-key"
				}
				return ""
			}
		})
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Equal(t, llmmodel.ModelID("command-r"), rec.model)
		assert.Equal(t, "env-cohere-key", rec.apiKey)
	})

	t.Run("flag overrides config file", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		cfg := writeConfig(t, "model: command-r\n")
		newService, rec := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})

		code, err, _, _ := runForTest(t, []string{file, "--model", "gpt-4o-mini"}, func(o *RunOptions) {
			o.ConfigPath = cfg
			o.NewService = newService
			o.Getenv = func(k string) string {
				if k == "OPENAI_API_KEY" {
					return "env-openai-key"
				}
				return ""
			}
		})
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Equal(t, llmmodel.ModelID("gpt-4o-mini"), rec.model)
		assert.Equal(t, "env-openai-key", rec.apiKey)
	})

	t.Run("default model applies", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		newService, rec := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})

		_, err, _, _ := runForTest(t, []string{file}, func(o *RunOptions) {
			o.NewService = newService
		})
		require.NoError(t, err)
		assert.Equal(t, llmmodel.DefaultModel, rec.model)
	})
}

func TestCredentialResolution(t *testing.T) {
	t.Run("config key wins over environment", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		cfg := writeConfig(t, "openai_api_key: config-key\n")
		newService, rec := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})
		prompter := &scriptedPrompter{key: "never-used"}

		_, err, _, _ := runForTest(t, []string{file}, func(o *RunOptions) {
			o.ConfigPath = cfg
			o.NewService = newService
			o.Prompter = prompter
			o.Getenv = func(k string) string {
				if k == "OPENAI_API_KEY" {
					return "env-key"
				}
				return ""
			}
		})
		require.NoError(t, err)
		assert.Equal(t, "config-key", rec.apiKey)
		assert.Zero(t, prompter.called)
	})

	t.Run("prompt is the last resort", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		newService, rec := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})
		prompter := &scriptedPrompter{key: "typed-key"}

		code, err, _, _ := runForTest(t, []string{file}, func(o *RunOptions) {
			o.NewService = newService
			o.Prompter = prompter
		})
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Equal(t, "typed-key", rec.apiKey)
		assert.Equal(t, 1, prompter.called)
	})

	t.Run("empty prompt is fatal", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")

		code, err, _, stderr := runForTest(t, []string{file}, func(o *RunOptions) {
			o.Prompter = &scriptedPrompter{key: ""}
		})
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, "API key")

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, KindCredential, verr.Kind)
	})
}

func TestOutputDirectoryRun(t *testing.T) {
	file := writeSource(t, "main.py", "print('hi')")
	outDir := filepath.Join(t.TempDir(), "docs")
	mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
		"print": {Reply: "# Doc.\nprint('hi')\n"},
	}}
	newService, _ := serviceRunner(mock)

	code, err, stdout, _ := runForTest(t, []string{file, "--output", outDir}, func(o *RunOptions) {
		o.NewService = newService
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	dest := filepath.Join(outDir, "main.py")
	got, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "# Doc.\nprint('hi')\n", string(got))
	assert.Contains(t, stdout, dest, "the destination is announced")

	// Running again overwrites in place with identical content.
	code, err, _, _ = runForTest(t, []string{file, "--output", outDir}, func(o *RunOptions) {
		o.NewService = newService
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	again, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, string(got), string(again))
}

func TestStreamRun(t *testing.T) {
	file := writeSource(t, "widget.js", "widget()")
	mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
		"widget": {Snapshots: []string{"/** ", "/** doc", "/** doc */\nwidget()\n"}},
	}}
	newService, _ := serviceRunner(mock)

	code, err, stdout, _ := runForTest(t, []string{file, "--stream"}, func(o *RunOptions) {
		o.NewService = newService
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, file)
	assert.Contains(t, stdout, "/** doc */\nwidget()\n")
}

func TestTokenUsageReporting(t *testing.T) {
	t.Run("batch reports on the diagnostic stream", func(t *testing.T) {
		file := writeSource(t, "main.py", "print('hi')")
		mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
			"print": {Reply: "doc\n", Usage: infuser.Usage{InputTokens: 7, OutputTokens: 9}},
		}}
		newService, _ := serviceRunner(mock)

		code, err, stdout, stderr := runForTest(t, []string{file, "--token-usage"}, func(o *RunOptions) {
			o.NewService = newService
		})
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, stderr, "token usage")
		assert.Contains(t, stderr, "input_tokens=7")
		assert.Contains(t, stderr, "output_tokens=9")
		assert.NotContains(t, stdout, "token usage", "reports stay off the output stream")
	})

	t.Run("ignored when streaming", func(t *testing.T) {
		file := writeSource(t, "widget.js", "widget()")
		mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
			"widget": {Snapshots: []string{"doc\n"}, Usage: infuser.Usage{InputTokens: 7, OutputTokens: 9}},
		}}
		newService, _ := serviceRunner(mock)

		code, err, _, stderr := runForTest(t, []string{file, "--stream", "--token-usage"}, func(o *RunOptions) {
			o.NewService = newService
		})
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, stderr, "no effect")
		assert.NotContains(t, stderr, "input_tokens")
	})
}

func TestPerFileFailuresKeepExitZero(t *testing.T) {
	good := writeSource(t, "good.py", "alpha()")
	bad := writeSource(t, "bad.py", "omega()")
	mock := &infuser.MockService{Scripts: map[string]infuser.MockScript{
		"alpha": {Reply: "# Doc.\nalpha()\n"},
		"omega": {Err: infuser.ErrNotSourceCode},
	}}
	newService, _ := serviceRunner(mock)

	code, err, stdout, stderr := runForTest(t, []string{good, bad}, func(o *RunOptions) {
		o.NewService = newService
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code, "per-file failures never change the exit code")
	assert.Contains(t, stdout, "# Doc.\nalpha()")
	assert.Contains(t, stderr, "bad.py")
	assert.Contains(t, stderr, "1 of 2 files failed")
}

func TestInterruptExitCode(t *testing.T) {
	file := writeSource(t, "main.py", "print('hi')")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errW bytes.Buffer
	newService, _ := serviceRunner(&infuser.MockService{Scripts: map[string]infuser.MockScript{"": {Reply: "doc\n"}}})
	code, err := Run(ctx, []string{"infusion", file}, &RunOptions{
		In:         strings.NewReader(""),
		Out:        &out,
		Err:        &errW,
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Getenv:     func(string) string { return "" },
		Prompter:   &scriptedPrompter{key: "k"},
		NewService: newService,
	})
	assert.Equal(t, ExitInterrupt, code)
	require.Error(t, err)
	assert.Contains(t, errW.String(), "interrupted")
}

type panicService struct{}

func (panicService) Generate(context.Context, infuser.Request) (infuser.Result, error) {
	panic("service blew up")
}

func (panicService) GenerateStream(context.Context, infuser.Request) <-chan infuser.Event {
	panic("service blew up")
}

func TestPanicBecomesInternalError(t *testing.T) {
	file := writeSource(t, "main.py", "print('hi')")

	code, err, _, stderr := runForTest(t, []string{file}, func(o *RunOptions) {
		o.NewService = func(llmmodel.ModelID, string, *slog.Logger) (infuser.Service, error) {
			return panicService{}, nil
		}
	})
	assert.Equal(t, ExitInternal, code)
	require.Error(t, err)
	assert.Contains(t, stderr, "internal error")
}
