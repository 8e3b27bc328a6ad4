package cli

import (
	"os"
	"strings"

	"github.com/SychAndrii/infusion/internal/config"
	"github.com/SychAndrii/infusion/internal/credentials"
	"github.com/SychAndrii/infusion/internal/llmmodel"
)

// settings is the merged run configuration: built-in defaults, then the
// config file, then CLI flags, each layer overriding the one below,
// field by field.
type settings struct {
	Model      llmmodel.ModelID
	OutputDir  string
	Stream     bool
	TokenUsage bool
}

func mergeSettings(frag config.Fragment, inv *Invocation) settings {
	s := settings{Model: llmmodel.DefaultModel}
	if frag.Model != "" {
		s.Model = llmmodel.ModelID(frag.Model)
	}
	if frag.Output != "" {
		s.OutputDir = frag.Output
	}
	if frag.Stream != nil {
		s.Stream = *frag.Stream
	}
	if inv.Model != "" {
		s.Model = llmmodel.ModelID(inv.Model)
	}
	if inv.Output != "" {
		s.OutputDir = inv.Output
	}
	if inv.Stream {
		s.Stream = true
	}
	if inv.TokenUsage {
		s.TokenUsage = true
	}
	return s
}

// runPlan is everything a validated run needs: the files to process and the
// resolved credential for the selected model's provider.
type runPlan struct {
	Files      []string
	Model      llmmodel.ModelID
	OutputDir  string
	Stream     bool
	TokenUsage bool
	Credential credentials.Credential
}

// validate runs the precondition checks in their fixed order; the first
// failure wins. Credential resolution may prompt the operator, so it runs
// last among the checks that can reject the run, before the output directory
// is created.
func validate(files []string, s settings, resolver *credentials.Resolver) (runPlan, error) {
	if len(files) == 0 {
		return runPlan{}, ValidationError{Kind: KindNoFiles, Message: "No files provided. Pass at least one source file to document."}
	}
	if s.OutputDir != "" && s.Stream {
		return runPlan{}, ValidationError{Kind: KindStreamConflict, Message: "--output and --stream cannot be combined: streamed output goes to the console only."}
	}
	if !s.Model.Valid() {
		return runPlan{}, validationErrorf(KindInvalidModel, "invalid model %q; supported models: %s", string(s.Model), supportedModels())
	}

	var unreadable []string
	for _, f := range files {
		if !isReadableFile(f) {
			unreadable = append(unreadable, f)
		}
	}
	if len(unreadable) > 0 {
		return runPlan{}, validationErrorf(KindFileNotFound, "file(s) not found or not readable: %s", strings.Join(unreadable, ", "))
	}

	cred, err := resolver.Resolve(s.Model.ProviderID())
	if err != nil {
		return runPlan{}, ValidationError{Kind: KindCredential, Message: err.Error()}
	}

	if s.OutputDir != "" {
		if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
			return runPlan{}, validationErrorf(KindOutputDir, "cannot create output directory %s: %v", s.OutputDir, err)
		}
	}

	return runPlan{
		Files:      files,
		Model:      s.Model,
		OutputDir:  s.OutputDir,
		Stream:     s.Stream,
		TokenUsage: s.TokenUsage,
		Credential: cred,
	}, nil
}

// isReadableFile reports whether path is an existing regular file this
// process can open for reading. The contents are not read here; the pipeline
// does its own read per file.
func isReadableFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && info.Mode().IsRegular()
}

func supportedModels() string {
	ids := llmmodel.AvailableModelIDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
