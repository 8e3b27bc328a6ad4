// Package credentials resolves the API key for a provider. Resolution order:
// the config file, then the provider's environment variable, then an
// interactive prompt. The resolved key is handed back to the caller; nothing
// here mutates the process environment.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/SychAndrii/infusion/internal/config"
	"github.com/SychAndrii/infusion/internal/llmmodel"
)

// Source records where a resolved key came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceEnv    Source = "env"
	SourcePrompt Source = "prompt"
)

// Credential is a resolved API key for one provider.
type Credential struct {
	Provider llmmodel.ProviderID
	Key      string
	Source   Source
}

// Prompter asks the user for a secret without echoing it.
type Prompter interface {
	PromptSecret(label string) (string, error)
}

// Resolver resolves provider API keys. Env defaults to os.Getenv when nil.
// A nil Prompter turns the prompt step into an error, which is what
// non-interactive callers want.
type Resolver struct {
	Config   config.Fragment
	Env      func(string) string
	Prompter Prompter
}

// Resolve returns the credential for pid, trying the config file, the
// environment and finally the prompt. Failure to obtain a key is an error;
// the caller treats it as fatal.
func (r *Resolver) Resolve(pid llmmodel.ProviderID) (Credential, error) {
	if pid == llmmodel.ProviderIDUnknown {
		return Credential{}, fmt.Errorf("no provider to resolve an API key for")
	}

	if key := strings.TrimSpace(r.Config.APIKey(pid)); key != "" {
		return Credential{Provider: pid, Key: key, Source: SourceConfig}, nil
	}

	env := r.Env
	if env == nil {
		env = os.Getenv
	}
	if key := strings.TrimSpace(env(pid.KeyEnvVar())); key != "" {
		return Credential{Provider: pid, Key: key, Source: SourceEnv}, nil
	}

	if r.Prompter == nil {
		return Credential{}, fmt.Errorf("no %s API key configured: set %s or add %s to the config file",
			pid.DisplayName(), pid.KeyEnvVar(), pid.ConfigKey())
	}
	key, err := r.Prompter.PromptSecret(fmt.Sprintf("Enter your %s API key", pid.DisplayName()))
	if err != nil {
		return Credential{}, fmt.Errorf("prompt for %s API key: %w", pid.DisplayName(), err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}, fmt.Errorf("no %s API key provided", pid.DisplayName())
	}
	return Credential{Provider: pid, Key: key, Source: SourcePrompt}, nil
}
