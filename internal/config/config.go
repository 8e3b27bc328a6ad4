// Package config reads infusion's user-scoped configuration file. The file
// lives at a fixed location (~/.infusion/config.yaml) and carries optional
// defaults for settings that can also be given on the command line, plus API
// keys. A missing file is not an error; a malformed one is.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SychAndrii/infusion/internal/llmmodel"
	"gopkg.in/yaml.v3"
)

// Fragment holds the settings a config file may supply. Every field is
// optional: a zero value means "not set here" and resolution falls through to
// the next source.
type Fragment struct {
	Model        string `yaml:"model"`
	Output       string `yaml:"output"`
	Stream       *bool  `yaml:"stream"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	CohereAPIKey string `yaml:"cohere_api_key"`
}

// DefaultPath returns the fixed location of the config file in the user's
// home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".infusion", "config.yaml"), nil
}

// Load reads the config file at path. A file that does not exist yields an
// empty Fragment and no error; any other read failure, and any parse failure,
// is returned so the caller can abort before touching input files.
func Load(path string) (Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Fragment{}, nil
		}
		return Fragment{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var frag Fragment
	if err := yaml.Unmarshal(data, &frag); err != nil {
		return Fragment{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return frag, nil
}

// APIKey returns the key the fragment holds for the given provider, or "".
func (f Fragment) APIKey(pid llmmodel.ProviderID) string {
	switch pid {
	case llmmodel.ProviderIDOpenAI:
		return f.OpenAIAPIKey
	case llmmodel.ProviderIDCohere:
		return f.CohereAPIKey
	default:
		return ""
	}
}
