// Package llmmodel defines the closed set of language models infusion can
// talk to, and the provider each one belongs to.
package llmmodel

// ModelID is a user-visible model identifier. It is also the exact model
// string sent to the provider's API.
//
// The set of valid IDs is closed: only models our prompts have been tested
// against are accepted, and an unknown ID is rejected during validation
// rather than forwarded to a provider.
type ModelID string

// ModelIDUnknown is an unknown model ID (which is also the zero value).
const ModelIDUnknown ModelID = ""

// DefaultModel is the model used when neither the command line nor the config
// file names one.
const DefaultModel ModelID = "gpt-4o"

// ProviderID identifies the API family a model belongs to. Each provider has
// its own constant because each one needs real code (client, auth, streaming
// shape) to support it.
type ProviderID string

const (
	ProviderIDUnknown ProviderID = ""
	ProviderIDOpenAI  ProviderID = "openai"
	ProviderIDCohere  ProviderID = "cohere"
)

// modelProviders is the registry of supported models. Keep modelOrder in sync.
var modelProviders = map[ModelID]ProviderID{
	"gpt-4o":         ProviderIDOpenAI,
	"gpt-4o-mini":    ProviderIDOpenAI,
	"gpt-4-turbo":    ProviderIDOpenAI,
	"gpt-3.5-turbo":  ProviderIDOpenAI,
	"command-r-plus": ProviderIDCohere,
	"command-r":      ProviderIDCohere,
	"command":        ProviderIDCohere,
}

// modelOrder fixes the listing order for help text and error messages.
var modelOrder = []ModelID{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-3.5-turbo",
	"command-r-plus",
	"command-r",
	"command",
}

// Valid returns true if id is a known and valid model ID.
func (id ModelID) Valid() bool {
	if id == ModelIDUnknown {
		return false
	}
	_, ok := modelProviders[id]
	return ok
}

// ProviderID returns id's provider, or ProviderIDUnknown if id is not valid.
func (id ModelID) ProviderID() ProviderID {
	return modelProviders[id]
}

// AvailableModelIDs returns all supported model IDs in listing order.
func AvailableModelIDs() []ModelID {
	out := make([]ModelID, len(modelOrder))
	copy(out, modelOrder)
	return out
}

// DisplayName returns the provider's human name for prompts and messages.
func (pid ProviderID) DisplayName() string {
	switch pid {
	case ProviderIDOpenAI:
		return "OpenAI"
	case ProviderIDCohere:
		return "Cohere"
	default:
		return string(pid)
	}
}

// KeyEnvVar returns the environment variable (without $) conventionally
// holding the provider's API key. Ex: "OPENAI_API_KEY".
func (pid ProviderID) KeyEnvVar() string {
	switch pid {
	case ProviderIDOpenAI:
		return "OPENAI_API_KEY"
	case ProviderIDCohere:
		return "COHERE_API_KEY"
	default:
		return ""
	}
}

// ConfigKey returns the config-file key holding the provider's API key.
// Ex: "openai_api_key".
func (pid ProviderID) ConfigKey() string {
	switch pid {
	case ProviderIDOpenAI:
		return "openai_api_key"
	case ProviderIDCohere:
		return "cohere_api_key"
	default:
		return ""
	}
}
