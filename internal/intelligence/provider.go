package intelligence

import (
	"context"
	"fmt"
	"time"
)

// Request is a single structured-output completion. Schema is a JSON
// schema object; providers enforce it natively (tool use or response
// format) so the reply is machine-parseable.
type Request struct {
	Name        string
	System      string
	Prompt      string
	Schema      map[string]any
	MaxTokens   int
	Temperature float64
}

// Response is the provider's reply. Content is the raw JSON text.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// Provider is a Content-Intelligence backend. Implementations are safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
	Model() string
}

// Provider identifiers accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderStub      = "stub"
)

// NewProvider builds the configured provider. The stub provider needs no
// credentials and answers every stage with a minimal valid document; it
// exists for offline runs and tests.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropic(cfg)
	case ProviderOpenAI:
		return newOpenAI(cfg)
	case ProviderStub, "":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
