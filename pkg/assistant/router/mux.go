package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/podiumlabs/podium/pkg/assistant"
)

var ErrNoProviders = errors.New("no completion providers registered")

// Mux fans a completion request across providers in registration order. The
// first provider to answer wins; later ones only see the request when the
// earlier ones error. Retry/backoff is the recovery coordinator's job, not
// the mux's: one pass through the list per call.
type Mux struct {
	order      []string
	completers map[string]assistant.Completer
}

func New(completers ...assistant.Completer) *Mux {
	m := &Mux{completers: make(map[string]assistant.Completer)}
	for _, c := range completers {
		if _, dup := m.completers[c.Name()]; dup {
			continue
		}
		m.order = append(m.order, c.Name())
		m.completers[c.Name()] = c
	}
	return m
}

func (m *Mux) Providers() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Complete implements assistant.Completer over the provider chain.
func (m *Mux) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	if len(m.order) == 0 {
		return "", ErrNoProviders
	}
	var lastErr error
	for _, name := range m.order {
		text, err := m.completers[name].Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = fmt.Errorf("%s: %w", name, err)
	}
	return "", lastErr
}

func (m *Mux) Name() string { return "mux" }
