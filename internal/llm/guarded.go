package llm

import (
	"context"
	"log/slog"

	"github.com/8adimka/expert_consult/internal/circuitbreaker"
)

// Completer is one blocking chat-completion call
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GuardedCompleter fails fast while the upstream is known to be down.
// Each admitted request is still a single call to the wrapped completer.
type GuardedCompleter struct {
	next    Completer
	breaker *circuitbreaker.Breaker
}

// NewGuardedCompleter wraps next with a breaker built from cfg
func NewGuardedCompleter(next Completer, cfg circuitbreaker.Config) *GuardedCompleter {
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to circuitbreaker.State) {
			slog.Warn("LLM circuit breaker state changed", "from", from.String(), "to", to.String())
		}
	}
	return &GuardedCompleter{next: next, breaker: circuitbreaker.New(cfg)}
}

// Complete forwards req unless the breaker is open
func (g *GuardedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	var text string
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		text, err = g.next.Complete(ctx, req)
		return err
	})
	return text, err
}
