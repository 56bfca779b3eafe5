package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"script-backend/internal/shared/telemetry"
)

// ErrBudgetExceeded is returned once a Budget has spent its ceiling.
var ErrBudgetExceeded = errors.New("generative call budget exceeded")

// Budget counts calls against a hard ceiling. Calls are billed whether they
// succeed or not, so it never retries.
type Budget struct {
	base  Client
	limit int
	label string

	mu   sync.Mutex
	used int
}

// NewBudget wraps base with a ceiling of limit calls. label tags log lines.
func NewBudget(base Client, limit int, label string) *Budget {
	return &Budget{base: base, limit: limit, label: label}
}

// Generate spends one call or refuses with ErrBudgetExceeded.
func (b *Budget) Generate(ctx context.Context, req Request) (Generation, error) {
	b.mu.Lock()
	if b.used >= b.limit {
		used := b.used
		b.mu.Unlock()
		telemetry.Error("llm.budget_exceeded", map[string]any{"label": b.label, "used": used, "limit": b.limit})
		return Generation{}, fmt.Errorf("%w: %d of %d used", ErrBudgetExceeded, used, b.limit)
	}
	b.used++
	b.mu.Unlock()

	gen, err := b.base.Generate(ctx, req)
	fields := map[string]any{
		"label":         b.label,
		"model":         gen.Model,
		"input_tokens":  gen.InputTokens,
		"output_tokens": gen.OutputTokens,
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("llm.call", fields)
		return gen, err
	}
	telemetry.Info("llm.call", fields)
	return gen, nil
}

// Used reports calls spent so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

var _ Client = (*Budget)(nil)
