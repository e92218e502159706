package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// ProjectState is the snapshot a predicate evaluates against. The evaluator
// assembles it once per run; providers must not mutate it.
type ProjectState struct {
	ProjectID    string
	AIEnabled    bool
	Findings     []model.Finding
	Attestations map[string]*bool
	ScanScores   map[string]float64
}

// OpenFindings returns the open findings matching the given filters. Empty
// severity or category matches everything.
func (s ProjectState) OpenFindings(severity model.Severity, category string) []model.Finding {
	var out []model.Finding
	for _, f := range s.Findings {
		if f.Status != model.FindingOpen {
			continue
		}
		if severity != "" && f.Severity != severity {
			continue
		}
		if category != "" && f.Category != category {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Outcome is a predicate's verdict on one rule.
type Outcome struct {
	OK         bool
	Message    string
	Details    map[string]any
	FindingIDs []string
}

// Provider evaluates one rule type's predicate against project state.
// Implementations must be side-effect free and respect ctx cancellation.
type Provider interface {
	Check(ctx context.Context, rule model.GateRule, state ProjectState) (Outcome, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, rule model.GateRule, state ProjectState) (Outcome, error)

// Check calls f.
func (f ProviderFunc) Check(ctx context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
	return f(ctx, rule, state)
}

// Registry maps rule types to their predicate providers.
type Registry struct {
	providers map[string]Provider
	timeout   time.Duration
}

// DefaultRuleTimeout bounds a single predicate so one slow rule cannot
// stall the whole evaluation.
const DefaultRuleTimeout = 5 * time.Second

// NewRegistry returns a registry with the built-in providers registered.
// A non-positive timeout falls back to DefaultRuleTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}
	r := &Registry{
		providers: make(map[string]Provider),
		timeout:   timeout,
	}
	registerBuiltins(r)
	return r
}

// Register installs a provider for a rule type, replacing any existing one.
// External integrations use this to supply scanner-specific predicates.
func (r *Registry) Register(ruleType string, p Provider) {
	r.providers[ruleType] = p
}

// ErrPredicateTimeout marks a predicate that exceeded its per-rule timeout.
// The evaluator degrades it to a warn result rather than failing the run.
var ErrPredicateTimeout = errors.New("rule predicate timed out")

// Check runs the provider for the rule under the per-rule timeout.
func (r *Registry) Check(ctx context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
	p, ok := r.providers[rule.RuleType]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", model.ErrUnknownRuleType, rule.RuleType)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type checked struct {
		out Outcome
		err error
	}
	ch := make(chan checked, 1)
	go func() {
		out, err := p.Check(ctx, rule, state)
		ch <- checked{out, err}
	}()

	select {
	case res := <-ch:
		if errors.Is(res.err, context.DeadlineExceeded) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrPredicateTimeout, rule.RuleType)
		}
		return res.out, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrPredicateTimeout, rule.RuleType)
		}
		return Outcome{}, ctx.Err()
	}
}
