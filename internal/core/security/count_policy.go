package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"batchledger/internal/core/apperror"
)

// CountCompletionPolicy decides whether an inventory count may complete.
// Whether a count covering only part of the live batches is acceptable
// is an operational choice, so the rule is an expression, not code.
type CountCompletionPolicy interface {
	// CanComplete evaluates the policy for a count session.
	// countedBatches / liveBatches describe coverage of the warehouse.
	CanComplete(ctx context.Context, countedBatches, liveBatches int) error
}

// CELCountPolicy evaluates a CEL expression against count coverage.
//
// Available variables:
//   - counted:  number of batches included in the count
//   - live:     number of live batches in the warehouse
//   - coverage: counted as a fraction of live (0.0 when live == 0)
//
// Examples:
//
//	"true"                  — partial counts always allowed
//	"counted == live"       — full coverage required
//	"coverage >= 0.8"       — at least 80% of batches counted
type CELCountPolicy struct {
	program cel.Program
	expr    string
}

// NewCELCountPolicy compiles the expression. Returns an error for
// expressions that do not evaluate to bool.
func NewCELCountPolicy(expr string) (*CELCountPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("counted", cel.IntType),
		cel.Variable("live", cel.IntType),
		cel.Variable("coverage", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile count policy %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("count policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program count policy: %w", err)
	}

	return &CELCountPolicy{program: prg, expr: expr}, nil
}

// MustCELCountPolicy compiles the expression, panics on error.
// Use for configuration defaults and tests.
func MustCELCountPolicy(expr string) *CELCountPolicy {
	p, err := NewCELCountPolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *CELCountPolicy) CanComplete(ctx context.Context, countedBatches, liveBatches int) error {
	coverage := 0.0
	if liveBatches > 0 {
		coverage = float64(countedBatches) / float64(liveBatches)
	}

	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"counted":  int64(countedBatches),
		"live":     int64(liveBatches),
		"coverage": coverage,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate count policy: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("count policy %q returned %T", p.expr, out.Value()))
	}
	if !allowed {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Count coverage does not satisfy the completion policy",
		).WithDetail("counted_batches", countedBatches).
			WithDetail("live_batches", liveBatches).
			WithDetail("policy", p.expr)
	}
	return nil
}

// AllowPartialCounts is the default policy: any coverage may complete.
var AllowPartialCounts = MustCELCountPolicy("true")
