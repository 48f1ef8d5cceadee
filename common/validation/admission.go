package validation

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ErrRejected is returned when an entry does not satisfy the admission rule
var ErrRejected = errors.New("entry rejected by admission rule")

// AdmissionRule is a compiled CEL expression over the variable `entry`,
// which exposes `title` (string) and `duration` (int).
type AdmissionRule struct {
	expr string
	prg  cel.Program
}

// NewAdmissionRule compiles expr. An empty expression admits everything.
func NewAdmissionRule(expr string) (*AdmissionRule, error) {
	if expr == "" {
		return &AdmissionRule{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("entry", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("admission rule must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &AdmissionRule{expr: expr, prg: prg}, nil
}

// Expression returns the source expression
func (r *AdmissionRule) Expression() string {
	return r.expr
}

// Admit evaluates the rule for the given entry fields
func (r *AdmissionRule) Admit(title string, duration int64) error {
	if r == nil || r.prg == nil {
		return nil
	}

	out, _, err := r.prg.Eval(map[string]interface{}{
		"entry": map[string]interface{}{
			"title":    title,
			"duration": duration,
		},
	})
	if err != nil {
		return fmt.Errorf("CEL evaluation error: %w", err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRejected, r.expr)
	}
	return nil
}
