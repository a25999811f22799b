package hooks

import (
	"fmt"
)

// EvaluationError reports an expression that failed to compile or to evaluate.
type EvaluationError struct {
	Engine string
	Expr   string
	Key    string // empty for compile errors
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("hooks: %s expression %q: %v", e.Engine, e.Expr, e.Err)
	}
	return fmt.Sprintf("hooks: %s expression %q on key %q: %v", e.Engine, e.Expr, e.Key, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
