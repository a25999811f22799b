package hooks

import (
	"context"
	"errors"
	"fmt"

	celgo "github.com/google/cel-go/cel"

	"github.com/ValentinKolb/pKV/lib/provider"
)

const engineCEL = "cel"

func celEnv() (*celgo.Env, error) {
	return celgo.NewEnv(
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("key", celgo.StringType),
	)
}

// CELCondition compiles a boolean CEL expression into a condition hook, e.g.
// `value.age >= 18 && key.startsWith("user:")`. Non-boolean expressions are rejected when
// compiling.
func CELCondition(expression string) (provider.Hook[bool], error) {
	if expression == "" {
		return nil, &EvaluationError{Engine: engineCEL, Err: errors.New("expression must not be empty")}
	}
	e, err := celEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := e.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, &EvaluationError{Engine: engineCEL, Expr: expression, Err: issues.Err()}
	}
	checked, issues := e.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, &EvaluationError{Engine: engineCEL, Expr: expression, Err: issues.Err()}
	}
	if out := checked.OutputType(); !out.IsExactType(celgo.BoolType) && !out.IsExactType(celgo.DynType) {
		return nil, &EvaluationError{Engine: engineCEL, Expr: expression, Err: fmt.Errorf("result type %s is not bool", out)}
	}
	program, err := e.Program(checked)
	if err != nil {
		return nil, &EvaluationError{Engine: engineCEL, Expr: expression, Err: err}
	}

	return func(ctx context.Context, value any, key string) (bool, error) {
		out, _, err := program.ContextEval(ctx, map[string]any{"value": value, "key": key})
		if err != nil {
			return false, &EvaluationError{Engine: engineCEL, Expr: expression, Key: key, Err: err}
		}
		b, ok := out.Value().(bool)
		if !ok {
			return false, &EvaluationError{Engine: engineCEL, Expr: expression, Key: key, Err: fmt.Errorf("result %T is not a bool", out.Value())}
		}
		return b, nil
	}, nil
}
