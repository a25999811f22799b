package hooks

import (
	"context"
	"errors"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/ValentinKolb/pKV/lib/provider"
)

const engineExpr = "expr"

// env is what expr expressions see: the decoded stored value and its key.
type env struct {
	Value any    `expr:"value"`
	Key   string `expr:"key"`
}

func compileExpr(expression string, options ...exprlang.Option) (*exprvm.Program, error) {
	if expression == "" {
		return nil, &EvaluationError{Engine: engineExpr, Err: errors.New("expression must not be empty")}
	}
	program, err := exprlang.Compile(expression, append([]exprlang.Option{exprlang.Env(env{})}, options...)...)
	if err != nil {
		return nil, &EvaluationError{Engine: engineExpr, Expr: expression, Err: err}
	}
	return program, nil
}

func runExpr(ctx context.Context, program *exprvm.Program, expression string, value any, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := exprlang.Run(program, env{Value: value, Key: key})
	if err != nil {
		return nil, &EvaluationError{Engine: engineExpr, Expr: expression, Key: key, Err: err}
	}
	return out, nil
}

// Condition compiles a boolean expr-lang expression into a condition hook, e.g.
// `value.age >= 18 && key startsWith "user:"`.
func Condition(expression string) (provider.Hook[bool], error) {
	program, err := compileExpr(expression, exprlang.AsBool())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, value any, key string) (bool, error) {
		out, err := runExpr(ctx, program, expression, value, key)
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, &EvaluationError{Engine: engineExpr, Expr: expression, Key: key, Err: fmt.Errorf("result %T is not a bool", out)}
		}
		return b, nil
	}, nil
}

// Mapper compiles an expr-lang expression into a mapper hook; its result is the mapped value,
// e.g. `value.name`.
func Mapper(expression string) (provider.Hook[any], error) {
	program, err := compileExpr(expression)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, value any, key string) (any, error) {
		return runExpr(ctx, program, expression, value, key)
	}, nil
}

// Updater compiles an expr-lang expression whose result replaces the stored value, e.g.
// `value * 2` or `{"name": value.name, "visits": value.visits + 1}`.
func Updater(expression string) (provider.Hook[any], error) {
	return Mapper(expression)
}
