// Package hooks compiles textual expressions into provider hooks, so conditions, mappers and
// updaters can come from configuration or the command line.
//
// Two engines are supported. expr-lang (Condition, Mapper, Updater) and CEL (CELCondition).
// Expressions see two variables: value, the decoded stored value (numbers are float64, objects
// map[string]any, arrays []any), and key, the key it is stored under.
//
// Expressions are compiled once; the returned hooks are safe for concurrent use. Evaluation
// failures are returned as *EvaluationError and abort the operation the hook belongs to.
package hooks
