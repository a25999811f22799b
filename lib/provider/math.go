package provider

import (
	"fmt"
	"math"
	"strings"
)

// MathOperator is the arithmetic operation applied by a math payload.
type MathOperator uint8

const (
	OperatorAddition MathOperator = iota + 1
	OperatorSubtraction
	OperatorMultiplication
	OperatorDivision
	OperatorRemainder
	OperatorExponent
)

func (o MathOperator) String() string {
	switch o {
	case OperatorAddition:
		return "add"
	case OperatorSubtraction:
		return "sub"
	case OperatorMultiplication:
		return "mul"
	case OperatorDivision:
		return "div"
	case OperatorRemainder:
		return "mod"
	case OperatorExponent:
		return "pow"
	default:
		return "unknown"
	}
}

// ParseOperator accepts the operator names returned by String as well as their symbols.
func ParseOperator(s string) (MathOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "addition", "+":
		return OperatorAddition, nil
	case "sub", "subtraction", "-":
		return OperatorSubtraction, nil
	case "mul", "multiplication", "*":
		return OperatorMultiplication, nil
	case "div", "division", "/":
		return OperatorDivision, nil
	case "mod", "rem", "remainder", "%":
		return OperatorRemainder, nil
	case "pow", "exponent", "^", "**":
		return OperatorExponent, nil
	default:
		return 0, fmt.Errorf("invalid math operator %q", s)
	}
}

// ApplyOperator computes `a <op> b`.
// Remainder keeps the sign of a (like math.Mod); an unknown operator panics.
func ApplyOperator(op MathOperator, a, b float64) float64 {
	switch op {
	case OperatorAddition:
		return a + b
	case OperatorSubtraction:
		return a - b
	case OperatorMultiplication:
		return a * b
	case OperatorDivision:
		return a / b
	case OperatorRemainder:
		return math.Mod(a, b)
	case OperatorExponent:
		return math.Pow(a, b)
	default:
		panic(fmt.Sprintf("unknown math operator %d", op))
	}
}
