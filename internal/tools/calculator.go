package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

var (
	// ErrInvalidExpression is returned for input outside plain arithmetic.
	ErrInvalidExpression = errors.New("expression contains invalid characters")
	// ErrNotFinite is returned when the result is infinite or NaN.
	ErrNotFinite = errors.New("result is not a finite number")
)

var arithmeticRe = regexp.MustCompile(`^[0-9+\-*/().% ]+$`)

// Calculator evaluates arithmetic expressions for budgeting.
type Calculator struct{}

// NewCalculator creates a calculator tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Name implements Tool.
func (c *Calculator) Name() string { return NameCalculator }

// Description implements Tool.
func (c *Calculator) Description() string {
	return "Evaluate arithmetic such as 200*7 or 5000/2*10. Supports + - * / % ** and parentheses."
}

// Parameters implements Tool.
func (c *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Arithmetic expression using digits, + - * / % ** and parentheses",
			},
		},
		"required": []string{"expression"},
	}
}

// Call implements Tool. Arguments may be {"expression": "..."} or the bare
// expression.
func (c *Calculator) Call(_ context.Context, args string) string {
	expression := args
	var payload struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err == nil && payload.Expression != "" {
		expression = payload.Expression
	}

	v, err := Evaluate(expression)
	if err != nil {
		return fmt.Sprintf("[calculator] error: %v", err)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Evaluate computes an arithmetic expression. Only digits, the operators
// + - * / % ** and parentheses are accepted; anything else is rejected before
// compilation.
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, errors.New("empty expression")
	}
	if !arithmeticRe.MatchString(expression) {
		return 0, ErrInvalidExpression
	}

	program, err := expr.Compile(expression)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, fmt.Errorf("evaluation failed: %w", err)
	}

	var v float64
	switch n := out.(type) {
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case float64:
		v = n
	default:
		return 0, fmt.Errorf("unexpected result type %T", out)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNotFinite
	}
	return v, nil
}
