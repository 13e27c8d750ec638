package service

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

// evalExpression recomputes the answer from the expression text alone, the
// way a member would: parenthesized part first, otherwise left to right
// (generated chains only use + and -, so that matches precedence).
func evalExpression(t *testing.T, expression string) float64 {
	t.Helper()
	expression = strings.TrimSpace(expression)
	if strings.HasPrefix(expression, "(") {
		end := strings.IndexByte(expression, ')')
		if end < 0 {
			t.Fatalf("unbalanced parenthesis in %q", expression)
		}
		inner := evalFlat(t, expression[1:end])
		rest := strings.Fields(expression[end+1:])
		if len(rest) != 2 {
			t.Fatalf("malformed expression %q", expression)
		}
		return apply(t, inner, rest[0], parseOperand(t, rest[1]))
	}
	return evalFlat(t, expression)
}

func evalFlat(t *testing.T, expression string) float64 {
	t.Helper()
	fields := strings.Fields(expression)
	if len(fields) < 3 || len(fields)%2 == 0 {
		t.Fatalf("malformed expression %q", expression)
	}
	acc := parseOperand(t, fields[0])
	for i := 1; i < len(fields); i += 2 {
		acc = apply(t, acc, fields[i], parseOperand(t, fields[i+1]))
	}
	return acc
}

func parseOperand(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("operand %q: %v", s, err)
	}
	return v
}

func apply(t *testing.T, a float64, op string, b float64) float64 {
	t.Helper()
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return math.Round(a/b*100) / 100
	default:
		t.Fatalf("unknown operator %q", op)
		return 0
	}
}

func TestGenerateChallengeAnswerIsReproducible(t *testing.T) {
	for i := 0; i < 500; i++ {
		expression, answer := GenerateChallenge()
		got := evalExpression(t, expression)
		if math.Abs(got-answer) >= AnswerEpsilon {
			t.Fatalf("expression %q: recomputed %v, stored %v", expression, got, answer)
		}
	}
}

func TestGenerateChallengeShapes(t *testing.T) {
	var simple, chain, paren bool
	for i := 0; i < 500 && !(simple && chain && paren); i++ {
		expression, _ := GenerateChallenge()
		switch {
		case strings.HasPrefix(expression, "("):
			paren = true
		case len(strings.Fields(expression)) == 5:
			chain = true
		default:
			simple = true
		}
	}
	if !simple || !chain || !paren {
		t.Fatalf("missing shapes: simple=%v chain=%v paren=%v", simple, chain, paren)
	}
}

func TestGenerateChallengeDivisionRounded(t *testing.T) {
	for i := 0; i < 500; i++ {
		_, answer := GenerateChallenge()
		rounded := math.Round(answer*100) / 100
		if answer != rounded {
			t.Fatalf("answer %v is not rounded to two decimals", answer)
		}
	}
}
