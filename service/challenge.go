package service

import (
	"fmt"
	"math"
	"math/rand"
)

// AnswerEpsilon is the tolerance when comparing a submitted answer against
// the stored one, so that rounded division results still match.
const AnswerEpsilon = 0.01

// GenerateChallenge produces a human-solvable arithmetic expression and its
// answer. Non-integral division results are rounded to two decimal digits.
//
// Three shapes are produced so the pattern is not trivially guessable:
// a two-operand expression, a three-operand additive chain, and one level
// of parenthesization.
func GenerateChallenge() (expression string, answer float64) {
	switch rand.Intn(3) {
	case 0:
		return simpleExpression()
	case 1:
		return chainExpression()
	default:
		return parenExpression()
	}
}

// simpleExpression returns "a op b" with operands small enough for mental
// arithmetic.
func simpleExpression() (string, float64) {
	op := [...]string{"+", "-", "*", "/"}[rand.Intn(4)]
	var a, b int
	switch op {
	case "+":
		a = 1 + rand.Intn(50)
		b = 1 + rand.Intn(50)
	case "-":
		// keep the result non-negative
		a = 10 + rand.Intn(91)
		b = 1 + rand.Intn(a)
	case "*":
		// multiplication table range
		a = 2 + rand.Intn(11)
		b = 2 + rand.Intn(11)
	case "/":
		b = 2 + rand.Intn(9)
		a = b * (1 + rand.Intn(10))
	}
	return fmt.Sprintf("%v %v %v", a, op, b), evalBinary(float64(a), op, float64(b))
}

// chainExpression returns "a ± b ± c". Only additive operators appear, so
// left-to-right evaluation matches ordinary precedence.
func chainExpression() (string, float64) {
	a := 1 + rand.Intn(50)
	b := 1 + rand.Intn(50)
	op1 := [...]string{"+", "-"}[rand.Intn(2)]
	mid := evalBinary(float64(a), op1, float64(b))
	if mid < 1 {
		op1 = "+"
		mid = float64(a + b)
	}
	c := 1 + rand.Intn(int(mid)+10)
	op2 := "-"
	if float64(c) > mid || rand.Intn(2) == 0 {
		op2 = "+"
	}
	return fmt.Sprintf("%v %v %v %v %v", a, op1, b, op2, c), evalBinary(mid, op2, float64(c))
}

// parenExpression returns "(a ± b) op c" with op in {*, /}.
func parenExpression() (string, float64) {
	a := 2 + rand.Intn(19)
	b := 1 + rand.Intn(a)
	op1 := [...]string{"+", "-"}[rand.Intn(2)]
	inner := evalBinary(float64(a), op1, float64(b))
	if inner < 1 {
		op1 = "+"
		inner = float64(a + b)
	}
	op2 := [...]string{"*", "/"}[rand.Intn(2)]
	c := 2 + rand.Intn(8)
	return fmt.Sprintf("(%v %v %v) %v %v", a, op1, b, op2, c), evalBinary(inner, op2, float64(c))
}

func evalBinary(a float64, op string, b float64) float64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	default:
		return round2(a / b)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
