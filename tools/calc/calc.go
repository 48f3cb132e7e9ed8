// Package calc provides the arithmetic tool. Expressions are parsed
// and evaluated in-process by a small recursive-descent parser; no
// interpreter or subprocess is involved, so arbitrary input is safe to
// evaluate.
package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	luna "github.com/lunasparkai/luna"
)

// Name is the registry name of the arithmetic tool.
const Name = "calculate_math"

var spec = luna.ToolDefinition{
	Name:        Name,
	Description: "Evaluate an arithmetic expression. Supports +, -, *, /, %, ^ (power), parentheses, and unary minus.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"expression": {
				"type": "string",
				"description": "The arithmetic expression to evaluate, e.g. \"2 * (3 + 4)\""
			}
		},
		"required": ["expression"]
	}`),
}

// Tool evaluates arithmetic expressions.
type Tool struct{}

// New creates the arithmetic tool.
func New() *Tool { return &Tool{} }

// Spec returns the function-calling definition.
func (t *Tool) Spec() luna.ToolDefinition { return spec }

// Execute parses args, evaluates the expression, and returns the
// result formatted without trailing zeros.
func (t *Tool) Execute(_ context.Context, args json.RawMessage) (luna.ToolResult, error) {
	var in struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(in.Expression) == "" {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: expression is required")
	}

	value, err := Eval(in.Expression)
	if err != nil {
		return luna.ToolResult{}, err
	}
	return luna.ToolResult{
		Content: in.Expression + " = " + strconv.FormatFloat(value, 'f', -1, 64),
	}, nil
}

// Eval evaluates an arithmetic expression. Grammar, lowest binding
// first:
//
//	expr   = term   { ("+" | "-") term }
//	term   = unary  { ("*" | "/" | "%") unary }
//	unary  = [ "-" ] power
//	power  = atom   [ "^" unary ]        (right-associative)
//	atom   = number | "(" expr ")"
func Eval(input string) (float64, error) {
	p := &parser{input: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("invalid expression: unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid expression: result is not a finite number")
	}
	return v, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("invalid expression: division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("invalid expression: division by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		// Right-associative: 2^3^2 = 2^(3^2).
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("invalid expression: missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if unicode.IsDigit(rune(c)) || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("invalid expression: unexpected end of input")
		}
		return 0, fmt.Errorf("invalid expression: unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: bad number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}
