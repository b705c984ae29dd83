package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

// ============================================================================
// AST node types
// ============================================================================

type nodeKind int

const (
	ndNumber    nodeKind = iota // numeric literal
	ndBool                      // true / false
	ndRef                       // item reference
	ndUnary                     // -x, +x, !x
	ndBinary                    // arithmetic and comparison
	ndAnd                       // a && b
	ndOr                        // a || b
	ndFunction                  // scalar function call
	ndAggregate                 // aggregate function call
	ndIsNull                    // isNull(ref) / isNotNull(ref)
)

type astNode struct {
	kind     nodeKind
	value    interface{} // literal, operator, function name or Reference
	children []*astNode
	// arg is the trimmed source text of an aggregate argument, the key into
	// the sample map.
	arg string
	// negate is set on ndIsNull nodes written as isNotNull.
	negate bool
}

// Tree is a parsed formula that can be evaluated repeatedly.
type Tree struct {
	source string
	root   *astNode
}

// Parse parses formula once for repeated evaluation.
func Parse(formula string) (*Tree, error) {
	tokens, err := tokenize(formula)
	if err != nil {
		return nil, fmt.Errorf("expression: tokenize: %w", err)
	}
	p := &parser{tokens: tokens, source: formula}
	root, err := p.parseExpression(0)
	if err != nil {
		return nil, fmt.Errorf("expression: parse: %w", err)
	}
	if tok := p.peek(); tok.kind != tkEOF {
		return nil, fmt.Errorf("expression: unexpected token %q at position %d", tok.value, tok.pos)
	}
	return &Tree{source: formula, root: root}, nil
}

// Source returns the formula text the tree was parsed from.
func (t *Tree) Source() string {
	return t.source
}

// ============================================================================
// Parser
// ============================================================================

type parser struct {
	tokens []token
	pos    int
	source string
}

func (p *parser) peek() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{kind: tkEOF, pos: len(p.source)}
}

func (p *parser) advance() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.advance()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s but got %q at position %d", what, t.value, t.pos)
	}
	return t, nil
}

// Operator precedence (lowest to highest):
//
//	|| or              (1)
//	&& and             (2)
//	== != < > <= >=    (3)
//	+ -                (4)
//	* / %              (5)
//	unary - + ! not    (6)
//	^ **               (7, right associative)
func (p *parser) parseExpression(minPrec int) (*astNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		prec, kind := infixInfo(tok)
		if prec < minPrec {
			break
		}
		p.advance()
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &astNode{kind: kind, value: tok.kind, children: []*astNode{left, right}}
	}
	return left, nil
}

func infixInfo(tok token) (int, nodeKind) {
	switch tok.kind {
	case tkOr:
		return 1, ndOr
	case tkAnd:
		return 2, ndAnd
	case tkEq, tkNe, tkLt, tkGt, tkLe, tkGe:
		return 3, ndBinary
	case tkPlus, tkMinus:
		return 4, ndBinary
	case tkStar, tkSlash, tkPercent:
		return 5, ndBinary
	}
	return -1, 0
}

func (p *parser) parseUnary() (*astNode, error) {
	switch tok := p.peek(); tok.kind {
	case tkMinus, tkPlus, tkNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &astNode{kind: ndUnary, value: tok.kind, children: []*astNode{operand}}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (*astNode, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkCaret {
		return base, nil
	}
	p.advance()
	// right associative, and the exponent may carry its own sign
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &astNode{kind: ndBinary, value: tkCaret, children: []*astNode{base, exp}}, nil
}

func (p *parser) parsePrimary() (*astNode, error) {
	tok := p.peek()

	switch tok.kind {
	case tkLParen:
		p.advance()
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case tkNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.value, tok.pos)
		}
		return &astNode{kind: ndNumber, value: f}, nil

	case tkRef:
		p.advance()
		return &astNode{kind: ndRef, value: tok.ref}, nil

	case tkIdent:
		p.advance()
		switch tok.value {
		case "true":
			return &astNode{kind: ndBool, value: true}, nil
		case "false":
			return &astNode{kind: ndBool, value: false}, nil
		}
		if p.peek().kind != tkLParen {
			return nil, fmt.Errorf("unknown name %q at position %d", tok.value, tok.pos)
		}
		return p.parseCall(tok)

	case tkEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.value, tok.pos)
	}
}

func (p *parser) parseCall(name token) (*astNode, error) {
	open := p.advance()
	upper := strings.ToUpper(name.value)

	switch {
	case upper == "ISNULL" || upper == "ISNOTNULL":
		arg := p.advance()
		if arg.kind != tkRef || !arg.ref.Kind.Dimensional() {
			return nil, fmt.Errorf("%s takes a single item reference at position %d", name.value, arg.pos)
		}
		if _, err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return &astNode{kind: ndIsNull, value: arg.ref, negate: upper == "ISNOTNULL"}, nil

	case isAggregateFunction(upper):
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		closing, err := p.expect(tkRParen, "')'")
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("%s needs an argument at position %d", upper, open.pos)
		}
		_, arg := splitAggregateArgument(p.source[open.pos+1 : closing.pos])
		return &astNode{kind: ndAggregate, value: upper, children: args, arg: strings.TrimSpace(arg)}, nil

	case isScalarFunction(upper):
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return &astNode{kind: ndFunction, value: upper, children: args}, nil
	}
	return nil, fmt.Errorf("unknown function %q at position %d", name.value, name.pos)
}

func (p *parser) parseArgList() ([]*astNode, error) {
	var args []*astNode
	if p.peek().kind == tkRParen {
		return args, nil
	}
	for {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != tkComma {
			break
		}
		p.advance()
	}
	return args, nil
}

func isAggregateFunction(upper string) bool {
	for _, n := range mathexpr.AggregateFunctions {
		if n == upper {
			return true
		}
	}
	return false
}

func isScalarFunction(upper string) bool {
	for _, n := range mathexpr.ScalarFunctions {
		if n == upper {
			return true
		}
	}
	return false
}
