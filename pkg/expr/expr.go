// Package expr implements the restricted boolean expression language used by
// conditional edges and condition nodes. The interpreter accepts comparisons
// and boolean combinators over context references and literals; it never
// executes arbitrary code.
//
// Grammar, lowest precedence first:
//
//	expr       := or
//	or         := and  ( ("||" | "or")  and )*
//	and        := unary ( ("&&" | "and") unary )*
//	unary      := ("!" | "not") unary | comparison
//	comparison := operand ( ("==" | "!=" | "<" | "<=" | ">" | ">=") operand )?
//	operand    := number | string | true | false | null | reference | "(" expr ")"
//
// References resolve against the execution context document: paths rooted at
// variables, trigger, nodes, metadata, execution_id, workflow_id or wave walk
// the document; bare names are looked up inside variables. Missing paths
// resolve to null.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression is a parsed condition, reusable across evaluations.
type Expression struct {
	source string
	root   exprNode
}

// Parse compiles the expression. A blank expression is valid and always
// evaluates to true (unconditional edge).
func Parse(input string) (*Expression, error) {
	if strings.TrimSpace(input) == "" {
		return &Expression{source: input}, nil
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}

	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}

	return &Expression{source: input, root: root}, nil
}

// Evaluate interprets the expression against the context document and coerces
// the result to a boolean by truthiness.
func (e *Expression) Evaluate(doc map[string]any) (bool, error) {
	if e.root == nil {
		return true, nil
	}

	value, err := e.root.eval(doc)
	if err != nil {
		return false, err
	}

	return Truthy(value), nil
}

// String returns the original expression source.
func (e *Expression) String() string {
	return e.source
}

// Evaluate parses and evaluates input in one step.
func Evaluate(input string, doc map[string]any) (bool, error) {
	parsed, err := Parse(input)
	if err != nil {
		return false, err
	}

	return parsed.Evaluate(doc)
}

// Truthy coerces a context value to a boolean: booleans as-is, numbers
// compare against zero, strings are true unless empty or a spelled-out false,
// maps and slices are true when non-empty, null is false.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "False" && v != "FALSE" && v != "0"
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		if f, ok := toFloat(value); ok {
			return f != 0
		}

		return true
	}
}

type exprNode interface {
	eval(doc map[string]any) (any, error)
}

type literalNode struct {
	value any
}

func (n *literalNode) eval(map[string]any) (any, error) {
	return n.value, nil
}

type referenceNode struct {
	path []string
}

// Document keys treated as reference roots; anything else resolves inside
// variables.
var rootKeys = map[string]bool{
	"execution_id": true,
	"workflow_id":  true,
	"trigger":      true,
	"variables":    true,
	"vars":         true,
	"nodes":        true,
	"metadata":     true,
	"wave":         true,
}

func (n *referenceNode) eval(doc map[string]any) (any, error) {
	if rootKeys[n.path[0]] {
		return walk(doc, n.path), nil
	}

	variables, _ := doc["variables"].(map[string]any)

	return walk(variables, n.path), nil
}

func walk(value any, path []string) any {
	current := value
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current = m[segment]
	}

	return current
}

type unaryNode struct {
	operand exprNode
}

func (n *unaryNode) eval(doc map[string]any) (any, error) {
	value, err := n.operand.eval(doc)
	if err != nil {
		return nil, err
	}

	return !Truthy(value), nil
}

type binaryNode struct {
	op    string
	left  exprNode
	right exprNode
}

func (n *binaryNode) eval(doc map[string]any) (any, error) {
	left, err := n.left.eval(doc)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "&&":
		if !Truthy(left) {
			return false, nil
		}

		right, err := n.right.eval(doc)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	case "||":
		if Truthy(left) {
			return true, nil
		}

		right, err := n.right.eval(doc)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	}

	right, err := n.right.eval(doc)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equals(left, right), nil
	case "!=":
		return !equals(left, right), nil
	default:
		return order(n.op, left, right)
	}
}

func equals(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			return lf == rf
		}

		return false
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)

		return ok && l == r
	case bool:
		r, ok := right.(bool)

		return ok && l == r
	default:
		return false
	}
}

func order(op string, left, right any) (any, error) {
	if lf, lok := toFloat(left); lok {
		rf, rok := toFloat(right)
		if !rok {
			return nil, fmt.Errorf("cannot compare number with %T", right)
		}

		return orderFloats(op, lf, rf), nil
	}

	ls, lok := left.(string)
	rs, rok := right.(string)

	if lok && rok {
		return orderStrings(op, ls, rs), nil
	}

	return nil, fmt.Errorf("cannot order %T and %T with %q", left, right, op)
}

func orderFloats(op string, left, right float64) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	default:
		return left >= right
	}
}

func orderStrings(op string, left, right string) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	default:
		return left >= right
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	p.pos++

	return tok
}

func (p *parser) matchOperator(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokenOperator && tok.kind != tokenIdent {
		return "", false
	}

	for _, op := range ops {
		if tok.text == op {
			p.next()

			return op, true
		}
	}

	return "", false
}

func (p *parser) parseExpression() (exprNode, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.matchOperator("||", "or"); !ok {
			return left, nil
		}

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.matchOperator("&&", "and"); !ok {
			return left, nil
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	if _, ok := p.matchOperator("!", "not"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &unaryNode{operand: operand}, nil
	}

	return p.parseComparison()
}

func (p *parser) parseComparison() (exprNode, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, ok := p.matchOperator("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseOperand() (exprNode, error) {
	tok := p.peek()

	switch tok.kind {
	case tokenNumber:
		p.next()

		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.text, tok.pos)
		}

		return &literalNode{value: value}, nil
	case tokenString:
		p.next()

		return &literalNode{value: tok.text}, nil
	case tokenIdent:
		p.next()

		switch tok.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		default:
			return &referenceNode{path: strings.Split(tok.text, ".")}, nil
		}
	case tokenLeftParen:
		p.next()

		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if p.peek().kind != tokenRightParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.peek().pos)
		}

		p.next()

		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
}
