package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// undefined marks a failed lookup. It is falsy and incomparable.
type undefined struct{}

// Expr is a parsed condition, reusable across evaluations.
type Expr struct {
	root node
}

// Parse compiles source into an Expr. Parse errors are construction-time
// failures; a successfully parsed expression never errors at evaluation.
func Parse(source string) (*Expr, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, fmt.Errorf("unexpected token %q in condition", p.peek().text)
	}
	return &Expr{root: root}, nil
}

// Eval evaluates the expression against env and reports its truthiness.
func (e *Expr) Eval(env map[string]interface{}) bool {
	return truthy(e.root.eval(env))
}

// Evaluate is the one-shot form: parse source and evaluate it against env.
func Evaluate(source string, env map[string]interface{}) (bool, error) {
	expr, err := Parse(source)
	if err != nil {
		return false, err
	}
	return expr.Eval(env), nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case undefined:
		return false
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		// Non-empty maps/slices and other values count as true.
		return true
	}
}

// ---- AST ----

type node interface {
	eval(env map[string]interface{}) interface{}
}

type literalNode struct{ value interface{} }

func (n literalNode) eval(map[string]interface{}) interface{} { return n.value }

type lookupNode struct {
	root string
	path []string
}

func (n lookupNode) eval(env map[string]interface{}) interface{} {
	cur, ok := env[n.root]
	if !ok {
		return undefined{}
	}
	for _, key := range n.path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return undefined{}
		}
		cur, ok = m[key]
		if !ok {
			return undefined{}
		}
	}
	return cur
}

type notNode struct{ inner node }

func (n notNode) eval(env map[string]interface{}) interface{} {
	return !truthy(n.inner.eval(env))
}

type boolNode struct {
	op          string // "&&" or "||"
	left, right node
}

func (n boolNode) eval(env map[string]interface{}) interface{} {
	l := truthy(n.left.eval(env))
	if n.op == "&&" {
		return l && truthy(n.right.eval(env))
	}
	return l || truthy(n.right.eval(env))
}

type cmpNode struct {
	op          string
	left, right node
}

func (n cmpNode) eval(env map[string]interface{}) interface{} {
	return compare(n.op, n.left.eval(env), n.right.eval(env))
}

// compare applies op to two values. Any comparison touching an undefined
// value is false, including != : a missing lookup must never enable a node.
func compare(op string, l, r interface{}) bool {
	if _, ok := l.(undefined); ok {
		return false
	}
	if _, ok := r.(undefined); ok {
		return false
	}

	lf, lnum := asNumber(l)
	rf, rnum := asNumber(r)
	if lnum && rnum {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}

	ls, lstr := l.(string)
	rs, rstr := r.(string)
	if lstr && rstr {
		switch op {
		case "==":
			return ls == rs
		case "!=":
			return ls != rs
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
	}

	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	}
	// Ordering across mismatched types is false, not an error.
	return false
}

func asNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	default:
		return 0, false
	}
}

// ---- lexer ----

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp    // == != < <= > >= && || !
	tokPunct // ( ) [ ] .
)

type token struct {
	kind tokenKind
	text string
}

func lex(source string) ([]token, error) {
	var toks []token
	runes := []rune(source)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')' || c == '[' || c == ']' || c == '.':
			toks = append(toks, token{tokPunct, string(c)})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(runes) || runes[i+1] != c {
				return nil, fmt.Errorf("invalid operator %q in condition", string(c))
			}
			toks = append(toks, token{tokOp, string(c) + string(c)})
			i += 2
		case c == '=' || c == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{tokOp, string(c) + "="})
				i += 2
			} else if c == '!' {
				toks = append(toks, token{tokOp, "!"})
				i++
			} else {
				return nil, fmt.Errorf("invalid operator %q in condition (expected ==)", string(c))
			}
		case c == '<' || c == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{tokOp, string(c) + "="})
				i += 2
			} else {
				toks = append(toks, token{tokOp, string(c)})
				i++
			}
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string in condition")
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case unicode.IsDigit(c) || (c == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '-') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in condition", string(c))
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

// ---- parser ----

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool { return p.peek().kind == tokEOF }

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = boolNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = boolNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOp("!"); ok {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return cmpNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseTerm() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in condition", t.text)
		}
		return literalNode{value: f}, nil
	case tokString:
		p.next()
		return literalNode{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			p.next()
			return literalNode{value: true}, nil
		case "false":
			p.next()
			return literalNode{value: false}, nil
		case "nil", "null":
			p.next()
			return literalNode{value: nil}, nil
		}
		return p.parseLookup()
	case tokPunct:
		if t.text == "(" {
			p.next()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if tok := p.next(); tok.kind != tokPunct || tok.text != ")" {
				return nil, fmt.Errorf("missing closing parenthesis in condition")
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %q in condition", t.text)
}

func (p *parser) parseLookup() (node, error) {
	root := p.next() // ident
	n := lookupNode{root: root.text}
	for {
		t := p.peek()
		if t.kind != tokPunct {
			return n, nil
		}
		switch t.text {
		case ".":
			p.next()
			key := p.next()
			if key.kind != tokIdent {
				return nil, fmt.Errorf("expected field name after '.' in condition")
			}
			n.path = append(n.path, key.text)
		case "[":
			p.next()
			key := p.next()
			if key.kind != tokString && key.kind != tokIdent {
				return nil, fmt.Errorf("expected key inside '[]' in condition")
			}
			if closing := p.next(); closing.kind != tokPunct || closing.text != "]" {
				return nil, fmt.Errorf("missing ']' in condition")
			}
			n.path = append(n.path, key.text)
		default:
			return n, nil
		}
	}
}
