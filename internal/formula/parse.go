package formula

import (
	"fmt"
	"strconv"
	"strings"
)

type node interface{}

type numNode struct{ value float32 }

type identNode struct {
	name string
	line int
}

type unaryNode struct {
	op string
	x  node
}

type binaryNode struct {
	op   string
	l, r node
}

type callNode struct {
	fn   string
	args []node
	line int
}

type statement struct {
	line   int
	decl   bool
	target string
	op     string
	expr   node
}

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

func (p *parser) expectOp(op string) error {
	t := p.next()
	if t.kind != tokOp || t.text != op {
		return fmt.Errorf("line %d: expected %q, found %s", t.line, op, t)
	}
	return nil
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

// parse reads a sequence of statements:
//
//	[const] float name = expr;
//	name (=|+=|-=|*=|/=) expr;
func parse(src string) ([]statement, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []statement
	for p.peek().kind != tokEOF {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) statement() (statement, error) {
	t := p.next()
	s := statement{line: t.line}
	if t.kind == tokIdent && t.text == "const" {
		t = p.next()
		if t.kind != tokIdent || t.text != "float" {
			return s, fmt.Errorf("line %d: expected \"float\" after \"const\", found %s", t.line, t)
		}
	}
	if t.kind == tokIdent && t.text == "float" {
		s.decl = true
		t = p.next()
	}
	if t.kind != tokIdent {
		return s, fmt.Errorf("line %d: expected assignment target, found %s", t.line, t)
	}
	s.target = t.text
	op := p.next()
	switch {
	case op.kind != tokOp:
		return s, fmt.Errorf("line %d: expected assignment operator, found %s", op.line, op)
	case s.decl && op.text != "=":
		return s, fmt.Errorf("line %d: declaration of %q needs \"=\"", op.line, s.target)
	case op.text != "=" && op.text != "+=" && op.text != "-=" && op.text != "*=" && op.text != "/=":
		return s, fmt.Errorf("line %d: expected assignment operator, found %s", op.line, op)
	}
	s.op = op.text
	expr, err := p.expr()
	if err != nil {
		return s, err
	}
	s.expr = expr
	if err := p.expectOp(";"); err != nil {
		return s, err
	}
	return s, nil
}

func (p *parser) expr() (node, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) term() (node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.next().text
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		text := strings.TrimRight(t.text, "fF")
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid number %q", t.line, t.text)
		}
		return numNode{value: float32(v)}, nil
	case t.kind == tokIdent:
		if !p.isOp("(") {
			return identNode{name: t.text, line: t.line}, nil
		}
		p.next()
		call := callNode{fn: t.text, line: t.line}
		if !p.isOp(")") {
			for {
				arg, err := p.expr()
				if err != nil {
					return nil, err
				}
				call.args = append(call.args, arg)
				if !p.isOp(",") {
					break
				}
				p.next()
			}
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return call, nil
	case t.kind == tokOp && t.text == "(":
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, fmt.Errorf("line %d: unexpected %s", t.line, t)
}
