package expr

import "fmt"

// Node is a parsed expression tree. The language has no loop or recursion
// construct, so evaluation terminates by construction.
type Node interface{ node() }

type literalNode struct{ value any }

type identNode struct{ name string }

type unaryNode struct {
	op      string
	operand Node
}

type binaryNode struct {
	op          string
	left, right Node
}

type ternaryNode struct {
	cond, then, otherwise Node
}

type memberNode struct {
	object Node
	name   string
}

type indexNode struct {
	object Node
	index  Node
}

type callNode struct {
	name string
	args []Node
}

type arrayNode struct{ elems []Node }

type objectNode struct {
	keys   []string
	values []Node
}

func (literalNode) node() {}
func (identNode) node()   {}
func (unaryNode) node()   {}
func (binaryNode) node()  {}
func (ternaryNode) node() {}
func (memberNode) node()  {}
func (indexNode) node()   {}
func (callNode) node()    {}
func (arrayNode) node()   {}
func (objectNode) node()  {}

type parser struct {
	tokens []token
	pos    int
}

// Parse compiles the source into an expression tree.
func Parse(src string) (Node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.peek().text, p.peek().pos)
	}

	return node, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}

	return tok
}

func (p *parser) accept(kind tokenKind, text string) bool {
	if p.peek().kind == kind && p.peek().text == text {
		p.next()

		return true
	}

	return false
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.accept(kind, text) {
		return fmt.Errorf("expected %q at position %d, got %q", text, p.peek().pos, p.peek().text)
	}

	return nil
}

// parseExpr := or ('?' expr ':' expr)?
func (p *parser) parseExpr() (Node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.accept(tokPunct, "?") {
		return cond, nil
	}

	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if err := p.expect(tokPunct, ":"); err != nil {
		return nil, err
	}

	otherwise, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	return ternaryNode{cond, then, otherwise}, nil
}

func (p *parser) parseOr() (Node, error) {
	return p.parseBinary([]string{"||"}, p.parseAnd)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseBinary([]string{"&&"}, p.parseEquality)
}

func (p *parser) parseEquality() (Node, error) {
	return p.parseBinary([]string{"==", "!="}, p.parseComparison)
}

func (p *parser) parseComparison() (Node, error) {
	return p.parseBinary([]string{"<", "<=", ">", ">="}, p.parseAdditive)
}

func (p *parser) parseAdditive() (Node, error) {
	return p.parseBinary([]string{"+", "-"}, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() (Node, error) {
	return p.parseBinary([]string{"*", "/", "%"}, p.parseUnary)
}

func (p *parser) parseBinary(ops []string, next func() (Node, error)) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for {
		matched := ""

		for _, op := range ops {
			if p.peek().kind == tokOperator && p.peek().text == op {
				matched = op

				break
			}
		}

		if matched == "" {
			return left, nil
		}

		p.next()

		right, err := next()
		if err != nil {
			return nil, err
		}

		left = binaryNode{matched, left, right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokOperator && (p.peek().text == "-" || p.peek().text == "!") {
		op := p.next().text

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return unaryNode{op, operand}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles member access, indexing and calls on a primary.
func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.accept(tokPunct, "."):
			tok := p.next()
			if tok.kind != tokIdent {
				return nil, fmt.Errorf("expected identifier after '.' at position %d", tok.pos)
			}

			node = memberNode{node, tok.text}

		case p.accept(tokPunct, "["):
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			if err := p.expect(tokPunct, "]"); err != nil {
				return nil, err
			}

			node = indexNode{node, idx}

		case p.peek().kind == tokPunct && p.peek().text == "(":
			ident, ok := node.(identNode)
			if !ok {
				return nil, fmt.Errorf("only named functions can be called, at position %d", p.peek().pos)
			}

			p.next()

			var args []Node

			if !p.accept(tokPunct, ")") {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}

					args = append(args, arg)

					if p.accept(tokPunct, ")") {
						break
					}

					if err := p.expect(tokPunct, ","); err != nil {
						return nil, err
					}
				}
			}

			node = callNode{ident.name, args}

		default:
			return node, nil
		}
	}
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()

	switch {
	case tok.kind == tokNumber:
		p.next()

		return literalNode{parseNumber(tok.text)}, nil

	case tok.kind == tokString:
		p.next()

		return literalNode{tok.text}, nil

	case tok.kind == tokIdent:
		p.next()

		switch tok.text {
		case "true":
			return literalNode{true}, nil
		case "false":
			return literalNode{false}, nil
		case "null":
			return literalNode{nil}, nil
		}

		return identNode{tok.text}, nil

	case tok.kind == tokPunct && tok.text == "(":
		p.next()

		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}

		return inner, nil

	case tok.kind == tokPunct && tok.text == "[":
		p.next()

		var elems []Node

		if !p.accept(tokPunct, "]") {
			for {
				elem, err := p.parseExpr()
				if err != nil {
					return nil, err
				}

				elems = append(elems, elem)

				if p.accept(tokPunct, "]") {
					break
				}

				if err := p.expect(tokPunct, ","); err != nil {
					return nil, err
				}
			}
		}

		return arrayNode{elems}, nil

	case tok.kind == tokPunct && tok.text == "{":
		p.next()

		var (
			keys   []string
			values []Node
		)

		if !p.accept(tokPunct, "}") {
			for {
				keyTok := p.next()
				if keyTok.kind != tokIdent && keyTok.kind != tokString {
					return nil, fmt.Errorf("expected object key at position %d", keyTok.pos)
				}

				if err := p.expect(tokPunct, ":"); err != nil {
					return nil, err
				}

				value, err := p.parseExpr()
				if err != nil {
					return nil, err
				}

				keys = append(keys, keyTok.text)
				values = append(values, value)

				if p.accept(tokPunct, "}") {
					break
				}

				if err := p.expect(tokPunct, ","); err != nil {
					return nil, err
				}
			}
		}

		return objectNode{keys, values}, nil
	}

	return nil, fmt.Errorf("unexpected token %q at position %d", tok.text, tok.pos)
}
