package sexp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseError reports a malformed document with its source location.
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse reads a document from r and returns its single root list.
// Malformed input yields a *ParseError; a partial tree is never
// returned.
func Parse(r io.Reader) (*List, error) {
	p := &parser{lexer: newLexer(r)}

	tok, err := p.lexer.next()
	if err != nil {
		return nil, err
	}
	p.current = tok

	if p.current.typ == tokenEOF {
		return nil, &ParseError{Line: 1, Col: 1, Msg: "empty document"}
	}
	if p.current.typ != tokenLeftParen {
		return nil, p.errf("expected '(' at top level, got %q", p.current.value)
	}

	root, err := p.parseList()
	if err != nil {
		return nil, err
	}

	tok, err = p.lexer.next()
	if err != nil {
		return nil, err
	}
	if tok.typ != tokenEOF {
		return nil, &ParseError{Line: tok.line, Col: tok.col, Msg: "trailing content after document root"}
	}

	return root, nil
}

// ParseBytes parses a document held in memory.
func ParseBytes(data []byte) (*List, error) {
	return Parse(bytes.NewReader(data))
}

// ParseString parses a document from a string.
func ParseString(s string) (*List, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

type parser struct {
	lexer   *lexer
	current token
}

func (p *parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.current.line, Col: p.current.col, Msg: fmt.Sprintf(format, args...)}
}

// parseList parses a list; current must be the opening paren.
func (p *parser) parseList() (*List, error) {
	list := &List{Line: p.current.line, Col: p.current.col}

	for {
		tok, err := p.lexer.next()
		if err != nil {
			return nil, err
		}
		p.current = tok

		switch tok.typ {
		case tokenRightParen:
			return list, nil

		case tokenEOF:
			return nil, &ParseError{Line: list.Line, Col: list.Col, Msg: "unclosed '('"}

		case tokenLeftParen:
			sub, err := p.parseList()
			if err != nil {
				return nil, err
			}
			list.Children = append(list.Children, sub)

		case tokenSymbol:
			list.Children = append(list.Children, &Atom{Raw: tok.value, Line: tok.line, Col: tok.col})

		case tokenString:
			list.Children = append(list.Children, &Atom{Raw: tok.value, Quoted: true, Line: tok.line, Col: tok.col})

		default:
			return nil, p.errf("unexpected token %q", tok.value)
		}
	}
}
