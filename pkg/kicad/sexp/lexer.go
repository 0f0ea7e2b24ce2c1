package sexp

import (
	"bufio"
	"io"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLeftParen
	tokenRightParen
	tokenSymbol
	tokenString
)

type token struct {
	typ       tokenType
	value     string
	line, col int
}

// lexer tokenizes S-expressions from an io.Reader, tracking 1-based
// line and column positions for error reporting.
type lexer struct {
	reader    *bufio.Reader
	peeked    *rune
	line, col int
}

func newLexer(r io.Reader) *lexer {
	return &lexer{
		reader: bufio.NewReader(r),
		line:   1,
		col:    0,
	}
}

func (l *lexer) next() (token, error) {
	// Skip whitespace and comments (# to end of line)
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return l.tok(tokenEOF, ""), nil
			}
			return token{}, err
		}

		if unicode.IsSpace(ch) {
			l.read()
			continue
		}

		if ch == '#' {
			for {
				c, err := l.read()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}

		break
	}

	ch, err := l.peek()
	if err != nil {
		if err == io.EOF {
			return l.tok(tokenEOF, ""), nil
		}
		return token{}, err
	}

	switch ch {
	case '(':
		t := l.tok(tokenLeftParen, "(")
		t.col++
		l.read()
		return t, nil

	case ')':
		t := l.tok(tokenRightParen, ")")
		t.col++
		l.read()
		return t, nil

	case '"':
		return l.readString()

	default:
		return l.readSymbol()
	}
}

// tok stamps a token with the current position.
func (l *lexer) tok(typ tokenType, value string) token {
	return token{typ: typ, value: value, line: l.line, col: l.col}
}

func (l *lexer) peek() (rune, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}

	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return 0, err
	}

	l.peeked = &ch
	return ch, nil
}

func (l *lexer) read() (rune, error) {
	var ch rune
	var err error
	if l.peeked != nil {
		ch = *l.peeked
		l.peeked = nil
	} else {
		ch, _, err = l.reader.ReadRune()
		if err != nil {
			return ch, err
		}
	}

	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, nil
}

// readString reads a quoted string, decoding backslash escapes.
func (l *lexer) readString() (token, error) {
	start := l.tok(tokenString, "")
	start.col++
	l.read() // opening quote

	var result []rune
	for {
		ch, err := l.read()
		if err != nil {
			if err == io.EOF {
				return token{}, &ParseError{Line: start.line, Col: start.col, Msg: "unterminated string"}
			}
			return token{}, err
		}

		if ch == '"' {
			break
		}

		if ch == '\\' {
			next, err := l.read()
			if err != nil {
				return token{}, &ParseError{Line: start.line, Col: start.col, Msg: "unterminated string escape"}
			}
			switch next {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\':
				result = append(result, '\\')
			case '"':
				result = append(result, '"')
			default:
				// Unknown escape, keep the character as-is
				result = append(result, next)
			}
			continue
		}

		result = append(result, ch)
	}

	start.value = string(result)
	return start, nil
}

// readSymbol reads an unquoted token (identifier, number, uuid).
func (l *lexer) readSymbol() (token, error) {
	start := l.tok(tokenSymbol, "")
	start.col++

	var result []rune
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return token{}, err
		}

		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			break
		}

		l.read()
		result = append(result, ch)
	}

	start.value = string(result)
	return start, nil
}
