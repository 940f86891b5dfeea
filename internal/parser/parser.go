package parser

import (
	"fmt"
	"splan/internal/ast"
	"splan/internal/lexer"
	"strconv"
	"strings"
)

type ErrorKind string

const (
	UnexpectedEOF        ErrorKind = "UNEXPECTED_EOF"
	UnexpectedCloseParen ErrorKind = "UNEXPECTED_CLOSE_PAREN"
	TrailingTokens       ErrorKind = "TRAILING_TOKENS"
	EmptyInput           ErrorKind = "EMPTY_INPUT"
)

// ParseError is fatal to the whole call. It is raised before any evaluation
// scope exists, so programs can never catch it with a handle form.
type ParseError struct {
	Kind    ErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Message)
}

func newParseError(kind ErrorKind, format string, a ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Parse reads exactly one expression from text. The grammar has no notion of
// multiple top-level forms per call; leftover tokens are an error.
func Parse(text string) (ast.Expression, error) {
	tokens := lexer.Tokenize(text)
	if len(tokens) == 0 {
		return nil, newParseError(EmptyInput, "empty expression")
	}

	p := &parser{tokens: tokens}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, newParseError(TrailingTokens,
			"unexpected tokens after expression: %s", strings.Join(p.tokens[p.pos:], " "))
	}
	return expr, nil
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) next() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, true
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseExpression() (ast.Expression, error) {
	tok, ok := p.next()
	if !ok {
		return nil, newParseError(UnexpectedEOF, "unexpected EOF while reading")
	}

	switch tok {
	case "(":
		list := &ast.List{}
		for {
			next, ok := p.peek()
			if !ok {
				return nil, newParseError(UnexpectedEOF, "expected ) before end of input")
			}
			if next == ")" {
				p.pos++
				return list, nil
			}
			sub, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, sub)
		}
	case ")":
		return nil, newParseError(UnexpectedCloseParen, "unexpected )")
	default:
		return parseAtom(tok), nil
	}
}

// Coercion order: integer literal first, then float, otherwise the token is a
// string (quoted literal with the quotes stripped, or a bare symbol).
func parseAtom(tok string) *ast.Atom {
	if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2 {
		body := tok[1 : len(tok)-1]
		return ast.NewString(strings.ReplaceAll(body, `\"`, `"`), true)
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return ast.NewInteger(i)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return ast.NewFloat(f)
	}
	return ast.NewString(tok, false)
}
