package definition

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const eof = -1

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenError
	tokenName
	tokenString
	tokenNumber
	tokenPunct
)

type token struct {
	typ   tokenType
	value string
	line  int
}

func (t token) String() string {
	switch t.typ {
	case tokenEOF:
		return "end of input"
	case tokenString:
		return fmt.Sprintf("string %q", t.value)
	case tokenError:
		return t.value
	}
	return fmt.Sprintf("%q", t.value)
}

// lexer splits a mongo shell script into tokens. It understands the subset
// of JavaScript used by definition scripts: names (which may start with $),
// single or double quoted strings, numbers, punctuation and comments.
type lexer struct {
	input   string
	start   int
	current int
	width   int
	line    int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1}
}

func (l *lexer) next() token {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{typ: tokenError, value: err.Error(), line: l.line}
	}
	l.start = l.current
	ch := l.nextRune()
	switch {
	case ch == eof:
		return token{typ: tokenEOF, line: l.line}
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	case ch >= '0' && ch <= '9', ch == '-' || ch == '.' && isDigit(l.peek()):
		l.backup()
		return l.scanNumber()
	case strings.ContainsRune("{}[](),:;.", ch):
		return l.emit(tokenPunct)
	case isNameStart(ch):
		for isNamePart(l.peek()) {
			l.nextRune()
		}
		return l.emit(tokenName)
	}
	return token{typ: tokenError, value: fmt.Sprintf("unexpected character %q", ch), line: l.line}
}

func (l *lexer) emit(t tokenType) token {
	return token{typ: t, value: l.input[l.start:l.current], line: l.line}
}

func (l *lexer) nextRune() rune {
	if l.current >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *lexer) backup() {
	l.current -= l.width
	if l.width == 1 && l.input[l.current] == '\n' {
		l.line--
	}
}

func (l *lexer) peek() rune {
	r := l.nextRune()
	if r != eof {
		l.backup()
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for {
		ch := l.nextRune()
		switch {
		case ch == eof:
			return nil
		case unicode.IsSpace(ch):
			continue
		case ch == '/' && l.peek() == '/':
			for ch != '\n' && ch != eof {
				ch = l.nextRune()
			}
		case ch == '/' && l.peek() == '*':
			l.nextRune()
			line := l.line
			for {
				ch = l.nextRune()
				if ch == eof {
					return fmt.Errorf("comment starting on line %d not closed", line)
				}
				if ch == '*' && l.peek() == '/' {
					l.nextRune()
					break
				}
			}
		default:
			l.backup()
			return nil
		}
	}
}

func (l *lexer) scanString(quote rune) token {
	var b strings.Builder
	line := l.line
	for {
		ch := l.nextRune()
		switch ch {
		case eof, '\n':
			return token{typ: tokenError, value: "string not terminated", line: line}
		case quote:
			return token{typ: tokenString, value: b.String(), line: line}
		case '\\':
			esc := l.nextRune()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case eof:
				return token{typ: tokenError, value: "string not terminated", line: line}
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(ch)
		}
	}
}

func (l *lexer) scanNumber() token {
	if l.peek() == '-' {
		l.nextRune()
	}
	digits := 0
	for isDigit(l.peek()) {
		l.nextRune()
		digits++
	}
	if l.peek() == '.' {
		l.nextRune()
		for isDigit(l.peek()) {
			l.nextRune()
			digits++
		}
	}
	if digits == 0 {
		return token{typ: tokenError, value: fmt.Sprintf("malformed number %q", l.input[l.start:l.current]), line: l.line}
	}
	if p := l.peek(); p == 'e' || p == 'E' {
		l.nextRune()
		if p := l.peek(); p == '+' || p == '-' {
			l.nextRune()
		}
		for isDigit(l.peek()) {
			l.nextRune()
		}
	}
	return l.emit(tokenNumber)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isNameStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r)
}
