package sql

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent       tokenKind = iota // bare word: identifier or keyword
	tokQuotedIdent                  // "x", `x` or [x]
	tokString                       // '...', E'...', N'...', $$...$$
	tokNumber
	tokParam // $1, ?, :name, @name
	tokPunct // ( ) , . ; [ ]
	tokOp    // operators, including * and ::
)

type token struct {
	kind  tokenKind
	text  string // identifiers are unquoted; strings keep their body only
	upper string // upper-cased text for bare words
	pos   int    // byte offset in the input
}

func (t token) isKeyword(kw string) bool {
	return t.kind == tokIdent && t.upper == kw
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) isOp(op string) bool {
	return t.kind == tokOp && t.text == op
}

// isName reports whether t can name a column, table or alias.
func (t token) isName() bool {
	return t.kind == tokQuotedIdent || (t.kind == tokIdent && !reserved[t.upper])
}

// name returns the identifier in the case used for lookups.
func (t token) name() string {
	return strings.ToLower(t.text)
}

// syntaxError is an unrecoverable tokenization failure.
type syntaxError struct {
	msg string
	pos int
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.pos, e.msg)
}

const opChars = "<>=!|~+-*/%&^#@"

// tokenize splits a statement into tokens, dropping whitespace and comments.
func tokenize(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	n := len(runes)
	// byte offsets for error positions
	offsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[n] = off

	prevSignificant := func() *token {
		if len(toks) == 0 {
			return nil
		}
		return &toks[len(toks)-1]
	}

	i := 0
	for i < n {
		c := runes[i]
		start := i

		switch {
		case unicode.IsSpace(c):
			i++

		case c == '-' && i+1 < n && runes[i+1] == '-':
			for i < n && runes[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && runes[i+1] == '*':
			end := indexRunes(runes, i+2, "*/")
			if end < 0 {
				return nil, &syntaxError{msg: "unterminated block comment", pos: offsets[start]}
			}
			i = end + 2

		case c == '\'':
			body, next, ok := scanQuoted(runes, i, '\'', true)
			if !ok {
				return nil, &syntaxError{msg: "unterminated string literal", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokString, text: body, pos: offsets[start]})
			i = next

		case (c == 'E' || c == 'e' || c == 'N' || c == 'n' || c == 'X' || c == 'x' || c == 'B' || c == 'b') &&
			i+1 < n && runes[i+1] == '\'':
			body, next, ok := scanQuoted(runes, i+1, '\'', true)
			if !ok {
				return nil, &syntaxError{msg: "unterminated string literal", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokString, text: body, pos: offsets[start]})
			i = next

		case c == '"':
			body, next, ok := scanQuoted(runes, i, '"', false)
			if !ok {
				return nil, &syntaxError{msg: "unterminated quoted identifier", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: body, pos: offsets[start]})
			i = next

		case c == '`':
			body, next, ok := scanQuoted(runes, i, '`', false)
			if !ok {
				return nil, &syntaxError{msg: "unterminated quoted identifier", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: body, pos: offsets[start]})
			i = next

		case c == '[' && bracketIsIdentifier(prevSignificant()):
			end := indexRunes(runes, i+1, "]")
			if end < 0 {
				return nil, &syntaxError{msg: "unterminated bracketed identifier", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: string(runes[i+1 : end]), pos: offsets[start]})
			i = end + 1

		case c == '$' && i+1 < n && unicode.IsDigit(runes[i+1]):
			i++
			for i < n && unicode.IsDigit(runes[i]) {
				i++
			}
			toks = append(toks, token{kind: tokParam, text: string(runes[start:i]), pos: offsets[start]})

		case c == '$':
			// Dollar-quoted string: $tag$ ... $tag$
			j := i + 1
			for j < n && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			if j >= n || runes[j] != '$' {
				return nil, &syntaxError{msg: "unexpected character '$'", pos: offsets[start]}
			}
			tag := string(runes[i : j+1])
			end := indexRunes(runes, j+1, tag)
			if end < 0 {
				return nil, &syntaxError{msg: "unterminated dollar-quoted string", pos: offsets[start]}
			}
			toks = append(toks, token{kind: tokString, text: string(runes[j+1 : end]), pos: offsets[start]})
			i = end + len([]rune(tag))

		case unicode.IsLetter(c) || c == '_':
			for i < n && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '$') {
				i++
			}
			word := string(runes[start:i])
			toks = append(toks, token{kind: tokIdent, text: word, upper: strings.ToUpper(word), pos: offsets[start]})

		case unicode.IsDigit(c) || (c == '.' && i+1 < n && unicode.IsDigit(runes[i+1])):
			i = scanNumber(runes, i)
			toks = append(toks, token{kind: tokNumber, text: string(runes[start:i]), pos: offsets[start]})

		case c == '?':
			i++
			toks = append(toks, token{kind: tokParam, text: "?", pos: offsets[start]})

		case c == ':' && i+1 < n && runes[i+1] == ':':
			i += 2
			toks = append(toks, token{kind: tokOp, text: "::", pos: offsets[start]})

		case (c == ':' || c == '@') && i+1 < n && (unicode.IsLetter(runes[i+1]) || runes[i+1] == '_'):
			i++
			for i < n && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokParam, text: string(runes[start:i]), pos: offsets[start]})

		case strings.ContainsRune("(),.;[]", c):
			i++
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: offsets[start]})

		case c == '*':
			// A lone star is kept separate so "COUNT(*)" and "t.*" are easy to spot.
			i++
			toks = append(toks, token{kind: tokOp, text: "*", pos: offsets[start]})

		case strings.ContainsRune(opChars, c) || c == ':':
			for i < n && (strings.ContainsRune(opChars, runes[i]) || runes[i] == ':') && runes[i] != '*' {
				if runes[i] == '-' && i+1 < n && runes[i+1] == '-' && i > start {
					break
				}
				i++
			}
			toks = append(toks, token{kind: tokOp, text: string(runes[start:i]), pos: offsets[start]})

		default:
			return nil, &syntaxError{msg: fmt.Sprintf("unexpected character %q", c), pos: offsets[start]}
		}
	}

	return toks, nil
}

// scanQuoted reads a quoted run starting at runes[i] == quote. A doubled
// quote is an escaped quote; backslash escapes apply to string literals.
func scanQuoted(runes []rune, i int, quote rune, backslash bool) (string, int, bool) {
	var b strings.Builder
	i++
	for i < len(runes) {
		c := runes[i]
		switch {
		case backslash && c == '\\' && i+1 < len(runes):
			b.WriteRune(c)
			b.WriteRune(runes[i+1])
			i += 2
		case c == quote && i+1 < len(runes) && runes[i+1] == quote:
			b.WriteRune(quote)
			i += 2
		case c == quote:
			return b.String(), i + 1, true
		default:
			b.WriteRune(c)
			i++
		}
	}
	return "", i, false
}

func scanNumber(runes []rune, i int) int {
	n := len(runes)
	for i < n && unicode.IsDigit(runes[i]) {
		i++
	}
	if i < n && runes[i] == '.' {
		i++
		for i < n && unicode.IsDigit(runes[i]) {
			i++
		}
	}
	if i < n && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < n && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j < n && unicode.IsDigit(runes[j]) {
			i = j
			for i < n && unicode.IsDigit(runes[i]) {
				i++
			}
		}
	}
	return i
}

func indexRunes(runes []rune, from int, needle string) int {
	nr := []rune(needle)
outer:
	for i := from; i+len(nr) <= len(runes); i++ {
		for j, r := range nr {
			if runes[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// bracketIsIdentifier decides whether '[' opens a SQL Server style quoted
// identifier or is a subscript/array bracket.
func bracketIsIdentifier(prev *token) bool {
	if prev == nil {
		return true
	}
	switch prev.kind {
	case tokQuotedIdent, tokString, tokNumber, tokParam:
		return false
	case tokPunct:
		return prev.text != ")" && prev.text != "]"
	case tokIdent:
		if prev.upper == "ARRAY" {
			return false
		}
		return reserved[prev.upper]
	}
	return true
}

// matchParen returns the index of the ')' matching the '(' at toks[open], or -1.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].isPunct("("):
			depth++
		case toks[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// checkBalanced reports the first unbalanced parenthesis.
func checkBalanced(toks []token) error {
	depth := 0
	for _, t := range toks {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
			if depth < 0 {
				return &syntaxError{msg: "unexpected ')'", pos: t.pos}
			}
		}
	}
	if depth != 0 {
		return &syntaxError{msg: "unbalanced parentheses: missing ')'", pos: toks[len(toks)-1].pos}
	}
	return nil
}
