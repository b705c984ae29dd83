package expression

import (
	"fmt"
	"unicode"
)

// ============================================================================
// Token types
// ============================================================================

type tokenKind int

const (
	tkNumber tokenKind = iota // 12, 1.5, 2e3
	tkIdent                   // function name or keyword
	tkRef                     // item reference, ref set
	tkLParen                  // (
	tkRParen                  // )
	tkComma                   // ,
	tkPlus                    // +
	tkMinus                   // -
	tkStar                    // *
	tkSlash                   // /
	tkPercent                 // %
	tkCaret                   // ^ or **
	tkEq                      // ==
	tkNe                      // !=
	tkLt                      // <
	tkGt                      // >
	tkLe                      // <=
	tkGe                      // >=
	tkAnd                     // && or and
	tkOr                      // || or or
	tkNot                     // ! or not
	tkEOF
)

type token struct {
	kind  tokenKind
	value string
	pos   int
	ref   Reference
}

// ============================================================================
// Lexer
// ============================================================================

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(input)

	for i < n {
		ch := input[i]

		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		// References first: C{..} must not lex as the identifier C.
		if loc := anchoredReferencePattern.FindStringSubmatchIndex(input[i:]); loc != nil {
			ref, err := referenceAt(input, i, loc)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tkRef, value: ref.Text, pos: i, ref: ref})
			i = ref.End
			continue
		}

		if isDigit(ch) || (ch == '.' && i+1 < n && isDigit(input[i+1])) {
			start := i
			for i < n && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			if i < n && (input[i] == 'e' || input[i] == 'E') {
				j := i + 1
				if j < n && (input[j] == '+' || input[j] == '-') {
					j++
				}
				if j < n && isDigit(input[j]) {
					i = j
					for i < n && isDigit(input[i]) {
						i++
					}
				}
			}
			tokens = append(tokens, token{kind: tkNumber, value: input[start:i], pos: start})
			continue
		}

		if ch == '_' || unicode.IsLetter(rune(ch)) {
			start := i
			for i < n && (input[i] == '_' || unicode.IsLetter(rune(input[i])) || isDigit(input[i])) {
				i++
			}
			word := input[start:i]
			switch word {
			case "and":
				tokens = append(tokens, token{kind: tkAnd, value: word, pos: start})
			case "or":
				tokens = append(tokens, token{kind: tkOr, value: word, pos: start})
			case "not":
				tokens = append(tokens, token{kind: tkNot, value: word, pos: start})
			default:
				tokens = append(tokens, token{kind: tkIdent, value: word, pos: start})
			}
			continue
		}

		two := ""
		if i+1 < n {
			two = input[i : i+2]
		}
		switch two {
		case "==":
			tokens = append(tokens, token{kind: tkEq, value: two, pos: i})
			i += 2
			continue
		case "!=":
			tokens = append(tokens, token{kind: tkNe, value: two, pos: i})
			i += 2
			continue
		case "<=":
			tokens = append(tokens, token{kind: tkLe, value: two, pos: i})
			i += 2
			continue
		case ">=":
			tokens = append(tokens, token{kind: tkGe, value: two, pos: i})
			i += 2
			continue
		case "&&":
			tokens = append(tokens, token{kind: tkAnd, value: two, pos: i})
			i += 2
			continue
		case "||":
			tokens = append(tokens, token{kind: tkOr, value: two, pos: i})
			i += 2
			continue
		case "**":
			tokens = append(tokens, token{kind: tkCaret, value: two, pos: i})
			i += 2
			continue
		}

		var kind tokenKind
		switch ch {
		case '(':
			kind = tkLParen
		case ')':
			kind = tkRParen
		case ',':
			kind = tkComma
		case '+':
			kind = tkPlus
		case '-':
			kind = tkMinus
		case '*':
			kind = tkStar
		case '/':
			kind = tkSlash
		case '%':
			kind = tkPercent
		case '^':
			kind = tkCaret
		case '<':
			kind = tkLt
		case '>':
			kind = tkGt
		case '!':
			kind = tkNot
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
		tokens = append(tokens, token{kind: kind, value: string(ch), pos: i})
		i++
	}

	tokens = append(tokens, token{kind: tkEOF, pos: n})
	return tokens, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
