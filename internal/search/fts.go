package search

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	value string
}

func (t token) operator() bool {
	return t.kind == tokAnd || t.kind == tokOr || t.kind == tokNot
}

func (t token) term() bool {
	return t.kind == tokWord || t.kind == tokPhrase
}

// BuildFTSQuery compiles user query syntax into an FTS5 MATCH expression.
//
//	simon carnegie           -> "simon" AND "carnegie"
//	simon OR newell          -> "simon" OR "newell"
//	"bounded rationality"    -> "bounded rationality"
//	(simon OR newell) AND AI -> ( "simon" OR "newell" ) AND "AI"
//
// Words keep only letters, digits, '-' and '_'. Dangling operators and
// unbalanced parentheses are dropped, so the result is always valid FTS5
// syntax. NOT is binary; a NOT with nothing to exclude from, as in
// "NOT chess", is ErrInvalidQuery. An empty result means the query has no
// searchable terms.
func BuildFTSQuery(query string) (string, error) {
	tokens, err := normalizeTokens(tokenize(query))
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(tokens)*2)
	var prev *token
	for i := range tokens {
		tok := tokens[i]
		if prev != nil && (tok.term() || tok.kind == tokLParen) &&
			(prev.term() || prev.kind == tokRParen) {
			parts = append(parts, "AND")
		}
		switch tok.kind {
		case tokWord, tokPhrase:
			parts = append(parts, `"`+tok.value+`"`)
		case tokAnd:
			parts = append(parts, "AND")
		case tokOr:
			parts = append(parts, "OR")
		case tokNot:
			parts = append(parts, "NOT")
		case tokLParen:
			parts = append(parts, "(")
		case tokRParen:
			parts = append(parts, ")")
		}
		prev = &tokens[i]
	}
	return strings.Join(parts, " "), nil
}

func tokenize(query string) []token {
	var tokens []token
	runes := []rune(strings.TrimSpace(query))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			phrase := cleanPhrase(string(runes[i+1 : end]))
			if phrase != "" {
				tokens = append(tokens, token{kind: tokPhrase, value: phrase})
			}
			i = end + 1
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && runes[j] != '"' && runes[j] != '(' && runes[j] != ')' {
				j++
			}
			word := string(runes[i:j])
			i = j
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd})
			case "OR":
				tokens = append(tokens, token{kind: tokOr})
			case "NOT":
				tokens = append(tokens, token{kind: tokNot})
			default:
				if clean := cleanWord(word); clean != "" {
					tokens = append(tokens, token{kind: tokWord, value: clean})
				}
			}
		}
	}
	return tokens
}

// normalizeTokens removes operators without two operands and unmatched
// parentheses until the sequence is stable.
func normalizeTokens(tokens []token) ([]token, error) {
	for {
		next := dropUnmatched(tokens)
		next, leadingNot := dropDangling(next)
		if leadingNot {
			return nil, fmt.Errorf("%w: NOT must follow a term, as in \"simon NOT chess\"", ErrInvalidQuery)
		}
		if len(next) == len(tokens) {
			return next, nil
		}
		tokens = next
	}
}

func dropUnmatched(tokens []token) []token {
	keep := make([]bool, len(tokens))
	var open []int
	for i, tok := range tokens {
		switch tok.kind {
		case tokLParen:
			open = append(open, i)
		case tokRParen:
			if len(open) > 0 {
				keep[open[len(open)-1]] = true
				keep[i] = true
				open = open[:len(open)-1]
			}
		default:
			keep[i] = true
		}
	}
	out := tokens[:0:0]
	for i, tok := range tokens {
		if keep[i] {
			out = append(out, tok)
		}
	}
	return out
}

// dropDangling also reports a NOT that has a right operand but no left one.
func dropDangling(tokens []token) ([]token, bool) {
	out := make([]token, 0, len(tokens))
	for i, tok := range tokens {
		var prev, next *token
		if len(out) > 0 {
			prev = &out[len(out)-1]
		}
		if i+1 < len(tokens) {
			next = &tokens[i+1]
		}
		switch {
		case tok.operator():
			if prev == nil || prev.operator() || prev.kind == tokLParen {
				if tok.kind == tokNot && next != nil && (next.term() || next.kind == tokLParen) {
					return nil, true
				}
				continue
			}
			if next == nil || next.operator() || next.kind == tokRParen {
				continue
			}
		case tok.kind == tokRParen && prev != nil && prev.kind == tokLParen:
			out = out[:len(out)-1]
			continue
		}
		out = append(out, tok)
	}
	return out, false
}

func cleanWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanPhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(phrase, `"`, "")), " ")
}
