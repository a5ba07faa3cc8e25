package bbcode

import (
	"strings"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokOpen
	tokClose
)

type token struct {
	kind   tokenKind
	name   string // lower-cased tag name
	option string // value after '=' in [tag=option]
	attrs  map[string]string
	text   string // literal source text
}

type node struct {
	def      *tagDef // nil for text nodes and the root
	name     string
	option   string
	attrs    map[string]string
	text     string // text nodes and raw tag contents
	children []*node
}

const maxTagLen = 512

// tokenize splits src into text and tag tokens. Contents of raw tags are
// captured verbatim as the following text token.
func tokenize(src string) []token {
	var toks []token
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(src); {
		if src[i] != '[' {
			next := strings.IndexByte(src[i:], '[')
			if next < 0 {
				text.WriteString(src[i:])
				break
			}
			text.WriteString(src[i : i+next])
			i += next
			continue
		}

		tok, n, ok := parseTag(src[i:])
		if !ok {
			text.WriteByte('[')
			i++
			continue
		}
		if _, known := lookupTag(tok.name); !known {
			text.WriteString(tok.text)
			i += n
			continue
		}

		flush()
		toks = append(toks, tok)
		i += n

		if def, _ := lookupTag(tok.name); tok.kind == tokOpen && def.raw {
			closing := "[/" + tok.name + "]"
			end := indexFold(src[i:], closing)
			if end < 0 {
				toks = append(toks, token{kind: tokText, text: src[i:]})
				i = len(src)
				continue
			}
			toks = append(toks,
				token{kind: tokText, text: src[i : i+end]},
				token{kind: tokClose, name: tok.name, text: src[i+end : i+end+len(closing)]},
			)
			i += end + len(closing)
		}
	}
	flush()
	return toks
}

// parseTag reads one [tag], [tag=option], [tag key=value ...] or [/tag]
// at the start of s and reports how many bytes it consumed.
func parseTag(s string) (token, int, bool) {
	end := strings.IndexByte(s, ']')
	if end < 0 || end > maxTagLen {
		return token{}, 0, false
	}
	inner := s[1:end]
	if inner == "" || strings.ContainsAny(inner, "[\r\n") {
		return token{}, 0, false
	}

	tok := token{text: s[:end+1]}
	if inner[0] == '/' {
		name := inner[1:]
		if !validName(name) {
			return token{}, 0, false
		}
		tok.kind = tokClose
		tok.name = strings.ToLower(name)
		return tok, end + 1, true
	}

	nameEnd := strings.IndexAny(inner, "= ")
	if nameEnd < 0 {
		nameEnd = len(inner)
	}
	name := inner[:nameEnd]
	if !validName(name) {
		return token{}, 0, false
	}
	tok.kind = tokOpen
	tok.name = strings.ToLower(name)

	rest := inner[nameEnd:]
	switch {
	case rest == "":
	case rest[0] == '=':
		tok.option = unquote(rest[1:])
	default:
		tok.attrs = parseAttrs(rest)
	}
	return tok, end + 1, true
}

func validName(name string) bool {
	if name == "*" {
		return true
	}
	if name == "" || len(name) > 16 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !(isDigit && i > 0) {
			return false
		}
	}
	return true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// parseAttrs reads space separated key=value pairs; values may be quoted
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for s = strings.TrimSpace(s); s != ""; s = strings.TrimSpace(s) {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " ")

		var val string
		if s != "" && (s[0] == '"' || s[0] == '\'') {
			q := s[0]
			qEnd := strings.IndexByte(s[1:], q)
			if qEnd < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:qEnd+1], s[qEnd+2:]
			}
		} else {
			sp := strings.IndexByte(s, ' ')
			if sp < 0 {
				val, s = s, ""
			} else {
				val, s = s[:sp], s[sp:]
			}
		}
		attrs[key] = val
	}
	return attrs
}

// indexFold is a case-insensitive strings.Index for an ASCII needle
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// parse builds the tag tree. Unclosed tags are closed at the end of input,
// a closing tag closes every tag opened after its match, and a closing tag
// with no open match stays literal text.
func parse(src string) *node {
	root := &node{}
	stack := []*node{root}
	top := func() *node { return stack[len(stack)-1] }

	for _, tok := range tokenize(src) {
		switch tok.kind {
		case tokText:
			top().children = append(top().children, &node{text: tok.text})

		case tokOpen:
			def, _ := lookupTag(tok.name)
			n := &node{def: &def, name: tok.name, option: tok.option, attrs: tok.attrs}

			if def.kind == kindListItem {
				if j := openItem(stack); j > 0 {
					stack = stack[:j]
				}
			}
			top().children = append(top().children, n)
			if !def.standalone {
				stack = append(stack, n)
			}

		case tokClose:
			match := -1
			for j := len(stack) - 1; j > 0; j-- {
				if stack[j].name == tok.name {
					match = j
					break
				}
			}
			if match > 0 {
				stack = stack[:match]
				continue
			}
			if def, _ := lookupTag(tok.name); def.standalone || def.kind == kindListItem {
				continue
			}
			top().children = append(top().children, &node{text: tok.text})
		}
	}
	return root
}

// openItem returns the stack index of the list item open in the innermost
// list, or -1 when that list has no open item
func openItem(stack []*node) int {
	for j := len(stack) - 1; j > 0; j-- {
		switch stack[j].def.kind {
		case kindListItem:
			return j
		case kindList, kindOList:
			return -1
		}
	}
	return -1
}
