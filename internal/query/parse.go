package query

import (
	"strings"
	"unicode"
)

// ParseSearch turns query syntax into search terms:
//
//	field:value     term scoped to field
//	-field:value    negated scoped term
//	-value          negated any term
//	"two words"     quoted values keep their whitespace
//
// Bare tokens search any field. A token whose field name is unknown is kept
// whole as an any term.
func ParseSearch(input string) []SearchTerm {
	p := &searchParser{runes: []rune(input)}
	terms := []SearchTerm{}
	for {
		term, ok := p.next()
		if !ok {
			return terms
		}
		if term.Value != "" {
			terms = append(terms, term)
		}
	}
}

type searchParser struct {
	runes []rune
	pos   int
}

func (p *searchParser) next() (SearchTerm, bool) {
	p.skipSpace()
	if p.pos >= len(p.runes) {
		return SearchTerm{}, false
	}

	exclude := false
	if p.runes[p.pos] == '-' && p.pos+1 < len(p.runes) && !unicode.IsSpace(p.runes[p.pos+1]) {
		exclude = true
		p.pos++
	}

	if p.runes[p.pos] == '"' {
		return SearchTerm{Field: FieldAny, Value: p.quoted(), Exclude: exclude}, true
	}

	word := p.word()
	name, rest, hasField := strings.Cut(word, ":")
	if !hasField || name == "" {
		if p.peek() == '"' {
			word += p.quoted()
		}
		return SearchTerm{Field: FieldAny, Value: word, Exclude: exclude}, true
	}

	value := rest
	if rest == "" && p.peek() == '"' {
		value = p.quoted()
	}
	field, known := LookupField(strings.ToLower(name))
	if !known {
		return SearchTerm{Field: FieldAny, Value: name + ":" + value, Exclude: exclude}, true
	}
	return SearchTerm{Field: field, Value: value, Exclude: exclude}, true
}

func (p *searchParser) skipSpace() {
	for p.pos < len(p.runes) && unicode.IsSpace(p.runes[p.pos]) {
		p.pos++
	}
}

func (p *searchParser) peek() rune {
	if p.pos < len(p.runes) {
		return p.runes[p.pos]
	}
	return 0
}

// word reads up to whitespace or an opening quote.
func (p *searchParser) word() string {
	start := p.pos
	for p.pos < len(p.runes) && !unicode.IsSpace(p.runes[p.pos]) && p.runes[p.pos] != '"' {
		p.pos++
	}
	return string(p.runes[start:p.pos])
}

// quoted reads a "..." value; an unterminated quote runs to the end of input.
func (p *searchParser) quoted() string {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.runes) && p.runes[p.pos] != '"' {
		p.pos++
	}
	value := string(p.runes[start:p.pos])
	if p.pos < len(p.runes) {
		p.pos++
	}
	return value
}
