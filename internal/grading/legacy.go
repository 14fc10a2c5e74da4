package grading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var errLegacySyntax = errors.New("marks: unrecognised literal")

// ParseLegacy reads the dict literal form older desktop builds stored, e.g.
// {'Math': 90, 'Science': 80, 'English': 70}. Keys may use single or double
// quotes and a trailing comma is accepted.
func ParseLegacy(text string) (Marks, error) {
	p := &literalParser{src: []rune(strings.TrimSpace(text))}
	marks, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%w at offset %d", err, p.pos)
	}
	return marks, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) parse() (Marks, error) {
	if !p.consume('{') {
		return nil, errLegacySyntax
	}
	marks := Marks{}
	for {
		p.skipSpace()
		if p.consume('}') {
			break
		}
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, errLegacySyntax
		}
		p.skipSpace()
		v, err := p.number()
		if err != nil {
			return nil, err
		}
		marks[key] = v

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, errLegacySyntax
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errLegacySyntax
	}
	return marks, nil
}

func (p *literalParser) key() (string, error) {
	if p.pos >= len(p.src) {
		return "", errLegacySyntax
	}
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", errLegacySyntax
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", errLegacySyntax
	}
	key := string(p.src[start:p.pos])
	p.pos++
	return key, nil
}

func (p *literalParser) number() (int, error) {
	start := p.pos
	if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
		p.pos++
	}
	for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
		p.pos++
	}
	return strconv.Atoi(string(p.src[start:p.pos]))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) consume(r rune) bool {
	if p.pos < len(p.src) && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}
