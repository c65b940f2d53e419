// Package person extracts a known-person reference from raw query text using
// an owner-scoped name directory. No external dependencies.
package person

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/heimdex/heimdex-engine/engine/domain"
)

// Marker is the explicit person-reference prefix, e.g. "person:Jane, red car".
const Marker = "person:"

// boundaryPunct are the characters allowed immediately after a leading name
// match (besides whitespace). The check prevents a short name from matching
// as a prefix of an unrelated longer token.
const boundaryPunct = ",.!?"

// ParseResult is the outcome of parsing one query. PersonID is empty when no
// known person was referenced; Remainder then equals the original query.
type ParseResult struct {
	PersonID  string
	Embedding []float32
	Remainder string
}

// Found reports whether a known person was resolved.
func (r ParseResult) Found() bool { return r.PersonID != "" }

type entry struct {
	id        string
	embedding []float32
}

// Parser resolves person references against an immutable per-owner directory.
// Safe for concurrent use after construction.
type Parser struct {
	directory map[string]entry
	// keys sorted by length descending, ties kept in original listing order,
	// so the longest name wins before any of its prefixes can match.
	ordered []string
}

// NewParser builds a Parser from an owner's person listing. Display names are
// normalized (lowercased, trimmed); on duplicate normalized names the earlier
// listing wins.
func NewParser(persons []domain.Person) *Parser {
	p := &Parser{directory: make(map[string]entry, len(persons))}
	for _, per := range persons {
		key := normalizeName(per.Name)
		if key == "" {
			continue
		}
		if _, ok := p.directory[key]; ok {
			continue
		}
		p.directory[key] = entry{id: per.ID, embedding: per.Embedding}
		p.ordered = append(p.ordered, key)
	}
	sort.SliceStable(p.ordered, func(i, j int) bool {
		return utf8.RuneCountInString(p.ordered[i]) > utf8.RuneCountInString(p.ordered[j])
	})
	return p
}

// Len returns the number of distinct names in the directory.
func (p *Parser) Len() int { return len(p.directory) }

// Parse extracts an optional person reference from query. It never fails: a
// malformed or unresolved reference degrades to "no person, query unchanged".
func (p *Parser) Parse(query string) ParseResult {
	none := ParseResult{Remainder: query}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return none
	}

	if name, rest, ok := splitMarker(trimmed); ok {
		if e, found := p.directory[normalizeName(name)]; found {
			return ParseResult{PersonID: e.id, Embedding: e.embedding, Remainder: rest}
		}
		// Parsing failed: the caller gets the entire original string back,
		// not a partially stripped one.
		return none
	}

	lower := strings.ToLower(trimmed)
	for _, key := range p.ordered {
		if !strings.HasPrefix(lower, key) {
			continue
		}
		rest := trimmed[len(key):]
		if !boundaryOK(rest) {
			continue
		}
		e := p.directory[key]
		return ParseResult{PersonID: e.id, Embedding: e.embedding, Remainder: stripLead(rest)}
	}

	return none
}

// splitMarker splits an explicit "person:<name>[, <rest>]" reference.
func splitMarker(q string) (name, rest string, ok bool) {
	if len(q) < len(Marker) || !strings.EqualFold(q[:len(Marker)], Marker) {
		return "", "", false
	}
	body := q[len(Marker):]
	if idx := strings.IndexByte(body, ','); idx >= 0 {
		return strings.TrimSpace(body[:idx]), strings.TrimSpace(body[idx+1:]), true
	}
	return strings.TrimSpace(body), "", true
}

// boundaryOK reports whether rest may legally follow a matched name: end of
// string, whitespace, or one of the boundary punctuation characters.
func boundaryOK(rest string) bool {
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(r) || strings.ContainsRune(boundaryPunct, r)
}

// stripLead removes at most one leading punctuation character and surrounding
// whitespace from the remainder after a matched name.
func stripLead(rest string) string {
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if rest != "" {
		if r, size := utf8.DecodeRuneInString(rest); strings.ContainsRune(boundaryPunct, r) {
			rest = rest[size:]
		}
	}
	return strings.TrimSpace(rest)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
