// Package model defines core data structures for symtrace.
package model

import (
	"fmt"
	"strings"
)

// SymbolID is a stable identity for a declaration. Two symbols are the same
// declaration if and only if their IDs are equal.
type SymbolID uint64

// SymbolKind is the closed set of declaration kinds the engine distinguishes.
type SymbolKind string

const (
	Type     SymbolKind = "type"
	Method   SymbolKind = "method"
	Field    SymbolKind = "field"
	Property SymbolKind = "property"
	Other    SymbolKind = "other"
)

// HasMembers reports whether symbols of this kind declare members and take
// part in inheritance.
func (k SymbolKind) HasMembers() bool {
	return k == Type
}

// HasBody reports whether symbols of this kind are callable units that may
// carry a syntactic body.
func (k SymbolKind) HasBody() bool {
	return k == Method
}

// Location is a definition site: a project-relative path and a 1-based line.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Symbol is a named declaration supplied by the code model.
type Symbol struct {
	ID            SymbolID
	Name          string
	QualifiedName string
	Kind          SymbolKind
	// TypeKind is the declaring keyword for types (class, interface, ...).
	TypeKind string
	// Signature is the display signature used for data-access matching.
	Signature   string
	Location    *Location // nil when the symbol has no source location
	Constructor bool
	External    bool
}

// Same reports whether s and other denote the same declaration.
func (s *Symbol) Same(other *Symbol) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ID == other.ID
}

func (s *Symbol) String() string {
	return s.QualifiedName
}

// ReferenceLocation is a single reference site.
type ReferenceLocation struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet,omitempty"`
}

// Reference pairs a reference site with the declaration that encloses it.
// Referencing is nil when the site lies outside every declaration.
type Reference struct {
	Referencing *Symbol
	Location    ReferenceLocation
}

// SymbolSet is an insertion-ordered set of symbols keyed by identity.
type SymbolSet struct {
	order []*Symbol
	seen  map[SymbolID]struct{}
}

// NewSymbolSet returns a set seeded with syms, duplicates collapsed.
func NewSymbolSet(syms ...*Symbol) *SymbolSet {
	s := &SymbolSet{seen: make(map[SymbolID]struct{})}
	for _, sym := range syms {
		s.Add(sym)
	}
	return s
}

// Add inserts sym and reports whether it was not already present.
func (s *SymbolSet) Add(sym *Symbol) bool {
	if sym == nil {
		return false
	}
	if _, ok := s.seen[sym.ID]; ok {
		return false
	}
	s.seen[sym.ID] = struct{}{}
	s.order = append(s.order, sym)
	return true
}

// Contains reports whether sym is in the set.
func (s *SymbolSet) Contains(sym *Symbol) bool {
	_, ok := s.seen[sym.ID]
	return ok
}

// Len returns the number of symbols.
func (s *SymbolSet) Len() int {
	return len(s.order)
}

// Symbols returns the members in insertion order.
func (s *SymbolSet) Symbols() []*Symbol {
	out := make([]*Symbol, len(s.order))
	copy(out, s.order)
	return out
}

// RelationLevel controls how far a seed set is expanded.
type RelationLevel string

const (
	Direct      RelationLevel = "direct"
	References  RelationLevel = "references"
	Inheritance RelationLevel = "inheritance"
	All         RelationLevel = "all"
)

// ParseRelationLevel parses a relation level name, case-insensitively.
func ParseRelationLevel(s string) (RelationLevel, error) {
	switch l := RelationLevel(strings.ToLower(s)); l {
	case Direct, References, Inheritance, All:
		return l, nil
	}
	return "", fmt.Errorf("unknown relation level %q (want direct, references, inheritance or all)", s)
}

// IncludesReferences reports whether the level adds members and referencing symbols.
func (l RelationLevel) IncludesReferences() bool {
	return l == References || l == All
}

// IncludesInheritance reports whether the level adds base and derived types.
func (l RelationLevel) IncludesInheritance() bool {
	return l == Inheritance || l == All
}

// AnalysisMode selects which sub-analyses run per node.
type AnalysisMode string

const (
	Full           AnalysisMode = "full"
	ReferencesOnly AnalysisMode = "references"
	Analyze        AnalysisMode = "analyze"
)

// ParseAnalysisMode parses a mode name, case-insensitively.
func ParseAnalysisMode(s string) (AnalysisMode, error) {
	switch m := AnalysisMode(strings.ToLower(s)); m {
	case Full, ReferencesOnly, Analyze:
		return m, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (want full, references or analyze)", s)
}

// Outward reports whether reference search runs.
func (m AnalysisMode) Outward() bool {
	return m == Full || m == ReferencesOnly
}

// Inward reports whether metrics and call discovery run.
func (m AnalysisMode) Inward() bool {
	return m == Full || m == Analyze
}

// SnippetLevel controls how much source accompanies a reference.
type SnippetLevel string

const (
	SnippetNone  SnippetLevel = "none"
	SnippetLine  SnippetLevel = "line"
	SnippetBlock SnippetLevel = "block"
)

// ParseSnippetLevel parses a snippet level name, case-insensitively.
func ParseSnippetLevel(s string) (SnippetLevel, error) {
	switch l := SnippetLevel(strings.ToLower(s)); l {
	case SnippetNone, SnippetLine, SnippetBlock:
		return l, nil
	}
	return "", fmt.Errorf("unknown snippet level %q (want none, line or block)", s)
}

// TargetSpec is a validated user target: exactly one of ExactName or ShortName.
type TargetSpec interface {
	Text() string
	isTargetSpec()
}

// ExactName targets a fully qualified display name.
type ExactName string

// ShortName targets every callable unit with this short identifier.
type ShortName string

func (n ExactName) Text() string { return string(n) }
func (n ShortName) Text() string { return string(n) }

func (ExactName) isTargetSpec() {}
func (ShortName) isTargetSpec() {}
