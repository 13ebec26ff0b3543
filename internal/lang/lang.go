// Package lang provides a language registry mapping file extensions and
// project files to tree-sitter grammars and their node-kind tables.
package lang

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BaseRef is one entry of a type's base list.
type BaseRef struct {
	Name string
	// Interface is true when the syntax marks the base as an interface
	// (e.g. Java's implements clause).
	Interface bool
}

// Param is a declared parameter.
type Param struct {
	Name string
	Type string
}

// Var is a declared variable: a field declarator, local, or loop variable.
type Var struct {
	Name     string
	Type     string
	NameNode *sitter.Node
	Value    *sitter.Node
}

// CallParts describes the callee side of an invocation.
type CallParts struct {
	Name     string
	NameNode *sitter.Node
	// Receiver is the expression the method is invoked on, nil for bare calls.
	Receiver *sitter.Node
	Args     int
	// TypeArgs counts explicit type arguments, as in Go<int>(x).
	TypeArgs int
}

// Language holds tree-sitter configuration and syntax tables for a supported
// class-based language.
type Language struct {
	Name         string
	Extensions   []string
	ProjectFiles []string
	lang         *sitter.Language

	// Declarations.
	NamespaceKinds     map[string]bool
	FileNamespaceKinds map[string]bool
	ImportKinds        map[string]bool
	TypeKinds          map[string]string // node kind → declaring keyword
	MethodKinds        map[string]bool
	ConstructorKinds   map[string]bool
	PropertyKinds      map[string]bool
	FieldKinds         map[string]bool
	EnumMemberKinds    map[string]bool
	LocalVarKinds      map[string]bool

	// Body constructs.
	LoopKinds       map[string]string // node kind → loop label
	BranchKinds     map[string]bool
	LogicalKinds    map[string]bool
	CallKinds       map[string]bool
	CreationKinds   map[string]bool
	MemberKinds     map[string]bool
	IdentifierKinds map[string]bool

	SelfKeyword  string
	BaseKeywords []string

	// NamespaceName returns the name declared by a namespace or package node.
	NamespaceName func(node *sitter.Node, source []byte) string

	// ImportedNamespace returns the namespace made visible by an import node,
	// or "" when the directive does not import a namespace.
	ImportedNamespace func(node *sitter.Node, source []byte) string

	// BaseTypes returns the base list of a type declaration in source order.
	BaseTypes func(node *sitter.Node, source []byte) []BaseRef

	// Parameters returns the declared parameters of a method, constructor or record.
	Parameters func(node *sitter.Node, source []byte) []Param

	// ReturnType returns the declared type of a method, property or field node.
	ReturnType func(node *sitter.Node, source []byte) string

	// Variables returns the variables introduced by a field, local or loop node.
	Variables func(node *sitter.Node, source []byte) []Var

	// Body returns the executable body of a callable declaration, or nil.
	Body func(node *sitter.Node) *sitter.Node

	// Call splits an invocation node into its parts.
	Call func(node *sitter.Node, source []byte) (CallParts, bool)

	// Member splits a member access node into receiver and member name node.
	Member func(node *sitter.Node) (receiver, name *sitter.Node)

	// CreatedType returns the type name of an object creation node.
	CreatedType func(node *sitter.Node, source []byte) string

	// CaseLabels returns how many non-default case labels node contributes.
	CaseLabels func(node *sitter.Node, source []byte) int
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// IsSelf reports whether text is the language's self reference.
func (l *Language) IsSelf(text string) bool {
	return text == l.SelfKeyword
}

// IsBase reports whether text refers to the base class.
func (l *Language) IsBase(text string) bool {
	for _, kw := range l.BaseKeywords {
		if text == kw {
			return true
		}
	}
	return false
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForProjectFile returns the language for a project or solution file name,
// matched by exact base name first and then by extension.
func ForProjectFile(path string) string {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	for _, name := range Names() {
		for _, pf := range Languages[name].ProjectFiles {
			if pf == base || pf == ext {
				return name
			}
		}
	}
	return ""
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// SameNode reports whether a and b cover the same span with the same kind.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Line returns the 1-based start line of node.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// TypeName normalizes a type expression to its simple name: generic
// arguments, array and nullable markers and qualifiers are removed.
func TypeName(text string) string {
	t := CollapseWhitespace(text)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimRight(t, "[]?* ")
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	if i := strings.LastIndex(t, "::"); i >= 0 {
		t = t[i+2:]
	}
	return strings.TrimSpace(t)
}

// childOfType returns the first direct child of node with the given kind.
func childOfType(node *sitter.Node, kinds ...string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		for _, k := range kinds {
			if child.Type() == k {
				return child
			}
		}
	}
	return nil
}

// namedChildren returns the named children of node.
func namedChildren(node *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// fieldText returns the collapsed text of the named field, or "".
func fieldText(node *sitter.Node, field string, source []byte) string {
	if c := node.ChildByFieldName(field); c != nil {
		return CollapseWhitespace(NodeText(c, source))
	}
	return ""
}

// CountArgs counts the named children of an argument list, skipping comments.
func CountArgs(list *sitter.Node) int {
	if list == nil {
		return 0
	}
	n := 0
	for _, c := range namedChildren(list) {
		if c.Type() != "comment" {
			n++
		}
	}
	return n
}

// TypeParamCount returns the number of type parameters a method
// declaration lists.
func TypeParamCount(node *sitter.Node) int {
	list := node.ChildByFieldName("type_parameters")
	if list == nil {
		list = childOfType(node, "type_parameter_list", "type_parameters")
	}
	return CountArgs(list)
}

// hasToken reports whether node has an anonymous child with the given text.
func hasToken(node *sitter.Node, tokens ...string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.IsNamed() {
			continue
		}
		for _, t := range tokens {
			if child.Type() == t {
				return true
			}
		}
	}
	return false
}

// HasLogicalOperator reports whether a binary expression is a short-circuit
// && or || operation.
func HasLogicalOperator(node *sitter.Node) bool {
	return hasToken(node, "&&", "||")
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
