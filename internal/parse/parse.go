// Package parse extracts declarations and identifier occurrences from source
// files using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
)

// File is one parsed source file. The tree stays open for the lifetime of
// the project so declaration nodes remain valid.
type File struct {
	Path      string // Relative to project root
	Lang      *lang.Language
	Source    []byte
	Tree      *sitter.Tree
	Imports   []string
	Decls     []*Decl
	HasErrors bool

	// Idents maps identifier text to its occurrences in source order.
	Idents map[string][]*sitter.Node
}

// Root returns the root node of the file's syntax tree.
func (f *File) Root() *sitter.Node {
	return f.Tree.RootNode()
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.Tree != nil {
		f.Tree.Close()
		f.Tree = nil
	}
}

// Decl is a declaration found in a file.
type Decl struct {
	Symbol    *model.Symbol
	File      *File
	Node      *sitter.Node // full declaration span
	NameNode  *sitter.Node
	Body      *sitter.Node // nil for abstract, interface and extern members
	Parent    *Decl        // enclosing type, nil at top level
	Namespace string
	Params    []lang.Param
	// TypeParams counts a generic method's type parameters.
	TypeParams int
	// TypeName is the declared type of a field or property, or the return
	// type of a method.
	TypeName string
	Bases    []lang.BaseRef
	Members  []*Decl
}

// Source parses source and collects its declarations. The parser must be
// created for l; relPath is recorded on the file and in symbol locations.
func Source(ctx context.Context, parser *sitter.Parser, l *lang.Language, relPath string, source []byte) (*File, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	f := &File{
		Path:   relPath,
		Lang:   l,
		Source: source,
		Tree:   tree,
		Idents: make(map[string][]*sitter.Node),
	}
	root := tree.RootNode()
	f.HasErrors = root.HasError()

	c := &collector{file: f, lang: l, source: source}
	c.walk(root, "", nil)
	c.indexIdentifiers(root)
	return f, nil
}

type collector struct {
	file   *File
	lang   *lang.Language
	source []byte
}

// walk visits declaration containers. Callable bodies are not entered:
// local functions and anonymous types belong to their enclosing member.
func (c *collector) walk(node *sitter.Node, scope string, parent *Decl) {
	l := c.lang
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		kind := child.Type()

		switch {
		case l.FileNamespaceKinds[kind]:
			// Applies to the rest of the file. Some grammars also nest the
			// following declarations inside the node.
			scope = join(scope, l.NamespaceName(child, c.source))
			c.walk(child, scope, parent)
		case l.NamespaceKinds[kind]:
			c.walk(child, join(scope, l.NamespaceName(child, c.source)), parent)
		case l.ImportKinds[kind]:
			if ns := l.ImportedNamespace(child, c.source); ns != "" {
				c.file.Imports = append(c.file.Imports, ns)
			}
		case l.TypeKinds[kind] != "":
			d := c.typeDecl(child, scope, parent)
			if d == nil {
				continue
			}
			c.walk(child, d.Symbol.QualifiedName, d)
		case l.MethodKinds[kind], l.ConstructorKinds[kind]:
			c.methodDecl(child, scope, parent)
		case l.PropertyKinds[kind]:
			c.memberDecl(child, child.ChildByFieldName("name"), model.Property, scope, parent, l.ReturnType(child, c.source))
		case l.FieldKinds[kind]:
			for _, v := range l.Variables(child, c.source) {
				c.memberDecl(v.NameNode.Parent(), v.NameNode, model.Field, scope, parent, v.Type)
			}
		case l.EnumMemberKinds[kind]:
			c.memberDecl(child, child.ChildByFieldName("name"), model.Field, scope, parent, "")
		default:
			c.walk(child, scope, parent)
		}
	}
}

func (c *collector) typeDecl(node *sitter.Node, scope string, parent *Decl) *Decl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeText(nameNode, c.source)
	qn := join(scope, name)
	d := c.newDecl(node, nameNode, model.Type, name, qn, scope, parent)
	d.Symbol.TypeKind = c.lang.TypeKinds[node.Type()]
	d.Symbol.Signature = d.Symbol.TypeKind + " " + qn
	d.Bases = c.lang.BaseTypes(node, c.source)
	return d
}

func (c *collector) methodDecl(node *sitter.Node, scope string, parent *Decl) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := lang.NodeText(nameNode, c.source)
	params := c.lang.Parameters(node, c.source)
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	qn := join(scope, name) + "(" + strings.Join(types, ", ") + ")"

	d := c.newDecl(node, nameNode, model.Method, name, qn, scope, parent)
	d.Params = params
	d.TypeParams = lang.TypeParamCount(node)
	d.Body = c.lang.Body(node)
	d.Symbol.Constructor = c.lang.ConstructorKinds[node.Type()]
	d.Symbol.Signature = qn
	if !d.Symbol.Constructor {
		d.TypeName = c.lang.ReturnType(node, c.source)
		if d.TypeName != "" {
			d.Symbol.Signature = d.TypeName + " " + qn
		}
	}
}

func (c *collector) memberDecl(node, nameNode *sitter.Node, kind model.SymbolKind, scope string, parent *Decl, typeName string) {
	if node == nil || nameNode == nil {
		return
	}
	name := lang.NodeText(nameNode, c.source)
	qn := join(scope, name)
	d := c.newDecl(node, nameNode, kind, name, qn, scope, parent)
	d.TypeName = typeName
	d.Symbol.Signature = qn
	if typeName != "" {
		d.Symbol.Signature = typeName + " " + qn
	}
}

func (c *collector) newDecl(node, nameNode *sitter.Node, kind model.SymbolKind, name, qn, scope string, parent *Decl) *Decl {
	d := &Decl{
		Symbol: &model.Symbol{
			ID:            SymbolID(c.lang.Name, c.file.Path, node.StartByte(), kind, name),
			Name:          name,
			QualifiedName: qn,
			Kind:          kind,
			Location:      &model.Location{Path: c.file.Path, Line: lang.Line(nameNode)},
		},
		File:      c.file,
		Node:      node,
		NameNode:  nameNode,
		Parent:    parent,
		Namespace: namespaceOf(scope, parent),
	}
	if parent != nil {
		parent.Members = append(parent.Members, d)
	}
	c.file.Decls = append(c.file.Decls, d)
	return d
}

func (c *collector) indexIdentifiers(node *sitter.Node) {
	if c.lang.IdentifierKinds[node.Type()] {
		text := lang.NodeText(node, c.source)
		c.file.Idents[text] = append(c.file.Idents[text], node)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c.indexIdentifiers(node.Child(i))
	}
}

// SymbolID derives a stable identity from where a declaration lives.
func SymbolID(langName, path string, offset uint32, kind model.SymbolKind, name string) model.SymbolID {
	return model.SymbolID(xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%d\x00%s\x00%s", langName, path, offset, kind, name)))
}

// ExternalID derives the identity of a symbol that has no declaration in the
// project, keyed by its display name.
func ExternalID(kind model.SymbolKind, qualifiedName string) model.SymbolID {
	return model.SymbolID(xxhash.Sum64String("external\x00" + string(kind) + "\x00" + qualifiedName))
}

// namespaceOf returns the namespace portion of scope: for members and nested
// types that is the outermost type's namespace.
func namespaceOf(scope string, parent *Decl) string {
	if parent != nil {
		return parent.Namespace
	}
	return scope
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	if name == "" {
		return scope
	}
	return scope + "." + name
}
