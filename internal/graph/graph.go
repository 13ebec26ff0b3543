// Package graph indexes declarations across a project and builds the type
// hierarchy.
package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/parse"
)

type nodeKey struct {
	file       *parse.File
	start, end uint32
}

func keyOf(f *parse.File, n *sitter.Node) nodeKey {
	return nodeKey{file: f, start: n.StartByte(), end: n.EndByte()}
}

// Index is the definition index of a project: declarations by identity, by
// short name and by syntax node, plus base and derived type edges.
type Index struct {
	decls     []*parse.Decl
	byID      map[model.SymbolID]*parse.Decl
	byName    map[string][]*parse.Decl
	byNode    map[nodeKey]*parse.Decl
	nameNodes map[nodeKey]struct{}
	bases     map[model.SymbolID][]*model.Symbol
	derived   map[model.SymbolID][]*model.Symbol
	external  map[model.SymbolID]*model.Symbol
}

// Build indexes the declarations of files, in file order, and resolves every
// type's base list.
func Build(files []*parse.File) *Index {
	ix := &Index{
		byID:      make(map[model.SymbolID]*parse.Decl),
		byName:    make(map[string][]*parse.Decl),
		byNode:    make(map[nodeKey]*parse.Decl),
		nameNodes: make(map[nodeKey]struct{}),
		bases:     make(map[model.SymbolID][]*model.Symbol),
		derived:   make(map[model.SymbolID][]*model.Symbol),
		external:  make(map[model.SymbolID]*model.Symbol),
	}
	for _, f := range files {
		for _, d := range f.Decls {
			ix.decls = append(ix.decls, d)
			ix.byID[d.Symbol.ID] = d
			ix.byName[d.Symbol.Name] = append(ix.byName[d.Symbol.Name], d)
			ix.byNode[keyOf(f, d.Node)] = d
			ix.nameNodes[keyOf(f, d.NameNode)] = struct{}{}
		}
	}

	for _, d := range ix.decls {
		if d.Symbol.Kind != model.Type {
			continue
		}
		for _, b := range d.Bases {
			base := ix.resolveBase(d, b)
			if base == nil || base.ID == d.Symbol.ID {
				continue
			}
			ix.bases[d.Symbol.ID] = append(ix.bases[d.Symbol.ID], base)
			ix.derived[base.ID] = append(ix.derived[base.ID], d.Symbol)
		}
	}
	return ix
}

func (ix *Index) resolveBase(d *parse.Decl, b lang.BaseRef) *model.Symbol {
	name := lang.TypeName(b.Name)
	if name == "" {
		return nil
	}
	if td := ix.ResolveType(b.Name, d.File, d.Namespace); td != nil {
		return td.Symbol
	}
	sym := ix.External(model.Type, name)
	if b.Interface {
		sym.TypeKind = "interface"
	}
	return sym
}

// Decls returns every declaration in file order.
func (ix *Index) Decls() []*parse.Decl {
	return ix.decls
}

// Decl returns the declaration behind sym, or nil for external symbols.
func (ix *Index) Decl(sym *model.Symbol) *parse.Decl {
	if sym == nil {
		return nil
	}
	return ix.byID[sym.ID]
}

// Named returns the declarations with the given short name in file order.
func (ix *Index) Named(name string) []*parse.Decl {
	return ix.byName[name]
}

// ResolveType finds the project type a type expression refers to, seen from
// a file and namespace. Candidates are preferred in this order: exact
// qualified match, same namespace, enclosing namespaces, imported
// namespaces, then the first declared.
func (ix *Index) ResolveType(text string, from *parse.File, namespace string) *parse.Decl {
	name := lang.TypeName(text)
	var cands []*parse.Decl
	for _, d := range ix.byName[name] {
		if d.Symbol.Kind == model.Type {
			cands = append(cands, d)
		}
	}
	switch len(cands) {
	case 0:
		return nil
	case 1:
		return cands[0]
	}

	if qualified := stripGenerics(lang.CollapseWhitespace(text)); strings.Contains(qualified, ".") {
		for _, d := range cands {
			if d.Symbol.QualifiedName == qualified || strings.HasSuffix(d.Symbol.QualifiedName, "."+qualified) {
				return d
			}
		}
	}
	for ns := namespace; ; ns = parentNamespace(ns) {
		for _, d := range cands {
			if d.Namespace == ns {
				return d
			}
		}
		if ns == "" {
			break
		}
	}
	if from != nil {
		for _, imp := range from.Imports {
			for _, d := range cands {
				if d.Namespace == imp {
					return d
				}
			}
		}
	}
	return cands[0]
}

// External returns the canonical symbol for a name with no project
// declaration. Repeated calls with the same kind and name return the same
// symbol.
func (ix *Index) External(kind model.SymbolKind, qualifiedName string) *model.Symbol {
	id := parse.ExternalID(kind, qualifiedName)
	if sym, ok := ix.external[id]; ok {
		return sym
	}
	name := qualifiedName
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	sym := &model.Symbol{
		ID:            id,
		Name:          name,
		QualifiedName: qualifiedName,
		Kind:          kind,
		Signature:     qualifiedName,
		External:      true,
	}
	ix.external[id] = sym
	return sym
}

// Bases returns the resolved base list of a type: base class first when the
// source lists it first, then interfaces.
func (ix *Index) Bases(sym *model.Symbol) []*model.Symbol {
	return ix.bases[sym.ID]
}

// Derived returns every type that derives from or implements sym, directly
// or transitively, in breadth-first order.
func (ix *Index) Derived(sym *model.Symbol) []*model.Symbol {
	var out []*model.Symbol
	seen := map[model.SymbolID]struct{}{sym.ID: {}}
	queue := []*model.Symbol{sym}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range ix.derived[cur.ID] {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}

// Enclosing returns the smallest declaration whose span contains node.
func (ix *Index) Enclosing(f *parse.File, node *sitter.Node) *parse.Decl {
	for n := node; n != nil; n = n.Parent() {
		if d, ok := ix.byNode[keyOf(f, n)]; ok {
			return d
		}
	}
	return nil
}

// IsDeclName reports whether node is the name of a declaration.
func (ix *Index) IsDeclName(f *parse.File, node *sitter.Node) bool {
	_, ok := ix.nameNodes[keyOf(f, node)]
	return ok
}

func parentNamespace(ns string) string {
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ""
}

func stripGenerics(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		return s[:i]
	}
	return s
}
