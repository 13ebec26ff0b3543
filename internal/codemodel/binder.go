package codemodel

import (
	"regexp"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/parse"
)

// maxTypeDepth bounds receiver type inference through initializers and
// nested expressions.
const maxTypeDepth = 8

var simpleChainRe = regexp.MustCompile(`^[A-Za-z_][\w.]*$`)

// Binder resolves names inside one declaration to symbols.
type Binder struct {
	p     *Project
	file  *parse.File
	scope *parse.Decl // enclosing member, nil outside any declaration
	owner *parse.Decl // enclosing type

	locals map[string]lang.Var
}

// Bind returns the binder for a callable body.
func (p *Project) Bind(b *Body) *Binder {
	return p.binderFor(b.decl.File, b.decl)
}

func (p *Project) binderFor(f *parse.File, scope *parse.Decl) *Binder {
	b := &Binder{p: p, file: f, scope: scope}
	if scope != nil {
		if scope.Symbol.Kind == model.Type {
			b.owner = scope
		} else {
			b.owner = scope.Parent
		}
	}
	return b
}

func (b *Binder) lang() *lang.Language {
	return b.file.Lang
}

func (b *Binder) text(n *sitter.Node) string {
	return lang.NodeText(n, b.file.Source)
}

func (b *Binder) namespace() string {
	if b.scope != nil {
		return b.scope.Namespace
	}
	return ""
}

// ResolveCall resolves the callee of an invocation node. Member calls on
// receivers whose type is not declared in the project resolve to external
// symbols; bare calls that match nothing resolve to nil.
func (b *Binder) ResolveCall(call *sitter.Node) *model.Symbol {
	return b.resolveCall(call, 0)
}

func (b *Binder) resolveCall(call *sitter.Node, depth int) *model.Symbol {
	parts, ok := b.lang().Call(call, b.file.Source)
	if !ok || parts.Name == "" {
		return nil
	}

	if parts.Receiver == nil {
		if _, local := b.local(parts.Name); local {
			return nil // delegate invocation
		}
		for t := b.owner; t != nil; t = t.Parent {
			if d := b.p.member(t, parts.Name, parts.Args, parts.TypeArgs, isMethod); d != nil {
				return d.Symbol
			}
		}
		if d := b.p.uniqueMethod(parts.Name, parts.Args, parts.TypeArgs); d != nil {
			return d.Symbol
		}
		return nil
	}

	typeName, td := b.typeOf(parts.Receiver, depth+1)
	if td != nil {
		if d := b.p.member(td, parts.Name, parts.Args, parts.TypeArgs, isMethod); d != nil {
			return d.Symbol
		}
	}
	if typeName != "" {
		return b.p.index.External(model.Method, typeName+"."+parts.Name)
	}
	if d := b.p.uniqueMethod(parts.Name, parts.Args, parts.TypeArgs); d != nil {
		return d.Symbol
	}
	label := parts.Name
	if recv := lang.CollapseWhitespace(b.text(parts.Receiver)); simpleChainRe.MatchString(recv) {
		label = recv + "." + parts.Name
	}
	return b.p.index.External(model.Method, label)
}

// typeOf infers the static type of an expression: its simple name and, when
// the type is declared in the project, its declaration.
func (b *Binder) typeOf(expr *sitter.Node, depth int) (string, *parse.Decl) {
	if expr == nil || depth > maxTypeDepth {
		return "", nil
	}
	l := b.lang()
	text := b.text(expr)
	kind := expr.Type()

	switch {
	case l.IsSelf(text):
		if b.owner != nil {
			return b.owner.Symbol.Name, b.owner
		}
	case l.IsBase(text):
		if b.owner != nil {
			if bases := b.p.index.Bases(b.owner.Symbol); len(bases) > 0 {
				return bases[0].Name, b.p.index.Decl(bases[0])
			}
		}
	case l.IdentifierKinds[kind]:
		return b.identifierType(text, depth)
	case l.MemberKinds[kind]:
		recv, name := l.Member(expr)
		if name == nil {
			return "", nil
		}
		if _, td := b.typeOf(recv, depth+1); td != nil {
			if d := b.p.member(td, b.text(name), -1, 0, isValue); d != nil {
				return b.namedType(d.TypeName)
			}
		}
	case l.CreationKinds[kind]:
		return b.namedType(l.CreatedType(expr, b.file.Source))
	case l.CallKinds[kind]:
		if sym := b.resolveCall(expr, depth+1); sym != nil {
			if d := b.p.index.Decl(sym); d != nil {
				return b.namedType(d.TypeName)
			}
		}
	case kind == "parenthesized_expression":
		if expr.NamedChildCount() > 0 {
			return b.typeOf(expr.NamedChild(0), depth+1)
		}
	case kind == "cast_expression":
		if t := expr.ChildByFieldName("type"); t != nil {
			return b.namedType(b.text(t))
		}
	}
	return "", nil
}

func (b *Binder) identifierType(name string, depth int) (string, *parse.Decl) {
	if v, ok := b.local(name); ok {
		if tn, td := b.namedType(v.Type); tn != "" {
			return tn, td
		}
		if v.Value != nil {
			return b.typeOf(v.Value, depth+1)
		}
		return "", nil
	}
	for t := b.owner; t != nil; t = t.Parent {
		if d := b.p.member(t, name, -1, 0, isValue); d != nil {
			return b.namedType(d.TypeName)
		}
	}
	if d := b.p.index.ResolveType(name, b.file, b.namespace()); d != nil {
		return d.Symbol.Name, d
	}
	if r := []rune(name); len(r) > 0 && unicode.IsUpper(r[0]) {
		return name, nil // static access on an external type
	}
	return "", nil
}

// namedType maps a declared type expression to its simple name and project
// declaration. Inferred types (var) yield "".
func (b *Binder) namedType(text string) (string, *parse.Decl) {
	name := lang.TypeName(text)
	switch name {
	case "", "var", "val", "dynamic", "void":
		return "", nil
	}
	if d := b.p.index.ResolveType(text, b.file, b.namespace()); d != nil {
		return d.Symbol.Name, d
	}
	return name, nil
}

// local looks up a parameter or local variable of the enclosing member.
// Scoping inside the body is not modelled: any declaration in the member
// with the name matches.
func (b *Binder) local(name string) (lang.Var, bool) {
	if b.locals == nil {
		b.locals = make(map[string]lang.Var)
		if b.scope != nil && b.scope.Symbol.Kind != model.Type {
			for _, p := range b.scope.Params {
				b.locals[p.Name] = lang.Var{Name: p.Name, Type: p.Type}
			}
			b.collectLocals(b.scope.Node)
		}
	}
	v, ok := b.locals[name]
	return v, ok
}

func (b *Binder) collectLocals(node *sitter.Node) {
	l := b.lang()
	if l.LocalVarKinds[node.Type()] {
		for _, v := range l.Variables(node, b.file.Source) {
			if _, dup := b.locals[v.Name]; !dup {
				b.locals[v.Name] = v
			}
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.collectLocals(node.NamedChild(i))
	}
}

// resolveOccurrence returns the symbols an identifier occurrence refers to.
// An object creation refers to both the type and the chosen constructor.
func (b *Binder) resolveOccurrence(id *sitter.Node) []*model.Symbol {
	l := b.lang()
	name := b.text(id)

	if call := b.callFor(id); call != nil {
		if sym := b.ResolveCall(call); sym != nil {
			return []*model.Symbol{sym}
		}
		return nil
	}

	if parent := id.Parent(); parent != nil && l.MemberKinds[parent.Type()] {
		recv, member := l.Member(parent)
		if lang.SameNode(member, id) {
			if _, td := b.typeOf(recv, 0); td != nil {
				if d := b.p.member(td, name, -1, 0, isAnyMember); d != nil {
					return []*model.Symbol{d.Symbol}
				}
				return nil
			}
			// Namespace-qualified type access such as Ns.Sub.Type.
			if recv != nil && simpleChainRe.MatchString(b.text(recv)) {
				if d := b.p.index.ResolveType(b.text(recv)+"."+name, b.file, b.namespace()); d != nil && d.Symbol.Name == name {
					return []*model.Symbol{d.Symbol}
				}
			}
			return nil
		}
	}

	if creation := b.creationFor(id); creation != nil {
		td := b.p.index.ResolveType(l.CreatedType(creation, b.file.Source), b.file, b.namespace())
		if td == nil {
			return nil
		}
		syms := []*model.Symbol{td.Symbol}
		args := lang.CountArgs(creation.ChildByFieldName("arguments"))
		if ctor := b.p.member(td, td.Symbol.Name, args, 0, isConstructor); ctor != nil {
			syms = append(syms, ctor.Symbol)
		}
		return syms
	}

	if _, ok := b.local(name); ok {
		return nil
	}
	for t := b.owner; t != nil; t = t.Parent {
		if d := b.p.member(t, name, -1, 0, isAnyMember); d != nil {
			return []*model.Symbol{d.Symbol}
		}
	}
	if d := b.p.index.ResolveType(name, b.file, b.namespace()); d != nil {
		return []*model.Symbol{d.Symbol}
	}
	return nil
}

// callFor returns the invocation whose callee name is id, or nil.
func (b *Binder) callFor(id *sitter.Node) *sitter.Node {
	l := b.lang()
	n := id.Parent()
	for i := 0; n != nil && i < 3; i++ {
		if l.CallKinds[n.Type()] {
			if parts, ok := l.Call(n, b.file.Source); ok && lang.SameNode(parts.NameNode, id) {
				return n
			}
			return nil
		}
		n = n.Parent()
	}
	return nil
}

// creationFor returns the object creation whose type name is id, or nil.
func (b *Binder) creationFor(id *sitter.Node) *sitter.Node {
	l := b.lang()
	n := id.Parent()
	for i := 0; n != nil && i < 3; i++ {
		if l.CreationKinds[n.Type()] {
			t := n.ChildByFieldName("type")
			if t == nil || id.StartByte() < t.StartByte() || id.EndByte() > t.EndByte() {
				return nil
			}
			if lang.TypeName(b.text(t)) != b.text(id) {
				return nil
			}
			return n
		}
		n = n.Parent()
	}
	return nil
}

// member finds a member of t or of its project base types, breadth-first.
// args filters overloads by arity when non-negative; if no overload has the
// arity, the first declared one is used.
func (p *Project) member(t *parse.Decl, name string, args, typeArgs int, want func(*model.Symbol) bool) *parse.Decl {
	seen := make(map[model.SymbolID]struct{})
	queue := []*parse.Decl{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur.Symbol.ID]; ok {
			continue
		}
		seen[cur.Symbol.ID] = struct{}{}
		if d := pickMember(cur.Members, name, args, typeArgs, want); d != nil {
			return d
		}
		for _, base := range p.index.Bases(cur.Symbol) {
			if bd := p.index.Decl(base); bd != nil {
				queue = append(queue, bd)
			}
		}
	}
	return nil
}

// pickMember picks the member named name, preferring the overload whose
// parameter and type parameter counts match the call. args < 0 matches any
// overload.
func pickMember(members []*parse.Decl, name string, args, typeArgs int, want func(*model.Symbol) bool) *parse.Decl {
	var arity, first *parse.Decl
	for _, m := range members {
		if m.Symbol.Name != name || !want(m.Symbol) {
			continue
		}
		if args < 0 {
			return m
		}
		if len(m.Params) == args {
			if m.TypeParams == typeArgs {
				return m
			}
			if arity == nil {
				arity = m
			}
		}
		if first == nil {
			first = m
		}
	}
	if arity != nil {
		return arity
	}
	return first
}

// uniqueMethod returns the only project method with the name (preferring
// the arity), or nil when the name is absent or ambiguous.
func (p *Project) uniqueMethod(name string, args, typeArgs int) *parse.Decl {
	var all, arity, generic []*parse.Decl
	for _, d := range p.index.Named(name) {
		if !isMethod(d.Symbol) {
			continue
		}
		all = append(all, d)
		if len(d.Params) == args {
			arity = append(arity, d)
			if d.TypeParams == typeArgs {
				generic = append(generic, d)
			}
		}
	}
	switch {
	case len(arity) == 1:
		return arity[0]
	case len(generic) == 1:
		return generic[0]
	case len(all) == 1:
		return all[0]
	}
	return nil
}

func isMethod(s *model.Symbol) bool {
	return s.Kind == model.Method && !s.Constructor
}

func isConstructor(s *model.Symbol) bool {
	return s.Kind == model.Method && s.Constructor
}

func isValue(s *model.Symbol) bool {
	return s.Kind == model.Field || s.Kind == model.Property
}

func isAnyMember(s *model.Symbol) bool {
	return s.Kind != model.Type && !s.Constructor
}
