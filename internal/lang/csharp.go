package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

func init() {
	Languages["csharp"] = &Language{
		Name:         "csharp",
		Extensions:   []string{".cs"},
		ProjectFiles: []string{".sln", ".slnx", ".csproj"},
		lang:         csharp.GetLanguage(),

		NamespaceKinds:     set("namespace_declaration"),
		FileNamespaceKinds: set("file_scoped_namespace_declaration"),
		ImportKinds:        set("using_directive"),
		TypeKinds: map[string]string{
			"class_declaration":         "class",
			"struct_declaration":        "struct",
			"interface_declaration":     "interface",
			"record_declaration":        "record",
			"record_struct_declaration": "record struct",
			"enum_declaration":          "enum",
		},
		MethodKinds:      set("method_declaration"),
		ConstructorKinds: set("constructor_declaration"),
		PropertyKinds:    set("property_declaration"),
		FieldKinds:       set("field_declaration", "event_field_declaration"),
		EnumMemberKinds:  set("enum_member_declaration"),
		LocalVarKinds:    set("variable_declaration", "for_each_statement", "foreach_statement"),

		LoopKinds: map[string]string{
			"for_statement":      "for",
			"for_each_statement": "foreach",
			"foreach_statement":  "foreach",
			"while_statement":    "while",
			"do_statement":       "do",
		},
		BranchKinds:     set("if_statement", "conditional_expression"),
		LogicalKinds:    set("binary_expression"),
		CallKinds:       set("invocation_expression"),
		CreationKinds:   set("object_creation_expression"),
		MemberKinds:     set("member_access_expression", "member_binding_expression"),
		IdentifierKinds: set("identifier"),

		SelfKeyword:  "this",
		BaseKeywords: []string{"base"},

		NamespaceName: func(node *sitter.Node, source []byte) string {
			return fieldText(node, "name", source)
		},
		ImportedNamespace: csImportedNamespace,
		BaseTypes:         csBaseTypes,
		Parameters:        csParameters,
		ReturnType:        csReturnType,
		Variables:         csVariables,
		Body:              csBody,
		Call:              csCall,
		Member:            csMember,
		CreatedType: func(node *sitter.Node, source []byte) string {
			return fieldText(node, "type", source)
		},
		CaseLabels: csCaseLabels,
	}
}

// csImportedNamespace handles `using A.B;`. Static and alias directives do
// not import a namespace.
func csImportedNamespace(node *sitter.Node, source []byte) string {
	if hasToken(node, "static", "=") || childOfType(node, "name_equals") != nil {
		return ""
	}
	named := namedChildren(node)
	if len(named) == 0 {
		return ""
	}
	return CollapseWhitespace(NodeText(named[len(named)-1], source))
}

func csBaseTypes(node *sitter.Node, source []byte) []BaseRef {
	list := childOfType(node, "base_list")
	if list == nil {
		return nil
	}
	var refs []BaseRef
	for _, c := range namedChildren(list) {
		switch c.Type() {
		case "argument_list", "comment":
			continue
		}
		refs = append(refs, BaseRef{Name: CollapseWhitespace(NodeText(c, source))})
	}
	return refs
}

func csParameters(node *sitter.Node, source []byte) []Param {
	list := node.ChildByFieldName("parameters")
	if list == nil {
		list = childOfType(node, "parameter_list")
	}
	if list == nil {
		return nil
	}
	var params []Param
	for _, c := range namedChildren(list) {
		if c.Type() != "parameter" && c.Type() != "parameter_array" {
			continue
		}
		p := Param{
			Name: fieldText(c, "name", source),
			Type: fieldText(c, "type", source),
		}
		if p.Name == "" {
			if id := lastOfType(c, "identifier"); id != nil {
				p.Name = NodeText(id, source)
			}
		}
		if p.Type == "" {
			p.Type = strings.TrimSpace(strings.TrimSuffix(CollapseWhitespace(NodeText(c, source)), p.Name))
			p.Type = strings.TrimPrefix(p.Type, "params ")
		}
		params = append(params, p)
	}
	return params
}

func csReturnType(node *sitter.Node, source []byte) string {
	for _, field := range []string{"returns", "type"} {
		if t := fieldText(node, field, source); t != "" {
			return t
		}
	}
	if vd := childOfType(node, "variable_declaration"); vd != nil {
		return fieldText(vd, "type", source)
	}
	return ""
}

func csVariables(node *sitter.Node, source []byte) []Var {
	switch node.Type() {
	case "for_each_statement", "foreach_statement":
		left := node.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			return nil
		}
		return []Var{{
			Name:     NodeText(left, source),
			Type:     fieldText(node, "type", source),
			NameNode: left,
		}}
	case "variable_declaration":
		return csDeclarators(node, source)
	}
	if vd := childOfType(node, "variable_declaration"); vd != nil {
		return csDeclarators(vd, source)
	}
	return nil
}

func csDeclarators(vd *sitter.Node, source []byte) []Var {
	typ := fieldText(vd, "type", source)
	var vars []Var
	for _, d := range namedChildren(vd) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			name = childOfType(d, "identifier")
		}
		if name == nil {
			continue
		}
		vars = append(vars, Var{
			Name:     NodeText(name, source),
			Type:     typ,
			NameNode: name,
			Value:    csInitializer(d),
		})
	}
	return vars
}

// csInitializer returns the initializer expression of a declarator. Older
// grammars wrap it in equals_value_clause; newer ones inline `= expr`.
func csInitializer(d *sitter.Node) *sitter.Node {
	if ev := childOfType(d, "equals_value_clause"); ev != nil && ev.NamedChildCount() > 0 {
		return ev.NamedChild(0)
	}
	seenEquals := false
	for i := 0; i < int(d.ChildCount()); i++ {
		c := d.Child(i)
		if !c.IsNamed() && c.Type() == "=" {
			seenEquals = true
			continue
		}
		if seenEquals && c.IsNamed() {
			return c
		}
	}
	return nil
}

func csBody(node *sitter.Node) *sitter.Node {
	if b := node.ChildByFieldName("body"); b != nil {
		return b
	}
	return childOfType(node, "arrow_expression_clause", "block")
}

func csCall(node *sitter.Node, source []byte) (CallParts, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil && node.NamedChildCount() > 0 {
		fn = node.NamedChild(0)
	}
	if fn == nil {
		return CallParts{}, false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		args = childOfType(node, "argument_list")
	}
	parts := CallParts{Args: CountArgs(args), TypeArgs: csTypeArgs(fn)}
	switch fn.Type() {
	case "identifier":
		parts.NameNode = fn
	case "generic_name":
		parts.NameNode = childOfType(fn, "identifier")
	case "member_access_expression", "member_binding_expression":
		parts.Receiver, parts.NameNode = csMember(fn)
	default:
		return CallParts{}, false
	}
	if parts.NameNode == nil {
		return CallParts{}, false
	}
	parts.Name = NodeText(parts.NameNode, source)
	return parts, true
}

// csTypeArgs counts the explicit type arguments of a callee expression.
func csTypeArgs(fn *sitter.Node) int {
	name := fn
	if fn.Type() != "generic_name" {
		name = fn.ChildByFieldName("name")
		if name == nil && fn.NamedChildCount() > 0 {
			name = fn.NamedChild(int(fn.NamedChildCount()) - 1)
		}
	}
	if name == nil || name.Type() != "generic_name" {
		return 0
	}
	return CountArgs(childOfType(name, "type_argument_list"))
}

func csMember(node *sitter.Node) (receiver, name *sitter.Node) {
	name = node.ChildByFieldName("name")
	if name == nil && node.NamedChildCount() > 0 {
		name = node.NamedChild(int(node.NamedChildCount()) - 1)
	}
	if name != nil && name.Type() == "generic_name" {
		name = childOfType(name, "identifier")
	}
	switch node.Type() {
	case "member_access_expression":
		receiver = node.ChildByFieldName("expression")
		if receiver == nil && node.NamedChildCount() > 1 {
			receiver = node.NamedChild(0)
		}
	case "member_binding_expression":
		// a?.B: the receiver is the condition of the enclosing conditional access.
		for p := node.Parent(); p != nil; p = p.Parent() {
			if p.Type() == "conditional_access_expression" {
				receiver = p.ChildByFieldName("condition")
				if receiver == nil && p.NamedChildCount() > 0 {
					receiver = p.NamedChild(0)
				}
				break
			}
		}
	}
	return receiver, name
}

func csCaseLabels(node *sitter.Node, source []byte) int {
	switch node.Type() {
	case "switch_section":
		n := 0
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			switch {
			case c.Type() == "case_switch_label", c.Type() == "case_pattern_switch_label":
				n++
			case !c.IsNamed() && c.Type() == "case":
				n++
			}
		}
		return n
	case "switch_expression_arm":
		if node.NamedChildCount() == 0 {
			return 0
		}
		pattern := node.NamedChild(0)
		if pattern.Type() == "discard" || strings.TrimSpace(NodeText(pattern, source)) == "_" {
			return 0
		}
		return 1
	}
	return 0
}

func lastOfType(node *sitter.Node, kind string) *sitter.Node {
	var last *sitter.Node
	for _, c := range namedChildren(node) {
		if c.Type() == kind {
			last = c
		}
	}
	return last
}
