package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

func init() {
	Languages["java"] = &Language{
		Name:         "java",
		Extensions:   []string{".java"},
		ProjectFiles: []string{"pom.xml", "build.gradle", "build.gradle.kts"},
		lang:         java.GetLanguage(),

		NamespaceKinds:     set(),
		FileNamespaceKinds: set("package_declaration"),
		ImportKinds:        set("import_declaration"),
		TypeKinds: map[string]string{
			"class_declaration":           "class",
			"interface_declaration":       "interface",
			"enum_declaration":            "enum",
			"record_declaration":          "record",
			"annotation_type_declaration": "@interface",
		},
		MethodKinds:      set("method_declaration"),
		ConstructorKinds: set("constructor_declaration", "compact_constructor_declaration"),
		PropertyKinds:    set(),
		FieldKinds:       set("field_declaration", "constant_declaration"),
		EnumMemberKinds:  set("enum_constant"),
		LocalVarKinds:    set("local_variable_declaration", "enhanced_for_statement"),

		LoopKinds: map[string]string{
			"for_statement":          "for",
			"enhanced_for_statement": "foreach",
			"while_statement":        "while",
			"do_statement":           "do",
		},
		BranchKinds:     set("if_statement", "ternary_expression"),
		LogicalKinds:    set("binary_expression"),
		CallKinds:       set("method_invocation"),
		CreationKinds:   set("object_creation_expression"),
		MemberKinds:     set("field_access"),
		IdentifierKinds: set("identifier", "type_identifier"),

		SelfKeyword:  "this",
		BaseKeywords: []string{"super"},

		NamespaceName: func(node *sitter.Node, source []byte) string {
			if n := childOfType(node, "scoped_identifier", "identifier"); n != nil {
				return CollapseWhitespace(NodeText(n, source))
			}
			return ""
		},
		ImportedNamespace: javaImportedNamespace,
		BaseTypes:         javaBaseTypes,
		Parameters:        javaParameters,
		ReturnType: func(node *sitter.Node, source []byte) string {
			return fieldText(node, "type", source)
		},
		Variables: javaVariables,
		Body: func(node *sitter.Node) *sitter.Node {
			return node.ChildByFieldName("body")
		},
		Call: javaCall,
		Member: func(node *sitter.Node) (receiver, name *sitter.Node) {
			return node.ChildByFieldName("object"), node.ChildByFieldName("field")
		},
		CreatedType: func(node *sitter.Node, source []byte) string {
			return fieldText(node, "type", source)
		},
		CaseLabels: javaCaseLabels,
	}
}

// javaCaseLabels counts each constant or pattern of a case label, so
// `case 1, 2 ->` counts twice like two C# labels would.
func javaCaseLabels(node *sitter.Node, _ []byte) int {
	if node.Type() != "switch_label" || !hasToken(node, "case") {
		return 0
	}
	n := 0
	for _, c := range namedChildren(node) {
		if c.Type() != "comment" && c.Type() != "guard" {
			n++
		}
	}
	return max(n, 1)
}

// javaImportedNamespace handles `import a.b.C;` and `import a.b.*;`.
// Static imports do not import a namespace.
func javaImportedNamespace(node *sitter.Node, source []byte) string {
	if hasToken(node, "static") {
		return ""
	}
	id := childOfType(node, "scoped_identifier", "identifier")
	if id == nil {
		return ""
	}
	name := CollapseWhitespace(NodeText(id, source))
	if childOfType(node, "asterisk") != nil {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

func javaBaseTypes(node *sitter.Node, source []byte) []BaseRef {
	var refs []BaseRef
	if sc := node.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
		refs = append(refs, BaseRef{Name: CollapseWhitespace(NodeText(sc.NamedChild(0), source))})
	}
	lists := []*sitter.Node{node.ChildByFieldName("interfaces"), childOfType(node, "extends_interfaces")}
	for _, l := range lists {
		if l == nil {
			continue
		}
		types := l
		if tl := childOfType(l, "type_list"); tl != nil {
			types = tl
		}
		for _, t := range namedChildren(types) {
			refs = append(refs, BaseRef{Name: CollapseWhitespace(NodeText(t, source)), Interface: true})
		}
	}
	return refs
}

func javaParameters(node *sitter.Node, source []byte) []Param {
	list := node.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}
	var params []Param
	for _, c := range namedChildren(list) {
		switch c.Type() {
		case "formal_parameter":
			params = append(params, Param{
				Name: fieldText(c, "name", source),
				Type: fieldText(c, "type", source),
			})
		case "spread_parameter":
			p := Param{}
			for _, part := range namedChildren(c) {
				switch part.Type() {
				case "variable_declarator":
					p.Name = fieldText(part, "name", source)
				case "modifiers":
				default:
					if p.Type == "" {
						p.Type = CollapseWhitespace(NodeText(part, source)) + "..."
					}
				}
			}
			params = append(params, p)
		}
	}
	return params
}

func javaVariables(node *sitter.Node, source []byte) []Var {
	typ := fieldText(node, "type", source)
	if node.Type() == "enhanced_for_statement" {
		name := node.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return []Var{{Name: NodeText(name, source), Type: typ, NameNode: name}}
	}
	var vars []Var
	for _, d := range namedChildren(node) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		vars = append(vars, Var{
			Name:     NodeText(name, source),
			Type:     typ,
			NameNode: name,
			Value:    d.ChildByFieldName("value"),
		})
	}
	return vars
}

func javaCall(node *sitter.Node, source []byte) (CallParts, bool) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return CallParts{}, false
	}
	return CallParts{
		Name:     NodeText(name, source),
		NameNode: name,
		Receiver: node.ChildByFieldName("object"),
		Args:     CountArgs(node.ChildByFieldName("arguments")),
		TypeArgs: CountArgs(node.ChildByFieldName("type_arguments")),
	}, true
}
