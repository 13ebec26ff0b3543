package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symtrace/internal/model"
)

func sampleReport() *model.Report {
	save := &model.Symbol{
		ID: 2, Name: "Save", QualifiedName: "Shop.Repo.Save(Order)", Kind: model.Method,
		Signature: "void Shop.Repo.Save(Order)",
		Location:  &model.Location{Path: "src/Repo.cs", Line: 12},
	}
	exec := &model.Symbol{
		ID: 3, Name: "ExecuteNonQuery", QualifiedName: "SqlCommand.ExecuteNonQuery", Kind: model.Method,
		Signature: "SqlCommand.ExecuteNonQuery", External: true,
	}
	root := &model.Symbol{
		ID: 1, Name: "Checkout", QualifiedName: "Shop.Cart.Checkout()", Kind: model.Method,
		Signature: "void Shop.Cart.Checkout()",
		Location:  &model.Location{Path: "src/Cart.cs", Line: 7},
	}
	return &model.Report{
		Project:  "Shop",
		Variant:  model.AnalysisVariant,
		Target:   "Checkout",
		Mode:     model.Full,
		MaxDepth: 2,
		Nodes: []*model.AnalysisNode{{
			Symbol: root,
			References: []model.ReferenceLocation{
				{Path: "src/Api.cs", Line: 40, Snippet: "cart.Checkout();"},
			},
			InternalAnalysis: &model.InternalAnalysis{
				Metrics: model.Metrics{LinesOfCode: 9, CyclomaticComplexity: 3, ParameterCount: 0},
				Loops:   []model.LoopInfo{{LoopKind: "foreach", NestingLevel: 1, Line: 9}},
			},
			Children: []*model.AnalysisNode{{
				Symbol: save,
				InternalAnalysis: &model.InternalAnalysis{
					Metrics: model.Metrics{LinesOfCode: 5, CyclomaticComplexity: 1, ParameterCount: 1},
					DataAccessCalls: []model.DataAccessCall{
						{Kind: "ExecuteNonQuery", StatementText: "cmd.ExecuteNonQuery()", Line: 15},
					},
					CodeSmells: []model.CodeSmell{
						{Kind: "UntypedDataContainer", Description: "instantiates untyped data container DataTable", Line: 13},
					},
				},
				Children: []*model.AnalysisNode{{Symbol: exec}},
			}},
		}},
	}
}

func render(t *testing.T, r *model.Report, f Format) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, f))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := map[string]Format{"text": Text, "TXT": Text, "json": JSON, "md": Markdown, "markdown": Markdown}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Shop_analysis.txt", FileName("Shop", model.AnalysisVariant, Text))
	assert.Equal(t, "Shop_context.json", FileName("Shop", model.ContextVariant, JSON))
	assert.Equal(t, "Shop_analysis.md", FileName("Shop", model.AnalysisVariant, Markdown))
}

func TestTextLayout(t *testing.T) {
	t.Parallel()

	out := render(t, sampleReport(), Text)
	want := `Project: Shop
Target: Checkout
Mode: full
Max Depth: 2

Symbol: Shop.Cart.Checkout() (method)
Defined at: src/Cart.cs:7
References (1):
  - src/Api.cs:40
      cart.Checkout();
Internal Analysis:
  Metrics: LOC=9, Cyclomatic Complexity=3, Parameters=0
  Loops:
    - foreach (nesting 1) at line 9
Calls To:
    Symbol: Shop.Repo.Save(Order) (method)
    Defined at: src/Repo.cs:12
    Internal Analysis:
      Metrics: LOC=5, Cyclomatic Complexity=1, Parameters=1
      Data Access Calls:
        - [ExecuteNonQuery] line 15: cmd.ExecuteNonQuery()
      Code Smells:
        - UntypedDataContainer at line 13: instantiates untyped data container DataTable
    Calls To:
        Symbol: SqlCommand.ExecuteNonQuery (method, external)
        Defined at: <no source location>

`
	// Each node ends with a blank line, so closing nodes stack them.
	want += "\n\n"
	assert.Equal(t, want, out)
}

func TestTextReferenceLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		refs     int
		wantList int
		wantTail string
	}{
		{0, 0, ""},
		{5, 5, ""},
		{6, 5, "  ... +1 more"},
		{12, 5, "  ... +7 more"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.refs), func(t *testing.T) {
			t.Parallel()

			r := sampleReport()
			r.Nodes[0].Children = nil
			r.Nodes[0].References = nil
			for i := range tt.refs {
				r.Nodes[0].References = append(r.Nodes[0].References, model.ReferenceLocation{Path: "a.cs", Line: i + 1})
			}
			out := render(t, r, Text)

			assert.Equal(t, tt.wantList, strings.Count(out, "  - a.cs:"))
			if tt.refs == 0 {
				assert.NotContains(t, out, "References")
			} else {
				assert.Contains(t, out, fmt.Sprintf("References (%d):", tt.refs))
			}
			if tt.wantTail == "" {
				assert.NotContains(t, out, "more")
			} else {
				assert.Contains(t, out, tt.wantTail+"\n")
			}
		})
	}
}

func TestTextContextHeader(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		Project: "Shop",
		Variant: model.ContextVariant,
		Level:   model.All,
		Nodes: []*model.AnalysisNode{
			{Symbol: &model.Symbol{ID: 1, QualifiedName: "Shop.Cart", Kind: model.Type, TypeKind: "class", Location: &model.Location{Path: "Cart.cs", Line: 3}}},
		},
	}
	out := render(t, r, Text)
	assert.True(t, strings.HasPrefix(out, "Project: Shop\nRelation Level: all\nSymbols: 1\n\n"))
	assert.Contains(t, out, "Symbol: Shop.Cart (class)\n")
	assert.NotContains(t, out, "Max Depth")
}

func TestJSONOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	out := render(t, sampleReport(), JSON)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotContains(t, doc, "relationLevel")

	results := doc["results"].([]any)
	root := results[0].(map[string]any)
	refs := root["references"].([]any)
	assert.Len(t, refs, 1)

	save := root["calledSymbols"].([]any)[0].(map[string]any)
	assert.NotContains(t, save, "references")
	assert.Contains(t, save, "internalAnalysis")

	exec := save["calledSymbols"].([]any)[0].(map[string]any)
	for _, key := range []string{"references", "internalAnalysis", "calledSymbols", "location", "signature"} {
		assert.NotContains(t, exec, key)
	}
	assert.Equal(t, true, exec["external"])

	analysis := root["internalAnalysis"].(map[string]any)
	assert.NotContains(t, analysis, "dataAccessCalls")
	assert.NotContains(t, analysis, "codeSmells")
	assert.NotContains(t, analysis["metrics"], "parameterCount")
}

func TestJSONFieldOrderIsStable(t *testing.T) {
	t.Parallel()

	out := render(t, sampleReport(), JSON)
	keys := []string{`"name"`, `"kind"`, `"signature"`, `"location"`, `"references"`, `"internalAnalysis"`, `"calledSymbols"`}
	last := -1
	for _, k := range keys {
		i := strings.Index(out, k)
		require.GreaterOrEqual(t, i, 0, k)
		assert.Greater(t, i, last, k)
		last = i
	}
	assert.Equal(t, out, render(t, sampleReport(), JSON))
}

func TestMarkdownLayout(t *testing.T) {
	t.Parallel()

	out := render(t, sampleReport(), Markdown)

	assert.True(t, strings.HasPrefix(out, "# Analysis: Shop\n"))
	assert.Contains(t, out, "## `Shop.Cart.Checkout()` (method)\n")
	assert.Contains(t, out, "### `Shop.Repo.Save(Order)` (method)\n")
	assert.Contains(t, out, "#### `SqlCommand.ExecuteNonQuery` (method, external)\n")
	assert.Contains(t, out, "- **References (1):**\n  - `src/Api.cs:40` `cart.Checkout();`\n")
	assert.Contains(t, out, "  - **Cyclomatic Complexity:** 3\n")
	assert.Contains(t, out, "- **Defined at:** `<no source location>`\n")
	assert.Equal(t, 2, strings.Count(out, "**Calls To:**"))
}

func TestMarkdownHeadingLevelCaps(t *testing.T) {
	t.Parallel()

	var node *model.AnalysisNode
	for i := 8; i >= 0; i-- {
		n := &model.AnalysisNode{Symbol: &model.Symbol{ID: model.SymbolID(i + 1), QualifiedName: fmt.Sprintf("M%d()", i), Kind: model.Method}}
		if node != nil {
			n.Children = []*model.AnalysisNode{node}
		}
		node = n
	}
	out := render(t, &model.Report{Project: "P", Variant: model.AnalysisVariant, Nodes: []*model.AnalysisNode{node}}, Markdown)

	assert.Contains(t, out, "\n###### `M4()` (method)\n")
	assert.Contains(t, out, "\n> ###### `M5()` (method)\n>\n> - **Defined at:**")
	assert.Contains(t, out, "\n> > > > ###### `M8()` (method)\n")
	assert.NotContains(t, out, "#######")
}

func chain(names ...string) *model.AnalysisNode {
	var node *model.AnalysisNode
	for i := len(names) - 1; i >= 0; i-- {
		n := &model.AnalysisNode{Symbol: &model.Symbol{ID: model.SymbolID(i + 1), QualifiedName: names[i] + "()", Kind: model.Method}}
		if node != nil {
			n.Children = []*model.AnalysisNode{node}
		}
		node = n
	}
	return node
}

func leaf(name string) *model.AnalysisNode {
	return &model.AnalysisNode{Symbol: &model.Symbol{QualifiedName: name + "()", Kind: model.Method}}
}

// TestMarkdownKeepsDeepTreeShape renders R>A>B>C>D>{E,F} and
// R>A>B>C>{D>E,F}; past the heading cap only nesting tells them apart.
func TestMarkdownKeepsDeepTreeShape(t *testing.T) {
	t.Parallel()

	wide := chain("R", "A", "B", "C", "D")
	d := wide.Children[0].Children[0].Children[0].Children[0]
	d.Children = []*model.AnalysisNode{leaf("E"), leaf("F")}

	deep := chain("R", "A", "B", "C", "D")
	c := deep.Children[0].Children[0].Children[0]
	c.Children[0].Children = []*model.AnalysisNode{leaf("E")}
	c.Children = append(c.Children, leaf("F"))

	report := func(n *model.AnalysisNode) *model.Report {
		return &model.Report{Project: "P", Variant: model.AnalysisVariant, Nodes: []*model.AnalysisNode{n}}
	}
	wideOut := render(t, report(wide), Markdown)
	deepOut := render(t, report(deep), Markdown)

	assert.NotEqual(t, wideOut, deepOut)
	assert.Contains(t, wideOut, "\n> ###### `E()` (method)\n")
	assert.Contains(t, wideOut, "\n> ###### `F()` (method)\n")
	assert.Contains(t, deepOut, "\n> ###### `E()` (method)\n")
	assert.Contains(t, deepOut, "\n###### `F()` (method)\n")

	// Text carries the same distinction through indentation.
	assert.NotEqual(t, render(t, report(wide), Text), render(t, report(deep), Text))
}

func TestCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`a.b`", code("a.b"))
	assert.Equal(t, "``a`b``", code("a`b"))
	assert.Equal(t, "`` `x ``", code("`x"))
}
