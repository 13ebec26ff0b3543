package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/symtrace/internal/model"
)

func renderMarkdown(w io.Writer, report *model.Report) error {
	ew := &errWriter{w: w}
	switch report.Variant {
	case model.ContextVariant:
		ew.printf("# Context: %s\n\n", report.Project)
		ew.printf("- **Relation Level:** %s\n", report.Level)
		ew.printf("- **Symbols:** %d\n\n", len(report.Nodes))
	default:
		ew.printf("# Analysis: %s\n\n", report.Project)
		ew.printf("- **Target:** `%s`\n", report.Target)
		ew.printf("- **Mode:** %s\n", report.Mode)
		ew.printf("- **Max Depth:** %d\n\n", report.MaxDepth)
	}
	for _, n := range report.Nodes {
		markdownNode(ew, n, 0)
	}
	return ew.err
}

// maxHeading is the deepest Markdown heading. Nodes below it are nested in
// one more blockquote per level.
const maxHeading = 6

func markdownNode(ew *errWriter, n *model.AnalysisNode, depth int) {
	var b strings.Builder
	level := min(depth+2, maxHeading)
	fmt.Fprintf(&b, "%s %s (%s)\n\n", strings.Repeat("#", level), code(n.Symbol.QualifiedName), kindLabel(n.Symbol))
	fmt.Fprintf(&b, "- **Defined at:** %s\n", code(definedAt(n.Symbol)))

	if len(n.References) > 0 {
		fmt.Fprintf(&b, "- **References (%d):**\n", len(n.References))
		for _, r := range n.References {
			fmt.Fprintf(&b, "  - %s", code(refString(r)))
			if r.Snippet != "" {
				fmt.Fprintf(&b, " %s", code(strings.Join(strings.Fields(r.Snippet), " ")))
			}
			b.WriteString("\n")
		}
	}

	if a := n.InternalAnalysis; a != nil {
		b.WriteString("- **Internal Analysis:**\n")
		fmt.Fprintf(&b, "  - **Lines of Code:** %d\n", a.Metrics.LinesOfCode)
		fmt.Fprintf(&b, "  - **Cyclomatic Complexity:** %d\n", a.Metrics.CyclomaticComplexity)
		fmt.Fprintf(&b, "  - **Parameters:** %d\n", a.Metrics.ParameterCount)
		if len(a.Loops) > 0 {
			b.WriteString("  - **Loops:**\n")
			for _, l := range a.Loops {
				fmt.Fprintf(&b, "    - %s (nesting %d) at line %d\n", l.LoopKind, l.NestingLevel, l.Line)
			}
		}
		if len(a.DataAccessCalls) > 0 {
			b.WriteString("  - **Data Access Calls:**\n")
			for _, d := range a.DataAccessCalls {
				loop := ""
				if d.InsideLoop {
					loop = " (inside loop)"
				}
				fmt.Fprintf(&b, "    - [%s] line %d%s: %s\n", d.Kind, d.Line, loop, code(d.StatementText))
			}
		}
		if len(a.CodeSmells) > 0 {
			b.WriteString("  - **Code Smells:**\n")
			for _, s := range a.CodeSmells {
				fmt.Fprintf(&b, "    - %s at line %d: %s\n", s.Kind, s.Line, s.Description)
			}
		}
	}
	if len(n.Children) > 0 {
		b.WriteString("\n**Calls To:**\n")
	}
	writeQuoted(ew, max(depth+2-maxHeading, 0), b.String())

	for _, c := range n.Children {
		markdownNode(ew, c, depth+1)
	}
}

// writeQuoted writes block inside quotes levels of blockquote, followed by
// an unquoted blank line that closes the quote.
func writeQuoted(ew *errWriter, quotes int, block string) {
	prefix := strings.Repeat("> ", quotes)
	for _, line := range strings.Split(strings.TrimSuffix(block, "\n"), "\n") {
		ew.printf("%s\n", strings.TrimRight(prefix+line, " "))
	}
	ew.printf("\n")
}

// code wraps s in an inline code span, widening the fence when s contains
// backticks.
func code(s string) string {
	fence := "`"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
