package render

import (
	"io"
	"strings"

	"github.com/phobologic/symtrace/internal/model"
)

func renderText(w io.Writer, report *model.Report) error {
	ew := &errWriter{w: w}
	ew.printf("Project: %s\n", report.Project)
	switch report.Variant {
	case model.ContextVariant:
		ew.printf("Relation Level: %s\n", report.Level)
		ew.printf("Symbols: %d\n", len(report.Nodes))
	default:
		ew.printf("Target: %s\n", report.Target)
		ew.printf("Mode: %s\n", report.Mode)
		ew.printf("Max Depth: %d\n", report.MaxDepth)
	}
	ew.printf("\n")

	for _, n := range report.Nodes {
		textNode(ew, n, 0)
	}
	return ew.err
}

func textNode(ew *errWriter, n *model.AnalysisNode, depth int) {
	ind := strings.Repeat("    ", depth)
	ew.printf("%sSymbol: %s (%s)\n", ind, n.Symbol.QualifiedName, kindLabel(n.Symbol))
	ew.printf("%sDefined at: %s\n", ind, definedAt(n.Symbol))

	if len(n.References) > 0 {
		ew.printf("%sReferences (%d):\n", ind, len(n.References))
		for i, r := range n.References {
			if i == maxTextReferences {
				ew.printf("%s  ... +%d more\n", ind, len(n.References)-maxTextReferences)
				break
			}
			ew.printf("%s  - %s\n", ind, refString(r))
			if r.Snippet != "" {
				for _, line := range strings.Split(r.Snippet, "\n") {
					ew.printf("%s      %s\n", ind, line)
				}
			}
		}
	}

	if a := n.InternalAnalysis; a != nil {
		ew.printf("%sInternal Analysis:\n", ind)
		ew.printf("%s  Metrics: LOC=%d, Cyclomatic Complexity=%d, Parameters=%d\n",
			ind, a.Metrics.LinesOfCode, a.Metrics.CyclomaticComplexity, a.Metrics.ParameterCount)
		if len(a.Loops) > 0 {
			ew.printf("%s  Loops:\n", ind)
			for _, l := range a.Loops {
				ew.printf("%s    - %s (nesting %d) at line %d\n", ind, l.LoopKind, l.NestingLevel, l.Line)
			}
		}
		if len(a.DataAccessCalls) > 0 {
			ew.printf("%s  Data Access Calls:\n", ind)
			for _, d := range a.DataAccessCalls {
				loop := ""
				if d.InsideLoop {
					loop = " (inside loop)"
				}
				ew.printf("%s    - [%s] line %d%s: %s\n", ind, d.Kind, d.Line, loop, d.StatementText)
			}
		}
		if len(a.CodeSmells) > 0 {
			ew.printf("%s  Code Smells:\n", ind)
			for _, s := range a.CodeSmells {
				ew.printf("%s    - %s at line %d: %s\n", ind, s.Kind, s.Line, s.Description)
			}
		}
	}

	if len(n.Children) > 0 {
		ew.printf("%sCalls To:\n", ind)
		for _, c := range n.Children {
			textNode(ew, c, depth+1)
		}
	}
	ew.printf("\n")
}
