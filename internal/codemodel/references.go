package codemodel

import (
	"context"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/parse"
)

type binderKey struct {
	file *parse.File
	decl *parse.Decl
}

// FindReferences returns every site in the project that refers to sym, in
// file and source order. Each site carries its smallest enclosing
// declaration and, unless level is SnippetNone, a source snippet.
func (p *Project) FindReferences(ctx context.Context, sym *model.Symbol, level model.SnippetLevel) ([]model.Reference, error) {
	if sym == nil || sym.External {
		return nil, nil
	}
	binders := make(map[binderKey]*Binder)
	var refs []model.Reference

	for _, f := range p.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, id := range f.Idents[sym.Name] {
			if p.index.IsDeclName(f, id) {
				continue
			}
			scope := p.index.Enclosing(f, id)
			key := binderKey{file: f, decl: scope}
			b, ok := binders[key]
			if !ok {
				b = p.binderFor(f, scope)
				binders[key] = b
			}
			if !matchesAny(b.resolveOccurrence(id), sym) {
				continue
			}

			ref := model.Reference{
				Location: model.ReferenceLocation{Path: f.Path, Line: lang.Line(id)},
			}
			if scope != nil {
				ref.Referencing = scope.Symbol
			}
			if level != model.SnippetNone {
				ref.Location.Snippet = snippet(f, id, level)
			}
			refs = append(refs, ref)
		}
	}

	p.logger.Debug("references found",
		slog.String("symbol", sym.QualifiedName),
		slog.Int("count", len(refs)))
	return refs, nil
}

func matchesAny(syms []*model.Symbol, target *model.Symbol) bool {
	for _, s := range syms {
		if s.Same(target) {
			return true
		}
	}
	return false
}

// SnippetAt returns the source around a location: the trimmed line, or the
// smallest statement or declaration starting on that line. Unknown paths
// and lines yield "".
func (p *Project) SnippetAt(loc model.Location, level model.SnippetLevel) string {
	if level == model.SnippetNone {
		return ""
	}
	f, ok := p.byPath[loc.Path]
	if !ok {
		return ""
	}
	if level == model.SnippetLine {
		return sourceLine(f.Source, loc.Line)
	}
	node := nodeOnLine(f.Root(), loc.Line)
	if node == nil {
		return sourceLine(f.Source, loc.Line)
	}
	return snippet(f, node, level)
}

func snippet(f *parse.File, node *sitter.Node, level model.SnippetLevel) string {
	line := lang.Line(node)
	if level == model.SnippetBlock {
		if block := enclosingBlock(node); block != nil {
			return dedent(f.Source, block)
		}
	}
	return sourceLine(f.Source, line)
}

// enclosingBlock returns the nearest statement or member declaration
// containing node.
func enclosingBlock(node *sitter.Node) *sitter.Node {
	for n := node; n != nil; n = n.Parent() {
		kind := n.Type()
		if kind == "variable_declaration" {
			continue
		}
		if strings.HasSuffix(kind, "_statement") || strings.HasSuffix(kind, "_declaration") {
			return n
		}
	}
	return nil
}

// dedent returns the text of node with the indentation of its first line
// removed from every line.
func dedent(source []byte, node *sitter.Node) string {
	start := int(node.StartByte())
	lineStart := start
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	indent := string(source[lineStart:start])
	if strings.TrimSpace(indent) != "" {
		indent = ""
	}
	lines := strings.Split(string(source[start:node.EndByte()]), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = strings.TrimPrefix(strings.TrimRight(lines[i], "\r"), indent)
	}
	lines[0] = strings.TrimRight(lines[0], "\r")
	return strings.Join(lines, "\n")
}

// sourceLine returns the trimmed 1-based line of source, or "".
func sourceLine(source []byte, line int) string {
	if line < 1 {
		return ""
	}
	rest := string(source)
	for i := 1; i < line; i++ {
		j := strings.IndexByte(rest, '\n')
		if j < 0 {
			return ""
		}
		rest = rest[j+1:]
	}
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// nodeOnLine returns the first named leaf-most node that starts on line.
func nodeOnLine(root *sitter.Node, line int) *sitter.Node {
	row := uint32(line - 1)
	n := root
	for {
		var next *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.StartPoint().Row <= row && c.EndPoint().Row >= row {
				next = c
				break
			}
		}
		if next == nil {
			if n.StartPoint().Row == row {
				return n
			}
			return nil
		}
		if next.StartPoint().Row == row && next.NamedChildCount() == 0 {
			return next
		}
		n = next
	}
}
