// Package callchain builds depth-bounded, cycle-safe analysis trees rooted at
// a target symbol.
package callchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phobologic/symtrace/internal/codemodel"
	"github.com/phobologic/symtrace/internal/logging"
	"github.com/phobologic/symtrace/internal/model"
)

// Referencer finds the reference sites of a symbol.
type Referencer interface {
	FindReferences(ctx context.Context, sym *model.Symbol, level model.SnippetLevel) ([]model.Reference, error)
}

// Inspector analyzes the body of a callable symbol and returns its callees.
type Inspector interface {
	Inspect(ctx context.Context, sym *model.Symbol) (*model.InternalAnalysis, []*model.Symbol, error)
}

// Options configures an Analyzer.
type Options struct {
	Mode model.AnalysisMode
	// MaxDepth bounds the tree; 0 analyzes the target only.
	MaxDepth        int
	Snippet         model.SnippetLevel
	IncludeExternal bool
	Logger          *slog.Logger
}

// Analyzer builds analysis trees.
type Analyzer struct {
	refs   Referencer
	insp   Inspector
	opts   Options
	logger *slog.Logger
}

// New returns an Analyzer.
func New(refs Referencer, insp Inspector, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Mode == "" {
		opts.Mode = model.Full
	}
	if opts.Snippet == "" {
		opts.Snippet = model.SnippetNone
	}
	return &Analyzer{refs: refs, insp: insp, opts: opts, logger: logger}
}

// Analyze returns the analysis tree rooted at root. Every symbol appears at
// most once in the tree, and no node is deeper than MaxDepth.
func (a *Analyzer) Analyze(ctx context.Context, root *model.Symbol) (*model.AnalysisNode, error) {
	return a.visit(ctx, root, 0, model.NewSymbolSet())
}

// visit returns nil without error when sym is pruned.
func (a *Analyzer) visit(ctx context.Context, sym *model.Symbol, depth int, visited *model.SymbolSet) (*model.AnalysisNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > a.opts.MaxDepth {
		a.logger.Log(ctx, logging.LevelTrace, "depth exceeded",
			slog.String("symbol", sym.QualifiedName), slog.Int("depth", depth))
		return nil, nil
	}
	if visited.Contains(sym) {
		a.logger.Log(ctx, logging.LevelTrace, "already visited",
			slog.String("symbol", sym.QualifiedName), slog.Int("depth", depth))
		return nil, nil
	}
	visited.Add(sym)

	node := &model.AnalysisNode{Symbol: sym}
	a.logger.Debug("analyzing symbol", slog.String("symbol", sym.QualifiedName), slog.Int("depth", depth))

	if a.opts.Mode.Outward() {
		refs, err := a.refs.FindReferences(ctx, sym, a.opts.Snippet)
		if err != nil {
			return nil, fmt.Errorf("finding references to %s: %w", sym.QualifiedName, err)
		}
		for _, r := range refs {
			node.References = append(node.References, r.Location)
		}
	}

	if !a.opts.Mode.Inward() || !sym.Kind.HasBody() || sym.External {
		return node, nil
	}
	analysis, called, err := a.insp.Inspect(ctx, sym)
	if errors.Is(err, codemodel.ErrSourceUnavailable) {
		a.logger.Debug("no body", slog.String("symbol", sym.QualifiedName))
		return node, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", sym.QualifiedName, err)
	}
	node.InternalAnalysis = analysis

	for _, callee := range called {
		if callee.External && !a.opts.IncludeExternal {
			continue
		}
		child, err := a.visit(ctx, callee, depth+1, visited)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}
