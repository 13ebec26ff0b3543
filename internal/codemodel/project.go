// Package codemodel is the code model service: it loads a project from disk,
// indexes its declarations and answers symbol, reference, hierarchy and
// syntax queries for the analysis engine.
package codemodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/symtrace/internal/discover"
	"github.com/phobologic/symtrace/internal/graph"
	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/parse"
)

// ErrSourceUnavailable is returned when a symbol has no source-backed body.
var ErrSourceUnavailable = errors.New("source unavailable")

var errNoSources = errors.New("no source files found")

// LoadError reports that a project could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading project %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Options configures Load.
type Options struct {
	// Languages overrides detection from the project file.
	Languages   []string
	Exclude     []string
	MaxFileSize int64
	// Workers bounds concurrent parsing; zero means GOMAXPROCS.
	Workers  int
	Logger   *slog.Logger
	Warnings io.Writer
}

// Project is a loaded, indexed project.
type Project struct {
	Name string
	Root string

	files  []*parse.File
	byPath map[string]*parse.File
	index  *graph.Index
	logger *slog.Logger
}

// Load discovers, parses and indexes the project at path. path may be a
// solution or project file, whose directory becomes the project root, or a
// directory.
func Load(ctx context.Context, path string, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	root, name := abs, filepath.Base(abs)
	languages := opts.Languages
	if !info.IsDir() {
		langName := lang.ForProjectFile(abs)
		if langName == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported project file %s", filepath.Base(abs))}
		}
		root = filepath.Dir(abs)
		name = projectName(abs, langName)
		if len(languages) == 0 {
			languages = []string{langName}
		}
	}

	entries, err := discover.Files(root, discover.Options{
		Languages:   languages,
		Exclude:     opts.Exclude,
		MaxFileSize: opts.MaxFileSize,
		Warnings:    opts.Warnings,
	})
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("discovering files: %w", err)}
	}
	if len(entries) == 0 {
		return nil, &LoadError{Path: path, Err: errNoSources}
	}

	files, err := parseAll(ctx, root, entries, opts.Workers)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	p := &Project{
		Name:   name,
		Root:   root,
		files:  files,
		byPath: make(map[string]*parse.File, len(files)),
		index:  graph.Build(files),
		logger: logger,
	}
	for _, f := range files {
		p.byPath[f.Path] = f
		if f.HasErrors {
			logger.Warn("syntax errors in file", slog.String("path", f.Path))
		}
	}

	logger.Info("project loaded",
		slog.String("name", name),
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("declarations", len(p.index.Decls())),
		slog.Duration("elapsed", time.Since(start)))
	return p, nil
}

// projectName is the project file's base name without extension. Build files
// with fixed names (pom.xml, build.gradle) take the directory name instead.
func projectName(path, langName string) string {
	base := filepath.Base(path)
	for _, pf := range lang.Languages[langName].ProjectFiles {
		if strings.EqualFold(pf, base) {
			return filepath.Base(filepath.Dir(path))
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parseAll parses entries concurrently and returns them in discovery order.
func parseAll(ctx context.Context, root string, entries []discover.FileEntry, workers int) ([]*parse.File, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Parsers are not thread-safe; each task borrows one exclusively.
	pools := make(map[string]*sync.Pool)
	for _, e := range entries {
		if _, ok := pools[e.Language]; ok {
			continue
		}
		l := lang.Languages[e.Language]
		pools[e.Language] = &sync.Pool{New: func() any { return l.NewParser() }}
	}

	files := make([]*parse.File, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(filepath.Join(root, e.Path))
			if err != nil {
				return fmt.Errorf("reading %s: %w", e.Path, err)
			}
			pool := pools[e.Language]
			parser := pool.Get().(*sitter.Parser)
			defer pool.Put(parser)

			f, err := parse.Source(gctx, parser, lang.Languages[e.Language], filepath.ToSlash(e.Path), source)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", e.Path, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
		return nil, err
	}
	return files, nil
}

// Close releases every syntax tree. The project must not be used afterwards.
func (p *Project) Close() {
	for _, f := range p.files {
		f.Close()
	}
}

// FileCount returns the number of parsed files.
func (p *Project) FileCount() int {
	return len(p.files)
}

// AllDeclarations returns every declared symbol accepted by pred, in file
// order. A nil pred accepts everything.
func (p *Project) AllDeclarations(pred func(*model.Symbol) bool) []*model.Symbol {
	var out []*model.Symbol
	for _, d := range p.index.Decls() {
		if pred == nil || pred(d.Symbol) {
			out = append(out, d.Symbol)
		}
	}
	return out
}

// DeclarationsNamed returns the declarations whose short name is name.
func (p *Project) DeclarationsNamed(name string) []*model.Symbol {
	decls := p.index.Named(name)
	out := make([]*model.Symbol, len(decls))
	for i, d := range decls {
		out[i] = d.Symbol
	}
	return out
}

// FindExactDeclaration returns the first declaration whose qualified display
// name equals qualifiedName exactly, or nil.
func (p *Project) FindExactDeclaration(qualifiedName string) *model.Symbol {
	for _, d := range p.index.Named(ShortName(qualifiedName)) {
		if d.Symbol.QualifiedName == qualifiedName {
			return d.Symbol
		}
	}
	return nil
}

// ShortName returns the simple identifier of a qualified display name:
// parameter lists and qualifiers are dropped.
func ShortName(qualifiedName string) string {
	name := qualifiedName
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// Members returns the declared members of a type, nested types excluded.
func (p *Project) Members(sym *model.Symbol) []*model.Symbol {
	d := p.index.Decl(sym)
	if d == nil || !sym.Kind.HasMembers() {
		return nil
	}
	var out []*model.Symbol
	for _, m := range d.Members {
		if m.Symbol.Kind != model.Type {
			out = append(out, m.Symbol)
		}
	}
	return out
}

// BaseTypes returns the base class and implemented interfaces of a type in
// declaration order. Bases outside the project are external symbols.
func (p *Project) BaseTypes(sym *model.Symbol) []*model.Symbol {
	if !sym.Kind.HasMembers() {
		return nil
	}
	return p.index.Bases(sym)
}

// FindDerivedTypes returns every project type deriving from or implementing
// sym, transitively.
func (p *Project) FindDerivedTypes(ctx context.Context, sym *model.Symbol) ([]*model.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !sym.Kind.HasMembers() {
		return nil, nil
	}
	return p.index.Derived(sym), nil
}

// Body is the syntax of one callable unit.
type Body struct {
	Symbol         *model.Symbol
	Decl           *sitter.Node // whole declaration
	Node           *sitter.Node // block or expression body
	Source         []byte
	Lang           *lang.Language
	ParameterCount int

	decl *parse.Decl
}

// BodyOf returns the body of a callable symbol. Symbols without a
// source-backed body yield ErrSourceUnavailable.
func (p *Project) BodyOf(sym *model.Symbol) (*Body, error) {
	d := p.index.Decl(sym)
	if d == nil || !sym.Kind.HasBody() || d.Body == nil {
		return nil, fmt.Errorf("%s: %w", sym.QualifiedName, ErrSourceUnavailable)
	}
	return &Body{
		Symbol:         sym,
		Decl:           d.Node,
		Node:           d.Body,
		Source:         d.File.Source,
		Lang:           d.File.Lang,
		ParameterCount: len(d.Params),
		decl:           d,
	}, nil
}

// RelativePath returns abs relative to the project root with forward
// slashes, or abs unchanged when it lies outside the root.
func (p *Project) RelativePath(abs string) string {
	rel, err := filepath.Rel(p.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}
