// Package resolve turns a user target into exactly one callable symbol.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/phobologic/symtrace/internal/model"
)

const (
	suggestionThreshold = 0.8
	maxSuggestions      = 3
)

// Model is the part of the code model resolution needs.
type Model interface {
	FindExactDeclaration(qualifiedName string) *model.Symbol
	DeclarationsNamed(name string) []*model.Symbol
	AllDeclarations(pred func(*model.Symbol) bool) []*model.Symbol
}

// Prompter asks the operator to choose among options and returns the
// 0-based index of the choice.
type Prompter interface {
	PromptSelection(options []string) (int, error)
}

// NotFoundError reports that no declaration matched the target.
type NotFoundError struct {
	Target      string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("symbol %q not found", e.Target)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

// AmbiguousError reports that a short name matched several methods and no
// prompt was available to choose.
type AmbiguousError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("name %q is ambiguous; candidates:\n  %s", e.Name, strings.Join(e.Candidates, "\n  "))
}

// Resolver resolves targets against a Model.
type Resolver struct {
	m        Model
	prompter Prompter
	logger   *slog.Logger
}

// New returns a Resolver. A nil prompter makes resolution non-interactive.
func New(m Model, prompter Prompter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{m: m, prompter: prompter, logger: logger}
}

// Resolve dispatches on the kind of target.
func (r *Resolver) Resolve(ctx context.Context, target model.TargetSpec) (*model.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("resolving target", slog.String("target", target.Text()), slog.String("kind", fmt.Sprintf("%T", target)))
	switch t := target.(type) {
	case model.ExactName:
		return r.ResolveExact(string(t))
	case model.ShortName:
		return r.ResolveShortName(string(t))
	}
	return nil, fmt.Errorf("unsupported target %T", target)
}

// ResolveExact returns the declaration whose qualified name is exactly
// qualifiedName.
func (r *Resolver) ResolveExact(qualifiedName string) (*model.Symbol, error) {
	if sym := r.m.FindExactDeclaration(qualifiedName); sym != nil {
		r.logger.Info("target resolved", slog.String("target", qualifiedName))
		return sym, nil
	}
	all := r.m.AllDeclarations(nil)
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.QualifiedName
	}
	return nil, &NotFoundError{Target: qualifiedName, Suggestions: suggest(qualifiedName, names)}
}

// ResolveShortName returns the only method named name, or asks the prompter
// to choose when several match. Constructors are not candidates.
func (r *Resolver) ResolveShortName(name string) (*model.Symbol, error) {
	set := model.NewSymbolSet()
	for _, s := range r.m.DeclarationsNamed(name) {
		if s.Kind == model.Method && !s.Constructor {
			set.Add(s)
		}
	}
	cands := set.Symbols()
	switch set.Len() {
	case 0:
		methods := r.m.AllDeclarations(func(s *model.Symbol) bool {
			return s.Kind == model.Method && !s.Constructor
		})
		names := make([]string, 0, len(methods))
		seen := make(map[string]bool)
		for _, m := range methods {
			if !seen[m.Name] {
				seen[m.Name] = true
				names = append(names, m.Name)
			}
		}
		return nil, &NotFoundError{Target: name, Suggestions: suggest(name, names)}
	case 1:
		r.logger.Info("target resolved", slog.String("target", cands[0].QualifiedName))
		return cands[0], nil
	}

	options := make([]string, len(cands))
	for i, c := range cands {
		options[i] = c.QualifiedName
	}
	if r.prompter == nil {
		return nil, &AmbiguousError{Name: name, Candidates: options}
	}
	r.logger.Info("prompting for disambiguation", slog.String("name", name), slog.Int("candidates", len(cands)))
	i, err := r.prompter.PromptSelection(options)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", name, err)
	}
	if i < 0 || i >= len(cands) {
		return nil, fmt.Errorf("selecting %s: choice %d out of range", name, i+1)
	}
	r.logger.Info("target selected", slog.String("target", cands[i].QualifiedName))
	return cands[i], nil
}

// suggest returns up to maxSuggestions names similar to target, most
// similar first.
func suggest(target string, names []string) []string {
	type scored struct {
		name  string
		score float32
	}
	var hits []scored
	for _, n := range names {
		score, err := edlib.StringsSimilarity(strings.ToLower(target), strings.ToLower(n), edlib.JaroWinkler)
		if err != nil || score < suggestionThreshold {
			continue
		}
		hits = append(hits, scored{n, score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	var out []string
	for i := 0; i < len(hits) && i < maxSuggestions; i++ {
		out = append(out, hits[i].name)
	}
	return out
}
