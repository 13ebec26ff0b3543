// Package expand grows a seed symbol set according to a relation level.
package expand

import (
	"context"
	"fmt"

	"github.com/phobologic/symtrace/internal/model"
)

// Model is the part of the code model expansion needs.
type Model interface {
	Members(sym *model.Symbol) []*model.Symbol
	BaseTypes(sym *model.Symbol) []*model.Symbol
	FindDerivedTypes(ctx context.Context, sym *model.Symbol) ([]*model.Symbol, error)
	FindReferences(ctx context.Context, sym *model.Symbol, level model.SnippetLevel) ([]model.Reference, error)
}

// Expand returns seed grown by level. Relations are computed from the seed
// only, never transitively from added symbols. The seed keeps its order and
// added symbols follow in discovery order.
func Expand(ctx context.Context, m Model, seed []*model.Symbol, level model.RelationLevel) (*model.SymbolSet, error) {
	out := model.NewSymbolSet(seed...)
	if level.IncludesReferences() {
		if err := addReferences(ctx, m, seed, out); err != nil {
			return nil, err
		}
	}
	if level.IncludesInheritance() {
		if err := addInheritance(ctx, m, seed, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func addReferences(ctx context.Context, m Model, seed []*model.Symbol, out *model.SymbolSet) error {
	for _, sym := range seed {
		if sym.Kind.HasMembers() {
			for _, member := range m.Members(sym) {
				out.Add(member)
			}
			for _, base := range m.BaseTypes(sym) {
				out.Add(base)
			}
		}
	}
	for _, sym := range seed {
		refs, err := m.FindReferences(ctx, sym, model.SnippetNone)
		if err != nil {
			return fmt.Errorf("finding references to %s: %w", sym.QualifiedName, err)
		}
		for _, r := range refs {
			out.Add(r.Referencing)
		}
	}
	return nil
}

func addInheritance(ctx context.Context, m Model, seed []*model.Symbol, out *model.SymbolSet) error {
	for _, sym := range seed {
		if !sym.Kind.HasMembers() {
			continue
		}
		for _, base := range m.BaseTypes(sym) {
			out.Add(base)
		}
		derived, err := m.FindDerivedTypes(ctx, sym)
		if err != nil {
			return fmt.Errorf("finding types derived from %s: %w", sym.QualifiedName, err)
		}
		for _, d := range derived {
			out.Add(d)
		}
	}
	return nil
}
