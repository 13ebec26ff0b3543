package metrics

import (
	"context"

	"github.com/phobologic/symtrace/internal/codemodel"
	"github.com/phobologic/symtrace/internal/model"
)

// Source supplies bodies and binders.
type Source interface {
	BodyOf(sym *model.Symbol) (*codemodel.Body, error)
	Bind(body *codemodel.Body) *codemodel.Binder
}

// Inspector runs the walker over symbols looked up in a Source.
type Inspector struct {
	src    Source
	walker *Walker
}

// NewInspector returns an Inspector over src.
func NewInspector(src Source, walker *Walker) *Inspector {
	return &Inspector{src: src, walker: walker}
}

// Inspect analyzes the body of sym. Symbols without a body yield an error
// wrapping codemodel.ErrSourceUnavailable.
func (i *Inspector) Inspect(ctx context.Context, sym *model.Symbol) (*model.InternalAnalysis, []*model.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	body, err := i.src.BodyOf(sym)
	if err != nil {
		return nil, nil, err
	}
	analysis, called := i.walker.Walk(body, i.src.Bind(body))
	return analysis, called, nil
}
