// Package metrics walks a callable body once and derives its size and
// complexity metrics, loops, data-access calls, code smells and callees.
package metrics

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symtrace/internal/codemodel"
	"github.com/phobologic/symtrace/internal/lang"
	"github.com/phobologic/symtrace/internal/model"
)

// UntypedDataContainer is the smell recorded when a body instantiates one of
// the configured smell types.
const UntypedDataContainer = "UntypedDataContainer"

// DefaultDataAccessTokens are matched against callee signatures when no
// tokens are configured.
var DefaultDataAccessTokens = []string{
	"SqlConnection", "SqlCommand", "SqlDataReader",
	"DbConnection", "DbCommand", "DbDataReader",
	"IDbConnection", "IDbCommand",
	"ExecuteReader", "ExecuteNonQuery", "ExecuteScalar",
	"DbContext", "DbSet", "SaveChanges",
	"FromSqlRaw", "ExecuteSqlRaw", "SqlQuery",
	"DataTable", "DataSet",
	"JdbcTemplate", "PreparedStatement", "ResultSet", "EntityManager",
	"executeQuery", "executeUpdate",
}

// DefaultSmellTypes are the types whose creation is flagged by default.
var DefaultSmellTypes = []string{"DataTable", "DataSet"}

// CallBinder resolves invocation nodes to symbols.
type CallBinder interface {
	ResolveCall(call *sitter.Node) *model.Symbol
}

// Walker computes the internal analysis of callable bodies.
type Walker struct {
	tokens []string
	smells map[string]bool
}

// NewWalker returns a walker using the given data-access tokens and smell
// types. Nil slices select the defaults.
func NewWalker(tokens, smellTypes []string) *Walker {
	if tokens == nil {
		tokens = DefaultDataAccessTokens
	}
	if smellTypes == nil {
		smellTypes = DefaultSmellTypes
	}
	w := &Walker{tokens: tokens, smells: make(map[string]bool, len(smellTypes))}
	for _, s := range smellTypes {
		w.smells[s] = true
	}
	return w
}

// Walk performs a single pre-order walk of body. It returns the analysis
// and the resolved callees in discovery order, deduplicated by identity.
func (w *Walker) Walk(body *codemodel.Body, binder CallBinder) (*model.InternalAnalysis, []*model.Symbol) {
	v := &visitor{
		w:      w,
		lang:   body.Lang,
		source: body.Source,
		binder: binder,
		called: model.NewSymbolSet(),
		result: &model.InternalAnalysis{},
	}
	v.complexity = 1
	if body.Node != nil {
		v.visit(body.Node)
	}

	decl := body.Decl
	if decl == nil {
		decl = body.Node
	}
	if decl != nil {
		v.result.Metrics.LinesOfCode = int(decl.EndPoint().Row-decl.StartPoint().Row) + 1
	}
	v.result.Metrics.CyclomaticComplexity = v.complexity
	v.result.Metrics.ParameterCount = body.ParameterCount
	return v.result, v.called.Symbols()
}

type visitor struct {
	w      *Walker
	lang   *lang.Language
	source []byte
	binder CallBinder

	nesting    int
	complexity int
	called     *model.SymbolSet
	result     *model.InternalAnalysis
}

func (v *visitor) visit(node *sitter.Node) {
	l := v.lang
	kind := node.Type()

	if label, ok := l.LoopKinds[kind]; ok {
		v.complexity++
		v.nesting++
		v.result.Loops = append(v.result.Loops, model.LoopInfo{
			LoopKind:     label,
			NestingLevel: v.nesting,
			Line:         lang.Line(node),
		})
		v.children(node)
		v.nesting--
		return
	}

	switch {
	case l.BranchKinds[kind]:
		v.complexity++
	case l.LogicalKinds[kind]:
		if lang.HasLogicalOperator(node) {
			v.complexity++
		}
	case l.CallKinds[kind]:
		v.call(node)
	case l.CreationKinds[kind]:
		v.creation(node)
	}
	v.complexity += l.CaseLabels(node, v.source)
	v.children(node)
}

func (v *visitor) children(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.visit(node.NamedChild(i))
	}
}

func (v *visitor) call(node *sitter.Node) {
	callee := v.binder.ResolveCall(node)
	if callee == nil {
		return
	}
	v.called.Add(callee)

	sig := callee.Signature
	if sig == "" {
		sig = callee.QualifiedName
	}
	// Longest matching token wins.
	match := ""
	for _, token := range v.w.tokens {
		if len(token) > len(match) && strings.Contains(sig, token) {
			match = token
		}
	}
	if match == "" {
		return
	}
	v.result.DataAccessCalls = append(v.result.DataAccessCalls, model.DataAccessCall{
		Kind:          match,
		StatementText: lang.CollapseWhitespace(lang.NodeText(node, v.source)),
		Line:          lang.Line(node),
		InsideLoop:    v.nesting > 0,
	})
}

func (v *visitor) creation(node *sitter.Node) {
	name := lang.TypeName(v.lang.CreatedType(node, v.source))
	if !v.w.smells[name] {
		return
	}
	v.result.CodeSmells = append(v.result.CodeSmells, model.CodeSmell{
		Kind:        UntypedDataContainer,
		Description: fmt.Sprintf("instantiates untyped data container %s", name),
		Line:        lang.Line(node),
	})
}
