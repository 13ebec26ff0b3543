package resolve

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symtrace/internal/model"
)

type fakeModel []*model.Symbol

func (m fakeModel) FindExactDeclaration(qn string) *model.Symbol {
	for _, s := range m {
		if s.QualifiedName == qn {
			return s
		}
	}
	return nil
}

// DeclarationsNamed may repeat a declaration, as a project listing the same
// file twice would.
func (m fakeModel) DeclarationsNamed(name string) []*model.Symbol {
	var out []*model.Symbol
	for _, s := range m {
		if s.Name == name {
			out = append(out, s, s)
		}
	}
	return out
}

func (m fakeModel) AllDeclarations(pred func(*model.Symbol) bool) []*model.Symbol {
	var out []*model.Symbol
	for _, s := range m {
		if pred == nil || pred(s) {
			out = append(out, s)
		}
	}
	return out
}

type scriptedPrompter struct {
	choice  int
	err     error
	options []string
}

func (p *scriptedPrompter) PromptSelection(options []string) (int, error) {
	p.options = options
	return p.choice, p.err
}

func method(id model.SymbolID, qn, name string) *model.Symbol {
	return &model.Symbol{ID: id, Name: name, QualifiedName: qn, Kind: model.Method}
}

func projectModel() fakeModel {
	return fakeModel{
		{ID: 1, Name: "Calculator", QualifiedName: "App.Calculator", Kind: model.Type},
		method(2, "App.Calculator.Compute(int)", "Compute"),
		method(3, "App.Calculator.Reset()", "Reset"),
		{ID: 4, Name: "Calculator", QualifiedName: "App.Calculator.Calculator()", Kind: model.Method, Constructor: true},
		method(5, "App.Ledger.Post(decimal)", "Post"),
	}
}

func TestResolveShortNameSingleMatch(t *testing.T) {
	t.Parallel()

	p := &scriptedPrompter{}
	r := New(projectModel(), p, nil)
	sym, err := r.Resolve(context.Background(), model.ShortName("Compute"))
	require.NoError(t, err)

	assert.Equal(t, "App.Calculator.Compute(int)", sym.QualifiedName)
	assert.Nil(t, p.options, "single match must not prompt")
}

func TestResolveShortNameAmbiguousNonInteractive(t *testing.T) {
	t.Parallel()

	m := append(projectModel(), method(6, "App.Pricing.Compute(Order)", "Compute"))
	_, err := New(m, nil, nil).Resolve(context.Background(), model.ShortName("Compute"))

	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"App.Calculator.Compute(int)", "App.Pricing.Compute(Order)"}, amb.Candidates)
	assert.Contains(t, err.Error(), "App.Pricing.Compute(Order)")
}

func TestResolveShortNameAmbiguousPrompts(t *testing.T) {
	t.Parallel()

	m := append(projectModel(), method(6, "App.Pricing.Compute(Order)", "Compute"))
	p := &scriptedPrompter{choice: 1}
	sym, err := New(m, p, nil).ResolveShortName("Compute")
	require.NoError(t, err)

	assert.Equal(t, "App.Pricing.Compute(Order)", sym.QualifiedName)
	assert.Len(t, p.options, 2)
}

func TestResolveShortNamePromptFailure(t *testing.T) {
	t.Parallel()

	m := append(projectModel(), method(6, "App.Pricing.Compute(Order)", "Compute"))
	p := &scriptedPrompter{err: ErrNoSelection}
	_, err := New(m, p, nil).ResolveShortName("Compute")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestResolveShortNameIgnoresConstructors(t *testing.T) {
	t.Parallel()

	_, err := New(projectModel(), nil, nil).ResolveShortName("Calculator")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Calculator", nf.Target)
}

func TestResolveNotFoundSuggests(t *testing.T) {
	t.Parallel()

	_, err := New(projectModel(), nil, nil).ResolveShortName("Compte")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "Compute")
	assert.Contains(t, err.Error(), "did you mean")
}

func TestResolveExact(t *testing.T) {
	t.Parallel()

	r := New(projectModel(), nil, nil)
	sym, err := r.Resolve(context.Background(), model.ExactName("App.Ledger.Post(decimal)"))
	require.NoError(t, err)
	assert.Equal(t, model.SymbolID(5), sym.ID)

	_, err = r.Resolve(context.Background(), model.ExactName("App.Ledger.Post(int)"))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "App.Ledger.Post(decimal)")
}

func TestConsolePrompterRetries(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := &ConsolePrompter{In: strings.NewReader("zero\n7\n2\n"), Out: &out}
	i, err := p.PromptSelection([]string{"A.Run()", "B.Run()"})
	require.NoError(t, err)

	assert.Equal(t, 1, i)
	assert.Contains(t, out.String(), "  1) A.Run()")
	assert.Contains(t, out.String(), "  2) B.Run()")
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid choice"))
}

func TestConsolePrompterEOF(t *testing.T) {
	t.Parallel()

	p := &ConsolePrompter{In: strings.NewReader("x\n"), Out: &bytes.Buffer{}}
	_, err := p.PromptSelection([]string{"A.Run()", "B.Run()"})
	assert.True(t, errors.Is(err, ErrNoSelection))
}
