package render

import (
	"encoding/json"
	"io"

	"github.com/phobologic/symtrace/internal/model"
)

type jsonReport struct {
	Project       string      `json:"project"`
	Variant       string      `json:"variant"`
	Target        string      `json:"target,omitempty"`
	Mode          string      `json:"mode,omitempty"`
	MaxDepth      int         `json:"maxDepth,omitempty"`
	RelationLevel string      `json:"relationLevel,omitempty"`
	Results       []*jsonNode `json:"results,omitempty"`
}

type jsonNode struct {
	Name             string                    `json:"name"`
	Kind             string                    `json:"kind"`
	Signature        string                    `json:"signature,omitempty"`
	Location         *model.Location           `json:"location,omitempty"`
	External         bool                      `json:"external,omitempty"`
	References       []model.ReferenceLocation `json:"references,omitempty"`
	InternalAnalysis *model.InternalAnalysis   `json:"internalAnalysis,omitempty"`
	CalledSymbols    []*jsonNode               `json:"calledSymbols,omitempty"`
}

func toJSONNode(n *model.AnalysisNode) *jsonNode {
	out := &jsonNode{
		Name:             n.Symbol.QualifiedName,
		Kind:             kindLabel(n.Symbol),
		Location:         n.Symbol.Location,
		External:         n.Symbol.External,
		References:       n.References,
		InternalAnalysis: n.InternalAnalysis,
	}
	if n.Symbol.Signature != n.Symbol.QualifiedName {
		out.Signature = n.Symbol.Signature
	}
	for _, c := range n.Children {
		out.CalledSymbols = append(out.CalledSymbols, toJSONNode(c))
	}
	return out
}

func renderJSON(w io.Writer, report *model.Report) error {
	out := jsonReport{
		Project:       report.Project,
		Variant:       string(report.Variant),
		Target:        report.Target,
		MaxDepth:      report.MaxDepth,
		Mode:          string(report.Mode),
		RelationLevel: string(report.Level),
	}
	for _, n := range report.Nodes {
		out.Results = append(out.Results, toJSONNode(n))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
