package model

// Metrics holds size and complexity counts for one callable unit.
type Metrics struct {
	LinesOfCode          int `json:"linesOfCode,omitempty"`
	CyclomaticComplexity int `json:"cyclomaticComplexity,omitempty"`
	ParameterCount       int `json:"parameterCount,omitempty"`
}

// DataAccessCall is a call whose callee signature matched a data-access token.
type DataAccessCall struct {
	Kind          string `json:"kind,omitempty"`
	StatementText string `json:"statementText,omitempty"`
	Line          int    `json:"line,omitempty"`
	InsideLoop    bool   `json:"insideLoop,omitempty"`
}

// LoopInfo records one loop construct and its nesting level (1 = outermost).
type LoopInfo struct {
	LoopKind     string `json:"loopKind,omitempty"`
	NestingLevel int    `json:"nestingLevel,omitempty"`
	Line         int    `json:"line,omitempty"`
}

// CodeSmell is a flagged construct inside a body.
type CodeSmell struct {
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
	Line        int    `json:"line,omitempty"`
}

// InternalAnalysis is the result of walking one callable body.
type InternalAnalysis struct {
	Metrics         Metrics          `json:"metrics"`
	DataAccessCalls []DataAccessCall `json:"dataAccessCalls,omitempty"`
	Loops           []LoopInfo       `json:"loops,omitempty"`
	CodeSmells      []CodeSmell      `json:"codeSmells,omitempty"`
}

// AnalysisNode is one node of an analysis tree. Children are owned by their
// parent and kept in discovery order.
type AnalysisNode struct {
	Symbol           *Symbol
	References       []ReferenceLocation
	InternalAnalysis *InternalAnalysis
	Children         []*AnalysisNode
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *AnalysisNode) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Depth returns the depth of the deepest node below n (0 for a leaf).
func (n *AnalysisNode) Depth() int {
	deepest := 0
	for _, c := range n.Children {
		if d := c.Depth() + 1; d > deepest {
			deepest = d
		}
	}
	return deepest
}

// Variant names the kind of report.
type Variant string

const (
	AnalysisVariant Variant = "analysis"
	ContextVariant  Variant = "context"
)

// Report is the unit every serializer consumes.
type Report struct {
	Project string
	Variant Variant
	// Target and Mode/MaxDepth describe an analysis report.
	Target   string
	Mode     AnalysisMode
	MaxDepth int
	// Level describes a context listing.
	Level RelationLevel
	Nodes []*AnalysisNode
}
