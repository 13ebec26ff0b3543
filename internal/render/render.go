// Package render serializes reports as text, Markdown or JSON.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/symtrace/internal/model"
)

// Format selects a serializer.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	Markdown Format = "markdown"
)

// maxTextReferences is how many references the text format lists per node.
const maxTextReferences = 5

// ParseFormat parses a format name; "txt" and "md" are accepted aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or markdown)", s)
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case JSON:
		return "json"
	case Markdown:
		return "md"
	}
	return "txt"
}

// FileName returns the output file name for a report.
func FileName(project string, variant model.Variant, f Format) string {
	return fmt.Sprintf("%s_%s.%s", project, variant, f.Extension())
}

// Render writes report to w in the given format.
func Render(w io.Writer, report *model.Report, f Format) error {
	switch f {
	case Text:
		return renderText(w, report)
	case JSON:
		return renderJSON(w, report)
	case Markdown:
		return renderMarkdown(w, report)
	}
	return fmt.Errorf("unknown format %q", f)
}

// kindLabel is the parenthesized kind shown after a symbol name.
func kindLabel(s *model.Symbol) string {
	switch {
	case s.Kind == model.Type && s.TypeKind != "":
		return s.TypeKind
	case s.Constructor:
		return "constructor"
	case s.External:
		return string(s.Kind) + ", external"
	}
	return string(s.Kind)
}

func definedAt(s *model.Symbol) string {
	if s.Location == nil {
		return "<no source location>"
	}
	return s.Location.String()
}

func refString(r model.ReferenceLocation) string {
	return fmt.Sprintf("%s:%d", r.Path, r.Line)
}

// errWriter keeps the first write error so renderers can write freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
