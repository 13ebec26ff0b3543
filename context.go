package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/symtrace/internal/expand"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/resolve"
)

type contextFlags struct {
	commonFlags
	filter string
	level  string
}

func newContextCmd() *cobra.Command {
	var f contextFlags
	cmd := &cobra.Command{
		Use:   "context <project>",
		Short: "List symbols and their references, expanded by relation level",
		Long: `List the declarations whose qualified name contains --filter (every type
when no filter is given), grown by --level, each with the sites that
reference it. project is a solution or project file, or a directory.

Levels:
  direct       the matching declarations only
  references   plus members, base types and referencing declarations
  inheritance  plus base and derived types
  all          references and inheritance together`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify(runContext(cmd, &f, args[0]))
		},
	}
	f.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&f.filter, "filter", "", "case-insensitive substring of qualified names to seed from")
	fl.StringVarP(&f.level, "level", "l", "direct", "relation level: direct, references, inheritance or all")
	return cmd
}

func runContext(cmd *cobra.Command, f *contextFlags, projectPath string) error {
	ctx := cmd.Context()

	cfg, err := f.loadConfig(cmd, projectPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("level") {
		cfg.RelationLevel = f.level
	}
	level, err := model.ParseRelationLevel(cfg.RelationLevel)
	if err != nil {
		return usageError(err)
	}

	s, err := openSession(ctx, cfg, projectPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	nodes, err := listContext(ctx, s, f.filter, level)
	if err != nil {
		s.logger.Error("context failed", slog.Any("error", err))
		return err
	}

	path, err := s.writeReport(&model.Report{
		Project: s.project.Name,
		Variant: model.ContextVariant,
		Level:   level,
		Nodes:   nodes,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote context to %s\n", path)
	return nil
}

// listContext seeds from filter, expands the seed by level and returns one
// node per symbol carrying its references.
func listContext(ctx context.Context, s *session, filter string, level model.RelationLevel) ([]*model.AnalysisNode, error) {
	seed := seedSymbols(s.project.AllDeclarations, filter)
	if filter != "" && len(seed) == 0 {
		return nil, &resolve.NotFoundError{Target: filter}
	}
	s.logger.Info("context seed", slog.String("filter", filter), slog.Int("symbols", len(seed)))

	set, err := expand.Expand(ctx, s.project, seed, level)
	if err != nil {
		return nil, err
	}

	syms := set.Symbols()
	nodes := make([]*model.AnalysisNode, 0, len(syms))
	for _, sym := range syms {
		node := &model.AnalysisNode{Symbol: sym}
		refs, err := s.project.FindReferences(ctx, sym, s.snippet)
		if err != nil {
			return nil, fmt.Errorf("finding references to %s: %w", sym.QualifiedName, err)
		}
		for _, r := range refs {
			node.References = append(node.References, r.Location)
		}
		nodes = append(nodes, node)
	}
	s.logger.Info("context expanded", slog.String("level", string(level)), slog.Int("symbols", len(nodes)))
	return nodes, nil
}

// seedSymbols returns every declaration whose qualified name contains
// filter, case-insensitively, or every type when filter is empty.
func seedSymbols(all func(func(*model.Symbol) bool) []*model.Symbol, filter string) []*model.Symbol {
	if filter == "" {
		return all(func(s *model.Symbol) bool { return s.Kind == model.Type })
	}
	needle := strings.ToLower(filter)
	return all(func(s *model.Symbol) bool {
		return strings.Contains(strings.ToLower(s.QualifiedName), needle)
	})
}
