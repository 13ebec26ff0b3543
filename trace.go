package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/symtrace/internal/callchain"
	"github.com/phobologic/symtrace/internal/metrics"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/resolve"
)

type traceFlags struct {
	commonFlags
	exact         string
	name          string
	mode          string
	depth         int
	noInteractive bool
}

func newTraceCmd() *cobra.Command {
	var f traceFlags
	cmd := &cobra.Command{
		Use:   "trace [project] (--exact NAME | --name NAME)",
		Short: "Analyze a symbol and the call chain below it",
		Long: `Resolve one symbol and build its analysis tree: references to each
symbol, internal metrics of each callable body, and the symbols each body
calls, down to --depth levels.

project is a solution or project file (.sln, .csproj, pom.xml, build.gradle)
or a directory, and defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify(runTrace(cmd, &f, projectArg(args)))
		},
	}
	f.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&f.exact, "exact", "", "fully qualified name, e.g. \"Shop.Orders.Save(Order)\"")
	fl.StringVar(&f.name, "name", "", "short method name; prompts when several methods match")
	fl.StringVarP(&f.mode, "mode", "m", "full", "analysis mode: full, references or analyze")
	fl.IntVarP(&f.depth, "depth", "d", 0, "maximum call depth (0 analyzes the target only)")
	fl.BoolVar(&f.noInteractive, "no-interactive", false, "fail instead of prompting when --name is ambiguous")
	cmd.MarkFlagsMutuallyExclusive("exact", "name")
	cmd.MarkFlagsOneRequired("exact", "name")
	return cmd
}

func (f *traceFlags) target() model.TargetSpec {
	if f.exact != "" {
		return model.ExactName(f.exact)
	}
	return model.ShortName(f.name)
}

func runTrace(cmd *cobra.Command, f *traceFlags, projectPath string) error {
	ctx := cmd.Context()
	stdin, stdout, stderr := cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()

	if f.exact == "" && f.name == "" {
		return usageError(fmt.Errorf("one of --exact or --name must be non-empty"))
	}

	cfg, err := f.loadConfig(cmd, projectPath)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	if fl.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fl.Changed("depth") {
		cfg.Depth = f.depth
	}
	if f.noInteractive {
		interactive := false
		cfg.Interactive = &interactive
	}
	mode, err := model.ParseAnalysisMode(cfg.Mode)
	if err != nil {
		return usageError(err)
	}

	s, err := openSession(ctx, cfg, projectPath, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	root, err := trace(ctx, s, f.target(), mode, prompterFor(cfg.Interactive, stdin, stderr))
	if err != nil {
		s.logger.Error("trace failed", slog.Any("error", err))
		return err
	}

	report := &model.Report{
		Project:  s.project.Name,
		Variant:  model.AnalysisVariant,
		Target:   root.Symbol.QualifiedName,
		Mode:     mode,
		MaxDepth: cfg.Depth,
		Nodes:    []*model.AnalysisNode{root},
	}
	path, err := s.writeReport(report)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Wrote analysis to %s\n", path)
	return nil
}

// trace resolves target and builds its analysis tree.
func trace(ctx context.Context, s *session, target model.TargetSpec, mode model.AnalysisMode, prompter resolve.Prompter) (*model.AnalysisNode, error) {
	sym, err := resolve.New(s.project, prompter, s.logger).Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	walker := metrics.NewWalker(s.cfg.DataAccessTokens, s.cfg.SmellTypes)
	analyzer := callchain.New(s.project, metrics.NewInspector(s.project, walker), callchain.Options{
		Mode:            mode,
		MaxDepth:        s.cfg.Depth,
		Snippet:         s.snippet,
		IncludeExternal: s.cfg.IncludeExternal,
		Logger:          s.logger,
	})
	root, err := analyzer.Analyze(ctx, sym)
	if err != nil {
		return nil, err
	}
	s.logger.Info("trace complete",
		slog.String("target", sym.QualifiedName),
		slog.Int("nodes", root.Count()),
		slog.Int("depth", root.Depth()))
	return root, nil
}

// prompterFor returns the prompter for ambiguous short names, or nil when
// the run is not interactive. An explicit setting wins over terminal
// detection.
func prompterFor(interactive *bool, stdin io.Reader, out io.Writer) resolve.Prompter {
	on := false
	switch {
	case interactive != nil:
		on = *interactive
	default:
		if f, ok := stdin.(*os.File); ok {
			on = resolve.IsInteractive(f)
		}
	}
	if !on {
		return nil
	}
	return &resolve.ConsolePrompter{In: stdin, Out: out}
}
