// symtrace traces call chains through C# and Java projects and reports
// references, complexity metrics and data-access calls along the way.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/symtrace/internal/codemodel"
	"github.com/phobologic/symtrace/internal/config"
	"github.com/phobologic/symtrace/internal/logging"
	"github.com/phobologic/symtrace/internal/model"
	"github.com/phobologic/symtrace/internal/render"
	"github.com/phobologic/symtrace/internal/resolve"
)

var version = "dev"

const (
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

// classify maps an error from a command run to its exit code. Target
// resolution failures are the operator's to fix; everything else, project
// load failures included, is fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	var notFound *resolve.NotFoundError
	var ambiguous *resolve.AmbiguousError
	switch {
	case errors.As(err, &notFound), errors.As(err, &ambiguous), errors.Is(err, resolve.ErrNoSelection):
		return usageError(err)
	}
	return &exitError{code: exitFailure, err: err}
}

// exitCode returns the code for an error returned by run. Errors cobra
// raises itself (unknown flags, missing required flags, bad arguments) are
// usage errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "symtrace",
		Short:         "Trace call chains and code metrics through C# and Java projects",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("symtrace {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newTraceCmd(),
		newContextCmd(),
		newInitCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "symtrace %s\n", version)
			},
		},
	)
	return root
}

// commonFlags are the settings trace and context share. Each one overrides
// the config file only when given on the command line.
type commonFlags struct {
	configPath string
	format     string
	outputDir  string
	snippet    string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default: .symtrace.toml or .symtrace.yaml in the project root)")
	fl.StringVarP(&f.format, "format", "f", "text", "output format: text, json or markdown")
	fl.StringVarP(&f.outputDir, "output", "o", ".", "directory for the report and log file")
	fl.StringVar(&f.snippet, "snippet", "none", "reference snippets: none, line or block")
	fl.StringVar(&f.logLevel, "log-level", "info", "log file level: trace, debug, info, warn or error")
}

// loadConfig layers the config file and the explicitly set flags over the
// defaults. projectPath locates the config file when --config is not given.
func (f *commonFlags) loadConfig(cmd *cobra.Command, projectPath string) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = config.Find(projectDir(projectPath))
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, usageError(err)
		}
		cfg = loaded
	}

	fl := cmd.Flags()
	if fl.Changed("format") {
		cfg.Format = f.format
	}
	if fl.Changed("output") {
		cfg.OutputDir = f.outputDir
	}
	if fl.Changed("snippet") {
		cfg.Snippet = f.snippet
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

// projectDir returns the directory a project path denotes: the path itself
// for a directory, or the containing directory of a solution or project file.
func projectDir(path string) string {
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		return filepath.Dir(path)
	}
	return path
}

// session is the per-run state shared by trace and context: the validated
// settings, the log file and the loaded project.
type session struct {
	cfg     *config.Config
	format  render.Format
	snippet model.SnippetLevel
	project *codemodel.Project

	logger   *slog.Logger
	closeLog func() error
}

func openSession(ctx context.Context, cfg *config.Config, projectPath string, stderr io.Writer) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return nil, usageError(err)
	}
	snippet, err := model.ParseSnippetLevel(cfg.Snippet)
	if err != nil {
		return nil, usageError(err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, usageError(err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	logger, closeLog, logPath, err := logging.Open(cfg.OutputDir, level, time.Now())
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, format: format, snippet: snippet, logger: logger, closeLog: closeLog}
	logger.Info("starting run",
		slog.String("version", version),
		slog.String("project", projectPath),
		slog.String("log", logPath))

	project, err := codemodel.Load(ctx, projectPath, codemodel.Options{
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.MaxFileSize,
		Workers:     cfg.Workers,
		Logger:      logger,
		Warnings:    stderr,
	})
	if err != nil {
		logger.Error("project load failed", slog.Any("error", err))
		_ = closeLog()
		return nil, err
	}
	s.project = project
	return s, nil
}

func (s *session) close() {
	s.project.Close()
	_ = s.closeLog()
}

// writeReport renders report into the output directory and returns the
// path written.
func (s *session) writeReport(report *model.Report) (string, error) {
	path := filepath.Join(s.cfg.OutputDir, render.FileName(report.Project, report.Variant, s.format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}
	if err := render.Render(f, report, s.format); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Info("report written", slog.String("path", path), slog.Int("nodes", countNodes(report.Nodes)))
	return path, nil
}

func countNodes(nodes []*model.AnalysisNode) int {
	total := 0
	for _, n := range nodes {
		total += n.Count()
	}
	return total
}

func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
