package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/symtrace/internal/config"
)

type initFlags struct {
	yaml   bool
	force  bool
	dryRun bool
}

// newInitCmd implements `symtrace init`, which writes a starter config file
// holding every setting at its default.
func newInitCmd() *cobra.Command {
	var f initFlags
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter .symtrace.toml (or .symtrace.yaml)",
		Long: `Write a config file holding every setting at its default value to dir,
which defaults to the current directory. trace and context pick the file up
from the project root; flags given on the command line override it.

An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify(runInit(cmd, &f, projectArg(args)))
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.yaml, "yaml", false, "write YAML instead of TOML")
	fl.BoolVar(&f.force, "force", false, "overwrite an existing config file")
	fl.BoolVar(&f.dryRun, "dry-run", false, "print the file instead of writing it")
	return cmd
}

func runInit(cmd *cobra.Command, f *initFlags, dir string) error {
	format, name := "toml", ".symtrace.toml"
	if f.yaml {
		format, name = "yaml", ".symtrace.yaml"
	}

	content, err := starterConfig(format)
	if err != nil {
		return err
	}
	if f.dryRun {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil && !f.force {
		return usageError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote symtrace config to %s\n", path)
	return nil
}

// starterConfig returns the default configuration encoded as format,
// preceded by a comment header. It is a pure function for easy testing.
func starterConfig(format string) (string, error) {
	var buf bytes.Buffer
	for _, line := range []string{
		"symtrace configuration.",
		"Flags given on the command line override these settings.",
		"",
		"mode:           full | references | analyze",
		"format:         text | json | markdown",
		"snippet:        none | line | block",
		"relation_level: direct | references | inheritance | all",
		"exclude:        doublestar globs relative to the project root",
		"interactive:    unset to prompt only on a terminal",
	} {
		buf.WriteString(strings.TrimRight("# "+line, " ") + "\n")
	}
	buf.WriteString("\n")
	if err := config.Default().Encode(&buf, format); err != nil {
		return "", err
	}
	return buf.String(), nil
}
