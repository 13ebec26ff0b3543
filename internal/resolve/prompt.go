package resolve

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrNoSelection is returned when input ends before a valid choice.
var ErrNoSelection = errors.New("no selection made")

// ConsolePrompter prompts on Out and reads choices from In. Options are
// numbered from 1; invalid input is rejected and the prompt repeated.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// PromptSelection implements Prompter.
func (p *ConsolePrompter) PromptSelection(options []string) (int, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	fmt.Fprintln(p.Out, "Multiple symbols match:")
	for i, o := range options {
		fmt.Fprintf(p.Out, "  %d) %s\n", i+1, o)
	}
	for {
		fmt.Fprintf(p.Out, "Select [1-%d]: ", len(options))
		if !p.scanner.Scan() {
			fmt.Fprintln(p.Out)
			if err := p.scanner.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoSelection
		}
		n, err := strconv.Atoi(strings.TrimSpace(p.scanner.Text()))
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintf(p.Out, "Invalid choice; enter a number between 1 and %d.\n", len(options))
			continue
		}
		return n - 1, nil
	}
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
