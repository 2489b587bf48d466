package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/glestaris/ice/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultPrompt is printed before every line read
const DefaultPrompt = "$> "

// Shell is a line-oriented interactive loop over a Registry
type Shell struct {
	registry *Registry
	in       io.Reader
	out      io.Writer
	prompt   string
	logger   zerolog.Logger
}

// New creates a shell reading commands from in and writing to out
func New(registry *Registry, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		registry: registry,
		in:       in,
		out:      out,
		prompt:   DefaultPrompt,
		logger:   log.WithComponent("shell"),
	}
}

// SetPrompt replaces the prompt
func (s *Shell) SetPrompt(prompt string) {
	s.prompt = prompt
}

// Run reads and dispatches lines until EOF, exit, quit, a handler
// returning ErrExit, or ctx cancellation. Command errors are printed and
// the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(s.out, s.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "exit", "quit":
			return nil
		}

		err := s.registry.Dispatch(ctx, s.out, line)
		switch {
		case err == nil:
		case errors.Is(err, ErrExit):
			return nil
		default:
			s.logger.Debug().Err(err).Str("line", line).Msg("Command failed")
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}
