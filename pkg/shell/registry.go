package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	// ErrDuplicateCommand is returned when registering a name twice
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrUnknownCommand is returned by Dispatch for unregistered names
	ErrUnknownCommand = errors.New("unknown command")
	// ErrExit stops the shell loop when returned by a handler
	ErrExit = errors.New("exit")
)

// Handler runs one command. args excludes the command name.
type Handler func(ctx context.Context, out io.Writer, args []string) error

// Command is a named shell command
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string
	Handler Handler
}

// Registry maps command names and aliases to commands
type Registry struct {
	commands map[string]*Command
	ordered  []*Command
}

// NewRegistry returns a registry holding the builtin help command
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]*Command)}
	_ = r.Register(&Command{
		Name:    "help",
		Aliases: []string{"h"},
		Usage:   "help [command]",
		Help:    "Show available commands",
		Handler: r.help,
	})
	return r
}

// Register adds a command. A name or alias that is already taken is
// rejected and nothing is registered.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command needs a name and a handler")
	}

	names := append([]string{cmd.Name}, cmd.Aliases...)
	for _, name := range names {
		if _, exists := r.commands[name]; exists {
			return fmt.Errorf("%s: %w", name, ErrDuplicateCommand)
		}
	}
	for _, name := range names {
		r.commands[name] = cmd
	}
	r.ordered = append(r.ordered, cmd)
	return nil
}

// Lookup finds a command by name or alias
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns the registered commands sorted by name
func (r *Registry) Commands() []*Command {
	cmds := append([]*Command(nil), r.ordered...)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Dispatch splits line into words and runs the named command. Blank lines
// do nothing.
func (r *Registry) Dispatch(ctx context.Context, out io.Writer, line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}

	cmd, ok := r.Lookup(words[0])
	if !ok {
		return fmt.Errorf("%s: %w", words[0], ErrUnknownCommand)
	}
	return cmd.Handler(ctx, out, words[1:])
}

func (r *Registry) help(_ context.Context, out io.Writer, args []string) error {
	if len(args) > 0 {
		cmd, ok := r.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%s: %w", args[0], ErrUnknownCommand)
		}
		fmt.Fprintf(out, "%s\n    %s\n", cmd.Usage, cmd.Help)
		return nil
	}

	for _, cmd := range r.Commands() {
		fmt.Fprintf(out, "  %-28s %s\n", cmd.Usage, cmd.Help)
	}
	fmt.Fprintf(out, "  %-28s %s\n", "exit", "Leave the shell")
	return nil
}
