// Package command implements user-command dispatch: commands invoked
// directly by the user, bypassing the model's tool calling, optionally
// sharing their output back into the conversation.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Result is what a Handler returns: text shown to the user and,
// if ShareWithModel was set at registration, appended to history.
type Result struct {
	Text string
}

// Handler executes one user command invocation.
type Handler func(ctx context.Context, args []string) (Result, error)

// RuntimeView is the narrow handle a command with ShareWithModel set
// uses to inject its output into a session's conversation history,
// rather than holding a full driver reference — this breaks the
// plugin/driver cyclic dependency. internal/driver.Driver satisfies
// this interface.
type RuntimeView interface {
	ShareCommandOutput(ctx context.Context, sessionID, commandName, output string) error
}

// Command is a registered user-facing command, grounded on
// original_source/shared/plugins/base.py's UserCommand NamedTuple
// (name, description, share_with_model).
type Command struct {
	Name           string
	Description    string
	ShareWithModel bool
	Handler        Handler
	Aliases        []string
	Category       string
}

// Registry dispatches user commands by name or alias: name
// normalization, alias conflict warnings rather than hard failures,
// and category grouping for help output.
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*Command
	aliases    map[string]string
	categories map[string][]*Command
	logger     *slog.Logger
	runtime    RuntimeView
}

// New builds a Registry, defaulting to slog.Default() if logger is nil.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands:   make(map[string]*Command),
		aliases:    make(map[string]string),
		categories: make(map[string][]*Command),
		logger:     logger.With("component", "commands"),
	}
}

// SetRuntime wires the RuntimeView a ShareWithModel command's output
// is injected through. Optional — a Registry with no runtime set still
// dispatches commands, it just can't share their output back.
func (r *Registry) SetRuntime(rt RuntimeView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = rt
}

// Register adds a command, rejecting a name that collides with an
// existing command or alias but only warning (and skipping) on an
// alias collision.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Handler == nil {
		return fmt.Errorf("command: %q has no handler", cmd.Name)
	}
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "" {
		return fmt.Errorf("command: empty name")
	}
	cmd.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command: %q already registered", name)
	}
	if _, exists := r.aliases[name]; exists {
		return fmt.Errorf("command: %q collides with an existing alias", name)
	}

	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			continue
		}
		if _, exists := r.commands[alias]; exists {
			r.logger.Warn("alias collides with a command name, skipping", "alias", alias, "command", name)
			continue
		}
		if existing, exists := r.aliases[alias]; exists {
			r.logger.Warn("alias collides with another alias, skipping", "alias", alias, "command", name, "existing", existing)
			continue
		}
		r.aliases[alias] = name
	}

	category := cmd.Category
	if category == "" {
		category = "general"
	}
	r.categories[category] = append(r.categories[category], cmd)
	return nil
}

// Resolve looks up a command by name or alias.
func (r *Registry) Resolve(name string) (*Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if target, ok := r.aliases[name]; ok {
		return r.commands[target], true
	}
	return nil, false
}

// Dispatch parses "name arg1 arg2 ..." and runs the matching command
// for sessionID. When the resolved command has ShareWithModel set and
// a RuntimeView has been wired via SetRuntime, its output is injected
// into the session's history so the model sees it on the next Send.
func (r *Registry) Dispatch(ctx context.Context, sessionID, line string) (Result, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{}, fmt.Errorf("command: empty input")
	}
	cmd, ok := r.Resolve(fields[0])
	if !ok {
		return Result{}, fmt.Errorf("command: unknown command %q", fields[0])
	}
	result, err := cmd.Handler(ctx, fields[1:])
	if err != nil {
		return result, err
	}

	if cmd.ShareWithModel {
		r.mu.RLock()
		rt := r.runtime
		r.mu.RUnlock()
		if rt != nil {
			if shareErr := rt.ShareCommandOutput(ctx, sessionID, cmd.Name, result.Text); shareErr != nil {
				r.logger.Warn("failed to share command output with model", "command", cmd.Name, "session_id", sessionID, "error", shareErr)
			}
		}
	}

	return result, nil
}

// Categories returns the command categories and their members, for
// help/completion output.
func (r *Registry) Categories() map[string][]*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]*Command, len(r.categories))
	for k, v := range r.categories {
		out[k] = append([]*Command(nil), v...)
	}
	return out
}
