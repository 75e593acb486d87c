// Package registry implements the plugin contract and registry:
// discovery, capability detection via explicit Go interfaces rather
// than reflection, and an ordered exposure list.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/driftloom/loomcore/pkg/models"
)

// Plugin is the minimal identity every plugin implements. Everything
// else it contributes — tools, commands, enrichment, GC strategies —
// is expressed as one of the capability interfaces below, which the
// registry detects with a type assertion at registration time.
// Grounded on original_source/shared/plugins/base.py's ToolPlugin
// protocol, adapted to a capability-list pattern of explicit Go
// interfaces instead of duck-typed attributes.
type Plugin interface {
	Name() string
	Kind() models.Kind
}

// Executor executes one tool call and returns its result.
type Executor interface {
	Execute(ctx context.Context, call models.ToolCallRequest) (models.ToolResult, error)
}

// ToolSchemaProvider exposes the tool schemas a plugin wants the model
// to see.
type ToolSchemaProvider interface {
	ToolSchemas() []models.ToolSchema
}

// ExecutorProvider maps tool names to their Executors.
type ExecutorProvider interface {
	Executors() map[string]Executor
}

// SystemInstructionProvider contributes text added to the system
// prompt (after the driver's own SystemPrompt) describing the plugin's
// tools.
type SystemInstructionProvider interface {
	SystemInstruction() string
}

// AutoApprovedProvider lists tool/command names that should never
// prompt for approval. Registry.AutoApprovedTools collects them; the
// registry and the driver do not add them to any policy whitelist.
type AutoApprovedProvider interface {
	AutoApprovedTools() []string
}

// UserCommandSpec declares one user-facing command.
type UserCommandSpec struct {
	Name           string
	Description    string
	ShareWithModel bool
}

// UserCommandProvider exposes the plugin's user-facing commands.
type UserCommandProvider interface {
	UserCommands() []UserCommandSpec
}

// EnrichmentSubscriber opts a plugin into the prompt enrichment
// pipeline (internal/enrich.Enricher is satisfied by anything meeting
// this shape).
type EnrichmentSubscriber interface {
	EnrichPrompt(ctx context.Context, prompt string) (string, map[string]any, error)
}

// Observer opts a plugin into the driver's event stream: it receives
// every AgentEvent the driver emits at loop transitions (turn start,
// tool dispatched, tool finished, GC ran, session checkpointed),
// making built-in observability pluggable rather than hardcoded.
type Observer interface {
	OnEvent(ctx context.Context, event models.AgentEvent)
}

// ModelRequirer restricts a plugin to models whose name matches one of
// the returned glob patterns; a plugin with no requirements works with
// any model.
type ModelRequirer interface {
	ModelRequirements() []string
}

// Initializer runs one-time setup when a plugin is exposed. An error
// here is fatal for that plugin only: it is not added to the exposed
// set, but every other plugin's Expose still proceeds.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner runs best-effort teardown for a plugin. Shutdown is not
// guaranteed to block on that plugin's in-flight tool calls —
// Registry.Shutdown calls every exposed plugin's Shutdown once,
// collecting rather than aborting on error.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Record is the registry's bookkeeping for one loaded plugin: its
// handle plus the concrete capability values detected at registration,
// so callers don't need to re-type-assert the original Plugin value.
type Record struct {
	Handle    models.PluginHandle
	plugin    Plugin
	executors map[string]Executor
	enricher  EnrichmentSubscriber
	observer  Observer
	commands  []UserCommandSpec
}

// Registry holds every loaded Plugin and tracks which are currently
// exposed to the model, in explicit exposure order — never a
// map/set whose iteration order is unspecified (see DESIGN.md for the
// equivalent bug this avoids in the Python original's
// PluginRegistry._exposed: Set[str]).
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*Record
	exposed  []string // ordered; no duplicates
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register loads a plugin into the registry without exposing it.
// Capability detection happens once here via type assertions.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.records[name]; exists {
		return fmt.Errorf("registry: plugin %q already registered", name)
	}

	handle := models.PluginHandle{Name: name, Kind: p.Kind(), Enabled: false}
	rec := &Record{Handle: handle, plugin: p}

	if tsp, ok := p.(ToolSchemaProvider); ok {
		for _, s := range tsp.ToolSchemas() {
			handle.Tools = append(handle.Tools, s.Name)
		}
	}
	if ep, ok := p.(ExecutorProvider); ok {
		rec.executors = ep.Executors()
	}
	if aap, ok := p.(AutoApprovedProvider); ok {
		handle.AutoApprove = aap.AutoApprovedTools()
	}
	if ucp, ok := p.(UserCommandProvider); ok {
		rec.commands = ucp.UserCommands()
		for _, c := range rec.commands {
			handle.Commands = append(handle.Commands, c.Name)
		}
	}
	if es, ok := p.(EnrichmentSubscriber); ok {
		rec.enricher = es
		handle.Enriches = true
	}
	if ob, ok := p.(Observer); ok {
		rec.observer = ob
		handle.Observes = true
	}

	rec.Handle = handle
	r.records[name] = rec
	return nil
}

// Expose marks a registered plugin active, appending it to the
// exposure order if not already present. Returns an error if the
// plugin was never registered, if it declares ModelRequirements that
// modelName does not satisfy, or if its Initialize capability (if any)
// fails — an initialize failure is fatal for this plugin only; it is
// never added to the exposed set, and the caller is free to keep
// exposing other plugins regardless.
func (r *Registry) Expose(ctx context.Context, name, modelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return fmt.Errorf("registry: plugin %q not found", name)
	}

	if mr, ok := rec.plugin.(ModelRequirer); ok {
		patterns := mr.ModelRequirements()
		if len(patterns) > 0 && !matchesAnyModel(modelName, patterns) {
			return fmt.Errorf("registry: plugin %q requires model matching one of %v, got %q", name, patterns, modelName)
		}
	}

	for _, n := range r.exposed {
		if n == name {
			return nil
		}
	}

	if init, ok := rec.plugin.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return fmt.Errorf("registry: plugin %q failed to initialize: %w", name, err)
		}
	}

	rec.Handle.Enabled = true
	r.exposed = append(r.exposed, name)
	return nil
}

// Shutdown calls Shutdown on every currently exposed plugin that
// implements Shutdowner, in exposure order, collecting rather than
// aborting on the first error — shutdown is best-effort and is not
// guaranteed to wait on that plugin's in-flight tool calls.
func (r *Registry) Shutdown(ctx context.Context) []error {
	r.mu.RLock()
	exposed := append([]string(nil), r.exposed...)
	r.mu.RUnlock()

	var errs []error
	for _, name := range exposed {
		r.mu.RLock()
		rec := r.records[name]
		r.mu.RUnlock()
		if sd, ok := rec.plugin.(Shutdowner); ok {
			if err := sd.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("registry: plugin %q shutdown: %w", name, err))
			}
		}
	}
	return errs
}

// Unexpose removes a plugin from the active set without unregistering
// it.
func (r *Registry) Unexpose(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[name]; ok {
		rec.Handle.Enabled = false
	}
	for i, n := range r.exposed {
		if n == name {
			r.exposed = append(r.exposed[:i], r.exposed[i+1:]...)
			return
		}
	}
}

// ExposedOrder returns the plugin names currently exposed, in the
// exact order they were exposed.
func (r *Registry) ExposedOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.exposed...)
}

// ToolSchemas returns the combined tool schemas of every exposed
// plugin, in exposure order.
func (r *Registry) ToolSchemas() []models.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ToolSchema
	for _, name := range r.exposed {
		if tsp, ok := r.records[name].plugin.(ToolSchemaProvider); ok {
			out = append(out, tsp.ToolSchemas()...)
		}
	}
	return out
}

// Executor looks up the Executor for a tool name among exposed
// plugins.
func (r *Registry) Executor(toolName string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.exposed {
		rec := r.records[name]
		if ex, ok := rec.executors[toolName]; ok {
			return ex, true
		}
	}
	return nil, false
}

// SystemInstructions concatenates every exposed plugin's system
// instruction contribution, in exposure order.
func (r *Registry) SystemInstructions() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out string
	for _, name := range r.exposed {
		if sip, ok := r.records[name].plugin.(SystemInstructionProvider); ok {
			if instr := sip.SystemInstruction(); instr != "" {
				if out != "" {
					out += "\n\n"
				}
				out += instr
			}
		}
	}
	return out
}

// AutoApprovedTools collects every exposed plugin's auto-approved tool
// list.
func (r *Registry) AutoApprovedTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.exposed {
		out = append(out, r.records[name].Handle.AutoApprove...)
	}
	return out
}

// Enrichers returns the EnrichmentSubscribers of every exposed plugin,
// in exposure order, for wiring into internal/enrich.Pipeline.
func (r *Registry) Enrichers() []EnrichmentSubscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EnrichmentSubscriber
	for _, name := range r.exposed {
		if rec := r.records[name]; rec.enricher != nil {
			out = append(out, rec.enricher)
		}
	}
	return out
}

// Observers returns the Observers of every exposed plugin, in exposure
// order, for the driver to notify of AgentEvents at each loop
// transition.
func (r *Registry) Observers() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Observer
	for _, name := range r.exposed {
		if rec := r.records[name]; rec.observer != nil {
			out = append(out, rec.observer)
		}
	}
	return out
}

// UserCommands collects every exposed plugin's user command specs.
func (r *Registry) UserCommands() []UserCommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []UserCommandSpec
	for _, name := range r.exposed {
		out = append(out, r.records[name].commands...)
	}
	return out
}

// Handles returns the PluginHandle for every registered plugin
// (exposed or not), in registration-map order — callers that need
// exposure order should use ExposedOrder plus a lookup instead.
func (r *Registry) Handles() []models.PluginHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.PluginHandle, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Handle)
	}
	return out
}

func matchesAnyModel(modelName string, patterns []string) bool {
	for _, p := range patterns {
		if globStarMatch(p, modelName) {
			return true
		}
	}
	return false
}

// globStarMatch supports a subset of internal/policy's matcher grammar
// (exact / prefix* / *suffix / *; no *infix* or mcp: form), kept as an
// unexported near-duplicate here to avoid registry depending on policy.
func globStarMatch(pattern, s string) bool {
	if pattern == "*" || pattern == s {
		return true
	}
	n := len(pattern)
	switch {
	case n > 0 && pattern[n-1] == '*':
		prefix := pattern[:n-1]
		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	case n > 0 && pattern[0] == '*':
		suffix := pattern[1:]
		return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
	default:
		return false
	}
}
