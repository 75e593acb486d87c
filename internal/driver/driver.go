package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftloom/loomcore/internal/channel"
	"github.com/driftloom/loomcore/internal/enrich"
	"github.com/driftloom/loomcore/internal/gc"
	"github.com/driftloom/loomcore/internal/policy"
	"github.com/driftloom/loomcore/internal/provider"
	"github.com/driftloom/loomcore/internal/registry"
	"github.com/driftloom/loomcore/internal/session"
	"github.com/driftloom/loomcore/pkg/models"
)

// Config bundles the driver's tunables.
type Config struct {
	// Model names the provider's model, used to resolve the context
	// window for GC triggering and passed through to Provider calls.
	Model string

	// SystemPrompt is the static instruction text the driver prepends
	// to every request, ahead of the registry's own contributed
	// SystemInstructions().
	SystemPrompt string

	// MaxIterations bounds the provider-call/tool-dispatch loop within
	// a single Send, guarding against a model that never stops
	// requesting tool calls.
	MaxIterations int

	// ApprovalTimeout bounds how long the driver waits on a Channel
	// before applying DefaultOnTimeout.
	ApprovalTimeout time.Duration

	Exec ExecConfig
	GC   gc.Config
}

// DefaultConfig returns the baseline driver loop tunables.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   25,
		ApprovalTimeout: 2 * time.Minute,
		Exec:            DefaultExecConfig(),
		GC:              gc.Config{AutoTrigger: true, ThresholdPercent: 80, PreserveRecentTurns: 4},
	}
}

// Driver is the tool-call driver: the component that owns a session's
// Send loop, running the enrich/stream/execute-tools/continue state
// machine so that tool calls within one turn execute sequentially and
// in call order, honoring the response-ordering invariant a model
// expects: the assistant's Nth tool_call is answered by the Nth
// tool_response.
type Driver struct {
	provider provider.Provider
	registry *registry.Registry
	static   policy.StaticPolicy
	channel  channel.Channel
	strategy gc.Strategy
	store    session.Store
	hooks    session.Hooks

	config  Config
	metrics Metrics
	locks   *sessionLocks
	execLog executionLog
}

// New wires a Driver from its collaborators. channel and strategy may
// be nil: a nil channel turns every "ask" decision into a deny; a nil
// strategy disables garbage collection entirely.
func New(p provider.Provider, reg *registry.Registry, static policy.StaticPolicy, ch channel.Channel, strategy gc.Strategy, store session.Store, hooks session.Hooks, cfg Config) *Driver {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Driver{
		provider: p,
		registry: reg,
		static:   static,
		channel:  ch,
		strategy: strategy,
		store:    store,
		hooks:    hooks,
		config:   cfg,
		locks:    newSessionLocks(),
	}
}

// Metrics returns a snapshot of this driver's accumulated tool
// execution counters.
func (d *Driver) Metrics() MetricsSnapshot { return d.metrics.Snapshot() }

// Send is the driver's single public operation: accept one user
// prompt for sessionID, drive the enrich -> provider -> policy ->
// tool-dispatch loop to completion, persist the resulting session
// state, and return the assistant's final text.
//
// Send blocks for the duration of its own in-flight work plus that of
// any other Send call already running for the same sessionID — at
// most one Send per session executes at a time (see DESIGN.md
// "shutdown blocking semantics" for the reasoning behind this).
func (d *Driver) Send(ctx context.Context, sessionID string, text string) (string, error) {
	unlock := d.locks.Lock(sessionID)
	defer unlock()

	state, isNew, err := d.loadOrCreateSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("driver: load session: %w", err)
	}
	if isNew {
		d.hooks.FireStart(ctx, state)
	}

	localPolicy := policy.New(d.static)
	localPolicy.RestoreSessionRules(state.SessionBlacklist, state.SessionWhitelist)

	enrichedPrompt, _, err := d.buildPipeline().Run(ctx, text)
	if err != nil {
		return "", fmt.Errorf("driver: enrich prompt: %w", err)
	}

	turnStarted := time.Now()
	turnIndex := len(state.History.Turns)

	msgs := models.FlattenTurns(state.History.Turns)
	msgs = append(msgs, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Parts:     []models.Part{models.NewTextPart(enrichedPrompt)},
		CreatedAt: time.Now(),
	})

	toolCallCount := 0
	contextWindow := provider.ResolveContextWindow(d.config.Model)
	systemPrompt := d.config.SystemPrompt
	if instr := d.registry.SystemInstructions(); instr != "" {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += instr
	}

	var finalText string
	completed := false
	observers := d.registry.Observers()

	d.emit(ctx, observers, models.AgentEvent{Type: models.EventTurnStart, SessionID: sessionID})

	for iter := 0; iter < d.config.MaxIterations; iter++ {
		history := models.ConversationHistory{Turns: models.SplitIntoTurns(msgs)}

		if d.strategy != nil {
			usage := gc.Usage{
				EstimatedTokens: gc.EstimateHistoryTokens(history),
				ContextWindow:   contextWindow,
				Turns:           len(history.Turns),
			}
			if should, reason := d.strategy.ShouldCollect(usage, d.config.GC); should {
				collected, result, collectErr := d.strategy.Collect(ctx, history, usage, d.config.GC, reason)
				if collectErr == nil && result.Success {
					msgs = models.FlattenTurns(collected.Turns)
					history = collected
					d.emit(ctx, observers, models.AgentEvent{
						Type:      models.EventGCRan,
						SessionID: sessionID,
						Payload:   map[string]any{"reason": reason},
					})
				}
			}
		}

		resp, err := d.provider.SendMessage(ctx, provider.CompletionRequest{
			System:  systemPrompt,
			History: history,
			Tools:   d.registry.ToolSchemas(),
		})
		if err != nil {
			return "", fmt.Errorf("driver: provider call: %w", err)
		}

		assistant := resp.Message
		if assistant.ID == "" {
			assistant.ID = uuid.NewString()
		}
		if assistant.CreatedAt.IsZero() {
			assistant.CreatedAt = time.Now()
		}
		assistant.Role = models.RoleModel
		msgs = append(msgs, assistant)

		calls := assistant.ToolCalls()
		if len(calls) == 0 {
			finalText = assistant.Text()
			completed = true
			break
		}

		toolCallCount += len(calls)
		for _, call := range calls {
			d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolRequested, SessionID: sessionID, ToolName: call.Name})
		}
		resultMsg := d.dispatchToolCalls(ctx, localPolicy, calls, sessionID, observers)
		msgs = append(msgs, resultMsg)
	}

	state.History.Turns = models.SplitIntoTurns(msgs)
	state.UpdatedAt = time.Now()
	blacklist, whitelist := localPolicy.SessionRules()
	state.SessionBlacklist = blacklist
	state.SessionWhitelist = whitelist
	state.Accounting = append(state.Accounting, models.TurnAccounting{
		TurnIndex:       turnIndex,
		EstimatedTokens: gc.EstimateHistoryTokens(state.History),
		ToolCallCount:   toolCallCount,
		StartedAt:       turnStarted,
		EndedAt:         time.Now(),
	})

	if err := d.store.Update(ctx, state); err != nil {
		return "", fmt.Errorf("driver: persist session: %w", err)
	}
	d.emit(ctx, observers, models.AgentEvent{Type: models.EventSessionCheckpoint, SessionID: sessionID})

	if !completed {
		return "", ErrMaxIterations
	}

	if turnIndex < len(state.History.Turns) {
		d.hooks.FireTurnComplete(ctx, state, state.History.Turns[turnIndex])
	}
	d.emit(ctx, observers, models.AgentEvent{Type: models.EventTurnComplete, SessionID: sessionID})

	return finalText, nil
}

// emit notifies every observer of an AgentEvent, stamping At if unset.
// Observers are called synchronously and in exposure order; a
// driver with no Observer plugins pays only the cost of the loop.
func (d *Driver) emit(ctx context.Context, observers []registry.Observer, event models.AgentEvent) {
	if len(observers) == 0 {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	for _, o := range observers {
		o.OnEvent(ctx, event)
	}
}

// ShareCommandOutput appends a user command's output to sessionID's
// history as a user-role message, satisfying command.RuntimeView — the
// narrow handle internal/command dispatches through instead of
// holding a full Driver reference, breaking the plugin/driver cyclic
// reference for ShareWithModel commands. The model sees the note on
// its next Send for this session.
func (d *Driver) ShareCommandOutput(ctx context.Context, sessionID, commandName, output string) error {
	unlock := d.locks.Lock(sessionID)
	defer unlock()

	state, isNew, err := d.loadOrCreateSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("driver: share command output: %w", err)
	}
	if isNew {
		d.hooks.FireStart(ctx, state)
	}

	msgs := models.FlattenTurns(state.History.Turns)
	msgs = append(msgs, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Parts:     []models.Part{models.NewTextPart(fmt.Sprintf("[command %q output]\n%s", commandName, output))},
		CreatedAt: time.Now(),
	})
	state.History.Turns = models.SplitIntoTurns(msgs)
	state.UpdatedAt = time.Now()

	return d.store.Update(ctx, state)
}

// Close runs a session's on_session_end hook and clears it from the
// in-flight lock table. It blocks until any Send already running for
// sessionID returns, so no tool execution or persistence races the
// shutdown hook.
func (d *Driver) Close(ctx context.Context, sessionID string) error {
	unlock := d.locks.Lock(sessionID)
	defer unlock()

	state, err := d.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("driver: close session: %w", err)
	}
	d.hooks.FireEnd(ctx, state)
	return nil
}

func (d *Driver) loadOrCreateSession(ctx context.Context, sessionID string) (*models.SessionState, bool, error) {
	state, err := d.store.Get(ctx, sessionID)
	if err == nil {
		return state, false, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, false, err
	}

	now := time.Now()
	state = &models.SessionState{
		ID:        sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if createErr := d.store.Create(ctx, state); createErr != nil {
		return nil, false, createErr
	}
	return state, true, nil
}

// namedEnricher adapts a registry.EnrichmentSubscriber, which carries
// no name of its own, into an enrich.Enricher for the Pipeline's error
// messages.
type namedEnricher struct {
	name string
	sub  registry.EnrichmentSubscriber
}

func (n namedEnricher) Name() string { return n.name }
func (n namedEnricher) EnrichPrompt(ctx context.Context, prompt string) (string, map[string]any, error) {
	return n.sub.EnrichPrompt(ctx, prompt)
}

func (d *Driver) buildPipeline() *enrich.Pipeline {
	subs := d.registry.Enrichers()
	enrichers := make([]enrich.Enricher, 0, len(subs))
	for i, s := range subs {
		enrichers = append(enrichers, namedEnricher{name: fmt.Sprintf("enricher_%d", i), sub: s})
	}
	return &enrich.Pipeline{Enrichers: enrichers}
}

// dispatchToolCalls runs every call sequentially, in the order the
// model issued them, and returns a single user Message whose parts are
// the tool_response for each call in that same order — honoring the
// response-ordering testable property. A call denied by policy, or
// one whose tool isn't found, still produces an is_error tool_response
// rather than aborting the remaining calls.
func (d *Driver) dispatchToolCalls(ctx context.Context, pol *policy.Policy, calls []models.ToolCallRequest, sessionID string, observers []registry.Observer) models.Message {
	parts := make([]models.Part, 0, len(calls))

	for _, call := range calls {
		result := d.dispatchOne(ctx, pol, call, sessionID, observers)
		parts = append(parts, result.Parts()...)
	}

	return models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
}

func (d *Driver) dispatchOne(ctx context.Context, pol *policy.Policy, call models.ToolCallRequest, sessionID string, observers []registry.Observer) models.ToolResult {
	args := decodeArgs(call.Input)

	match := pol.Check(call.Name, args)
	decision := match.Decision

	if decision == models.DecisionAskActor {
		d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolApproval, SessionID: sessionID, ToolName: call.Name})
		decision = d.escalate(ctx, pol, call, args, match)
	}

	if decision != models.DecisionAllow {
		d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolDenied, SessionID: sessionID, ToolName: call.Name})
		result := models.ToolResult{ToolCallID: call.ID, Content: "permission denied: " + match.Reason, IsError: true}
		d.recordExecution(call, result)
		return result
	}

	d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolStarted, SessionID: sessionID, ToolName: call.Name})

	ex, ok := d.registry.Executor(call.Name)
	if !ok {
		result := models.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("%v: %s", ErrToolNotFound, call.Name), IsError: true}
		d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolFailed, SessionID: sessionID, ToolName: call.Name})
		d.recordExecution(call, result)
		return result
	}

	result, err := runTool(ctx, ex, call, d.config.Exec, &d.metrics)
	if err != nil {
		result = models.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
		d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolFailed, SessionID: sessionID, ToolName: call.Name})
		d.recordExecution(call, result)
		return result
	}
	result.ToolCallID = call.ID
	d.emit(ctx, observers, models.AgentEvent{Type: models.EventToolSucceeded, SessionID: sessionID, ToolName: call.Name})
	d.recordExecution(call, result)
	return result
}

// recordExecution appends one ExecutionRecord per dispatched tool call
// to the driver's append-only execution audit log — every permission
// decision and every executed tool is recorded, accessible for testing
// and post-mortem via ExecutionLog.
func (d *Driver) recordExecution(call models.ToolCallRequest, result models.ToolResult) {
	d.execLog.record(ExecutionRecord{
		Timestamp:  time.Now(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		IsError:    result.IsError,
		Summary:    summarizeResult(result),
	})
}

// escalate routes an "ask" decision to the configured Channel, folding
// its ChannelResponse back into both the immediate decision and the
// session-scoped policy rules (allow_session/deny_session add a
// session whitelist/blacklist entry so future identical calls in this
// session skip the prompt). A nil channel, or a channel error/timeout,
// resolves to deny — the fail-closed default.
func (d *Driver) escalate(ctx context.Context, pol *policy.Policy, call models.ToolCallRequest, args map[string]any, match models.PolicyMatch) models.PermissionDecision {
	if d.channel == nil {
		return models.DecisionDeny
	}

	timeout := d.config.ApprovalTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := models.PermissionRequest{
		RequestID:        uuid.NewString(),
		Timestamp:        time.Now(),
		ToolName:         call.Name,
		Arguments:        call.Input,
		TimeoutSeconds:   int(timeout.Seconds()),
		DefaultOnTimeout: models.DecisionDeny,
	}
	display := channel.DisplayInfo{Summary: fmt.Sprintf("approve tool call %q?", call.Name), Details: match.Reason}

	resp, err := d.channel.Resolve(reqCtx, req, display)
	if err != nil {
		return models.DecisionDeny
	}

	switch resp.Decision {
	case models.ChannelAllowSession:
		pol.AddSessionWhitelist(rememberPatternOrDefault(resp, call.Name, args))
	case models.ChannelDenySession:
		pol.AddSessionBlacklist(rememberPatternOrDefault(resp, call.Name, args))
	case models.ChannelAllowAll:
		pol.AddSessionWhitelist("*")
	}

	if resp.Allowed() {
		return models.DecisionAllow
	}
	return models.DecisionDeny
}

// rememberPatternOrDefault picks the session pattern an allow_session
// or deny_session decision adds: the channel response's own
// RememberPattern if it specified one, otherwise a synthesized
// pattern. For the CLI tool, remembering the bare tool name would
// remember every shell command ever issued through it; instead it
// synthesizes "<command-head> *" so only that command's invocations
// are auto-allowed/denied going forward. Every other tool remembers
// its bare name.
func rememberPatternOrDefault(resp models.ChannelResponse, toolName string, args map[string]any) string {
	if resp.RememberPattern != "" {
		return resp.RememberPattern
	}
	if toolName != "cli_based_tool" {
		return toolName
	}
	command, _ := args["command"].(string)
	head := strings.Fields(command)
	if len(head) == 0 {
		return toolName
	}
	return head[0] + " *"
}
