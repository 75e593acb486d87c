// Package policy implements the permission policy engine: the
// blacklist/whitelist evaluation chain that decides whether a tool
// call may run without prompting a human or other approval actor.
package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftloom/loomcore/pkg/models"
)

// ArgRule maps an argument name to the set of values that trigger the
// rule when the argument's string value starts with one of them; a
// blacklist rule also triggers when one of them appears as a
// whitespace-separated token of the value.
type ArgRule map[string][]string

// StaticPolicy is the configuration-driven, immutable half of the
// engine: the rules loaded once from the permission config file (see
// SPEC_FULL.md §6) and never mutated at runtime. Session-level rules
// layer on top of it in Policy.
type StaticPolicy struct {
	DefaultPolicy models.PermissionDecision

	BlacklistTools     map[string]struct{}
	BlacklistPatterns  []string
	BlacklistArguments map[string]ArgRule

	WhitelistTools     map[string]struct{}
	WhitelistPatterns  []string
	WhitelistArguments map[string]ArgRule
}

// Policy is the full evaluation engine: a StaticPolicy plus the
// session-scoped blacklist/whitelist accumulated through approval
// channel responses (allow_session / deny_session). Session rules are
// mutated concurrently with Check calls, so access is mutex-guarded.
type Policy struct {
	mu     sync.RWMutex
	static StaticPolicy

	sessionBlacklist []string
	sessionWhitelist []string

	auditLog []AuditEntry
}

// AuditEntry is one append-only record of a permission decision:
// (tool_name, args, decision, reason), as required of check_permission
// by the permission policy engine's audit-completeness property.
type AuditEntry struct {
	Timestamp time.Time
	ToolName  string
	Args      map[string]any
	Decision  models.PermissionDecision
	Reason    string
	RuleType  string
}

// New builds a Policy from a StaticPolicy.
func New(static StaticPolicy) *Policy {
	return &Policy{static: static}
}

// Check evaluates a tool call against the five-step priority chain:
//
//  1. session blacklist  (highest priority)
//  2. static blacklist   (tool name, pattern, or argument rule)
//  3. session whitelist
//  4. static whitelist   (tool name, pattern, or argument rule)
//  5. default policy
//
// A blacklist match always wins over any whitelist match, at both the
// session and static tiers.
//
// toolName is normalized through NormalizeTool before matching, so a
// blacklist/whitelist entry for a canonical name (e.g. "exec") also
// governs its aliases ("bash", "shell"). Exactly one AuditEntry is
// appended per call, regardless of which tier of the chain decides.
func (p *Policy) Check(toolName string, args map[string]any) models.PolicyMatch {
	canonical := NormalizeTool(toolName)
	match := p.check(canonical, args)

	p.mu.Lock()
	p.auditLog = append(p.auditLog, AuditEntry{
		Timestamp: time.Now(),
		ToolName:  canonical,
		Args:      args,
		Decision:  match.Decision,
		Reason:    match.Reason,
		RuleType:  match.RuleType,
	})
	p.mu.Unlock()

	return match
}

func (p *Policy) check(toolName string, args map[string]any) models.PolicyMatch {
	signature := buildSignature(toolName, args)

	p.mu.RLock()
	sessionBlack := append([]string(nil), p.sessionBlacklist...)
	sessionWhite := append([]string(nil), p.sessionWhitelist...)
	p.mu.RUnlock()

	if matchesAny(sessionBlack, toolName, signature) {
		return models.PolicyMatch{
			Decision: models.DecisionDeny,
			Reason:   fmt.Sprintf("tool %q is blacklisted for this session", toolName),
			RuleType: "session_blacklist",
		}
	}

	if m, ok := p.checkBlacklist(toolName, args, signature); ok {
		return m
	}

	if matchesAny(sessionWhite, toolName, signature) {
		return models.PolicyMatch{
			Decision: models.DecisionAllow,
			Reason:   fmt.Sprintf("tool %q is whitelisted for this session", toolName),
			RuleType: "session_whitelist",
		}
	}

	if m, ok := p.checkWhitelist(toolName, args, signature); ok {
		return m
	}

	switch p.static.DefaultPolicy {
	case models.DecisionAllow:
		return models.PolicyMatch{Decision: models.DecisionAllow, Reason: "allowed by default policy", RuleType: "default"}
	case models.DecisionDeny:
		return models.PolicyMatch{Decision: models.DecisionDeny, Reason: "denied by default policy", RuleType: "default"}
	default:
		return models.PolicyMatch{Decision: models.DecisionAskActor, Reason: "no matching rule, requires actor approval", RuleType: "default"}
	}
}

// AuditLog returns a snapshot of every decision Check has appended, in
// call order. The returned slice is a copy: callers may retain it
// without holding the Policy's lock.
func (p *Policy) AuditLog() []AuditEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]AuditEntry(nil), p.auditLog...)
}

func (p *Policy) checkBlacklist(toolName string, args map[string]any, signature string) (models.PolicyMatch, bool) {
	if _, ok := p.static.BlacklistTools[toolName]; ok {
		return models.PolicyMatch{
			Decision:    models.DecisionDeny,
			Reason:      fmt.Sprintf("tool %q is blacklisted", toolName),
			MatchedRule: toolName,
			RuleType:    "blacklist",
		}, true
	}

	for _, pattern := range p.static.BlacklistPatterns {
		if globMatch(pattern, signature) {
			return models.PolicyMatch{
				Decision:    models.DecisionDeny,
				Reason:      fmt.Sprintf("command matches blacklist pattern: %s", pattern),
				MatchedRule: pattern,
				RuleType:    "blacklist",
			}, true
		}
	}

	if rules, ok := p.static.BlacklistArguments[toolName]; ok {
		if m, hit := matchArgRule(toolName, args, rules, argStartsWithOrToken); hit {
			m.Decision = models.DecisionDeny
			m.RuleType = "blacklist"
			return m, true
		}
	}

	return models.PolicyMatch{}, false
}

func (p *Policy) checkWhitelist(toolName string, args map[string]any, signature string) (models.PolicyMatch, bool) {
	if _, ok := p.static.WhitelistTools[toolName]; ok {
		return models.PolicyMatch{
			Decision:    models.DecisionAllow,
			Reason:      fmt.Sprintf("tool %q is whitelisted", toolName),
			MatchedRule: toolName,
			RuleType:    "whitelist",
		}, true
	}

	for _, pattern := range p.static.WhitelistPatterns {
		if globMatch(pattern, signature) {
			return models.PolicyMatch{
				Decision:    models.DecisionAllow,
				Reason:      fmt.Sprintf("command matches whitelist pattern: %s", pattern),
				MatchedRule: pattern,
				RuleType:    "whitelist",
			}, true
		}
	}

	if rules, ok := p.static.WhitelistArguments[toolName]; ok {
		if m, hit := matchArgRule(toolName, args, rules, argStartsWith); hit {
			m.Decision = models.DecisionAllow
			m.RuleType = "whitelist"
			return m, true
		}
	}

	return models.PolicyMatch{}, false
}

// matchArgRule walks an ArgRule's entries in a deterministic order so
// evaluation (and audit log output) is reproducible across runs.
func matchArgRule(toolName string, args map[string]any, rules ArgRule, match func(value, blocked string) bool) (models.PolicyMatch, bool) {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, argName := range names {
		value, _ := args[argName].(string)
		for _, candidate := range rules[argName] {
			if match(value, candidate) {
				return models.PolicyMatch{
					Reason:      fmt.Sprintf("argument %q matches rule value: %s", argName, candidate),
					MatchedRule: fmt.Sprintf("%s=%s", argName, candidate),
				}, true
			}
		}
	}
	return models.PolicyMatch{}, false
}

func argStartsWith(value, candidate string) bool {
	return strings.HasPrefix(value, candidate)
}

func argStartsWithOrToken(value, candidate string) bool {
	if strings.HasPrefix(value, candidate) {
		return true
	}
	for _, tok := range strings.Fields(value) {
		if tok == candidate {
			return true
		}
	}
	return false
}

// buildSignature builds the string a pattern rule is matched against.
// For the cli_based_tool tool, the signature is the shell-like command
// string (command plus space-joined args); for every other tool it is
// a canonical "name(k=v, ...)" representation with sorted keys, so the
// same call always produces the same signature regardless of map
// iteration order.
func buildSignature(toolName string, args map[string]any) string {
	if toolName == "cli_based_tool" {
		command, _ := args["command"].(string)
		argList, _ := args["args"].([]any)
		if len(argList) == 0 {
			return command
		}
		parts := make([]string, 0, len(argList))
		for _, a := range argList {
			parts = append(parts, fmt.Sprintf("%v", a))
		}
		return command + " " + strings.Join(parts, " ")
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return fmt.Sprintf("%s(%s)", toolName, strings.Join(pairs, ", "))
}

func matchesAny(patterns []string, toolName, signature string) bool {
	for _, pattern := range patterns {
		if globMatch(pattern, toolName) || globMatch(pattern, signature) {
			return true
		}
	}
	return false
}

// AddSessionBlacklist adds a pattern to the session-scoped blacklist.
// Session blacklist entries always outrank every other rule tier.
func (p *Policy) AddSessionBlacklist(pattern string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionBlacklist = appendUnique(p.sessionBlacklist, pattern)
}

// AddSessionWhitelist adds a pattern to the session-scoped whitelist.
// Note the session blacklist still takes priority over this.
func (p *Policy) AddSessionWhitelist(pattern string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionWhitelist = appendUnique(p.sessionWhitelist, pattern)
}

// ClearSessionRules wipes all session-level rules, e.g. on session end.
func (p *Policy) ClearSessionRules() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionBlacklist = nil
	p.sessionWhitelist = nil
}

// SessionRules returns a snapshot of the current session rule sets,
// for persisting alongside models.SessionState.
func (p *Policy) SessionRules() (blacklist, whitelist []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.sessionBlacklist...), append([]string(nil), p.sessionWhitelist...)
}

// RestoreSessionRules seeds the session rule sets from a prior
// checkpoint (models.SessionState.SessionBlacklist/Whitelist).
func (p *Policy) RestoreSessionRules(blacklist, whitelist []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionBlacklist = append([]string(nil), blacklist...)
	p.sessionWhitelist = append([]string(nil), whitelist...)
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// Config is the on-disk JSON shape for a permission policy.
type Config struct {
	DefaultPolicy string `json:"defaultPolicy"`
	Blacklist     struct {
		Tools     []string           `json:"tools"`
		Patterns  []string           `json:"patterns"`
		Arguments map[string]ArgRule `json:"arguments"`
	} `json:"blacklist"`
	Whitelist struct {
		Tools     []string           `json:"tools"`
		Patterns  []string           `json:"patterns"`
		Arguments map[string]ArgRule `json:"arguments"`
	} `json:"whitelist"`
}

// FromJSON parses a Config from its JSON wire form and builds the
// corresponding StaticPolicy. An unrecognized defaultPolicy value is a
// hard error rather than silently falling back to "ask".
func FromJSON(data []byte) (StaticPolicy, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return StaticPolicy{}, fmt.Errorf("policy: parse config: %w", err)
	}
	return fromConfig(cfg)
}

func fromConfig(cfg Config) (StaticPolicy, error) {
	var decision models.PermissionDecision
	switch cfg.DefaultPolicy {
	case "":
		decision = models.DecisionDeny
	case "allow":
		decision = models.DecisionAllow
	case "deny":
		decision = models.DecisionDeny
	case "ask":
		decision = models.DecisionAskActor
	default:
		return StaticPolicy{}, fmt.Errorf("policy: unrecognized defaultPolicy %q", cfg.DefaultPolicy)
	}

	toSet := func(items []string) map[string]struct{} {
		out := make(map[string]struct{}, len(items))
		for _, i := range items {
			out[i] = struct{}{}
		}
		return out
	}

	return StaticPolicy{
		DefaultPolicy:      decision,
		BlacklistTools:     toSet(cfg.Blacklist.Tools),
		BlacklistPatterns:  cfg.Blacklist.Patterns,
		BlacklistArguments: cfg.Blacklist.Arguments,
		WhitelistTools:     toSet(cfg.Whitelist.Tools),
		WhitelistPatterns:  cfg.Whitelist.Patterns,
		WhitelistArguments: cfg.Whitelist.Arguments,
	}, nil
}
