package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloom/loomcore/pkg/models"
)

func TestCheck_BlacklistBeatsWhitelist(t *testing.T) {
	p := New(StaticPolicy{
		DefaultPolicy:  models.DecisionAllow,
		BlacklistTools: map[string]struct{}{"exec": {}},
		WhitelistTools: map[string]struct{}{"exec": {}},
	})

	match := p.Check("exec", nil)
	assert.Equal(t, models.DecisionDeny, match.Decision)
	assert.Equal(t, "blacklist", match.RuleType)
}

func TestCheck_SessionBlacklistOutranksEverything(t *testing.T) {
	p := New(StaticPolicy{
		DefaultPolicy:  models.DecisionAllow,
		WhitelistTools: map[string]struct{}{"exec": {}},
	})
	p.AddSessionWhitelist("exec")
	p.AddSessionBlacklist("exec")

	match := p.Check("exec", nil)
	assert.Equal(t, models.DecisionDeny, match.Decision)
	assert.Equal(t, "session_blacklist", match.RuleType)
}

func TestCheck_SessionWhitelistBeatsStaticDefault(t *testing.T) {
	p := New(StaticPolicy{DefaultPolicy: models.DecisionDeny})
	p.AddSessionWhitelist("exec")

	match := p.Check("exec", nil)
	assert.Equal(t, models.DecisionAllow, match.Decision)
	assert.Equal(t, "session_whitelist", match.RuleType)
}

func TestCheck_PatternVsExplicitTool(t *testing.T) {
	p := New(StaticPolicy{
		DefaultPolicy:     models.DecisionAllow,
		BlacklistPatterns: []string{"rm *"},
	})

	match := p.Check("cli_based_tool", map[string]any{
		"command": "rm",
		"args":    []any{"-rf", "/"},
	})
	assert.Equal(t, models.DecisionDeny, match.Decision)
	assert.Equal(t, "rm *", match.MatchedRule)
}

func TestCheck_DefaultPolicyFallback(t *testing.T) {
	p := New(StaticPolicy{DefaultPolicy: models.DecisionAskActor})
	match := p.Check("anything", nil)
	assert.Equal(t, models.DecisionAskActor, match.Decision)
	assert.Equal(t, "default", match.RuleType)
}

func TestFromJSON_UnknownDefaultPolicyIsHardError(t *testing.T) {
	_, err := FromJSON([]byte(`{"defaultPolicy": "maybe"}`))
	require.Error(t, err)
}

func TestFromJSON_RoundTrip(t *testing.T) {
	static, err := FromJSON([]byte(`{
		"defaultPolicy": "deny",
		"blacklist": {"tools": ["rm"], "patterns": ["sudo *"]},
		"whitelist": {"tools": ["git"], "arguments": {"cli_based_tool": {"command": ["git", "npm"]}}}
	}`))
	require.NoError(t, err)

	p := New(static)
	assert.Equal(t, models.DecisionDeny, p.Check("rm", nil).Decision)
	assert.Equal(t, models.DecisionAllow, p.Check("git", nil).Decision)
	assert.Equal(t, models.DecisionDeny, p.Check("anything-else", nil).Decision)
}

// TestCheck_AuditCompleteness asserts that every Check call appends
// exactly one AuditEntry to the Policy's audit log — the testable
// property "every call to check_permission appends exactly one audit
// entry" — and that the entry's fields match the returned PolicyMatch,
// regardless of which tier of the priority chain decided it.
func TestCheck_AuditCompleteness(t *testing.T) {
	p := New(StaticPolicy{
		DefaultPolicy:     models.DecisionAskActor,
		BlacklistTools:    map[string]struct{}{"rm": {}},
		WhitelistPatterns: []string{"fs.*"},
	})
	p.AddSessionBlacklist("danger")
	p.AddSessionWhitelist("safe")

	cases := []struct {
		name     string
		tool     string
		wantType string
	}{
		{"session blacklist", "danger", "session_blacklist"},
		{"static blacklist", "rm", "blacklist"},
		{"session whitelist", "safe", "session_whitelist"},
		{"static whitelist pattern", "fs.read", "whitelist"},
		{"default fallthrough", "unclassified", "default"},
	}

	for i, c := range cases {
		args := map[string]any{"case": c.name}
		match := p.Check(c.tool, args)
		assert.Equal(t, c.wantType, match.RuleType, c.name)
		assert.NotEmpty(t, match.Reason, "%s: Reason must explain the decision", c.name)
		assert.NotEmpty(t, match.Decision, "%s: Decision must always be set", c.name)

		log := p.AuditLog()
		require.Len(t, log, i+1, "%s: Check must append exactly one audit entry", c.name)

		entry := log[i]
		assert.Equal(t, c.tool, entry.ToolName, c.name)
		assert.Equal(t, args, entry.Args, c.name)
		assert.Equal(t, match.Decision, entry.Decision, c.name)
		assert.Equal(t, match.Reason, entry.Reason, c.name)
		assert.Equal(t, match.RuleType, entry.RuleType, c.name)
	}

	require.Len(t, p.AuditLog(), len(cases), "audit log must have exactly one entry per Check call")
}

// TestCheck_NormalizesAliasBeforeMatching asserts a blacklist entry for
// a canonical tool name also catches its documented aliases.
func TestCheck_NormalizesAliasBeforeMatching(t *testing.T) {
	p := New(StaticPolicy{
		DefaultPolicy:  models.DecisionAllow,
		BlacklistTools: map[string]struct{}{"exec": {}},
	})

	for _, alias := range []string{"bash", "shell", "exec"} {
		match := p.Check(alias, nil)
		assert.Equal(t, models.DecisionDeny, match.Decision, alias)
		assert.Equal(t, "blacklist", match.RuleType, alias)
	}
}

func TestGlobMatch_Shapes(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "anything", true},
		{"exec", "exec", true},
		{"mcp:*", "mcp:fs.read", true},
		{"fs.*", "fs.read", true},
		{"*.read", "fs.read", true},
		{"fs.*", "other", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, globMatch(c.pattern, c.s), "pattern=%s s=%s", c.pattern, c.s)
	}
}
