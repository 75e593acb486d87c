package policy

import "strings"

// globMatch matches a restricted glob grammar against s: an exact
// string, "prefix*", "*suffix", "*infix*", "*" (match-all), or the
// special "mcp:*" form used for namespaced MCP tool names. It
// deliberately does not support '*' in any other position or
// '?'/character classes —
// those are the only shapes the remember-pattern flow ever produces
// (see DESIGN.md "Open Question resolutions").
func globMatch(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == s {
		return true
	}
	if strings.HasPrefix(pattern, "mcp:") {
		return matchSuffixOrPrefix(strings.TrimPrefix(pattern, "mcp:"), strings.TrimPrefix(s, "mcp:")) && strings.HasPrefix(s, "mcp:")
	}
	return matchSuffixOrPrefix(pattern, s)
}

func matchSuffixOrPrefix(pattern, s string) bool {
	switch {
	case strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, "*") && len(pattern) > 1:
		mid := pattern[1 : len(pattern)-1]
		return strings.Contains(s, mid)
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	default:
		return pattern == s
	}
}

// NormalizeTool canonicalizes common tool-name aliases to their
// primary name before rule matching, so a blacklist entry for "exec"
// also catches calls spelled "bash" or "shell".
func NormalizeTool(name string) string {
	switch name {
	case "bash", "shell":
		return "exec"
	case "apply-patch", "apply_patch":
		return "edit"
	case "sandbox":
		return "execute_code"
	case "websearch":
		return "web_search"
	case "webfetch":
		return "web_fetch"
	default:
		return name
	}
}
