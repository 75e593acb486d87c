package driver

import "encoding/json"

// decodeArgs best-effort decodes a tool call's raw JSON input into the
// map the policy engine's Check expects. A call with no input, or
// input that isn't a JSON object, yields an empty map rather than an
// error — policy rules that don't reference arguments still apply.
func decodeArgs(input []byte) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return map[string]any{}
	}
	return args
}
