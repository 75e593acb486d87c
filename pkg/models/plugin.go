package models

// Kind classifies what a registered plugin contributes to the runtime.
type Kind string

const (
	KindTool    Kind = "tool"
	KindGC      Kind = "gc"
	KindSession Kind = "session"
)

// PluginHandle is the registry's record of a loaded plugin: its
// identity plus the capability surface it exposed at registration
// time. Unlike a reflection-based capability probe, this list is
// built explicitly by the registry as it queries each capability
// interface once at load time (see internal/registry).
type PluginHandle struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Version     string   `json:"version,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Commands    []string `json:"commands,omitempty"`
	Enriches    bool     `json:"enriches,omitempty"`
	Observes    bool     `json:"observes,omitempty"`
	AutoApprove []string `json:"auto_approved,omitempty"`
	Enabled     bool     `json:"enabled"`
}
