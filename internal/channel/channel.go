// Package channel implements the out-of-band approval channel
// abstraction: the mechanism by which a PermissionRequest the policy
// engine can't decide on its own gets routed to a human or other actor
// for a ChannelResponse.
package channel

import (
	"context"
	"strconv"

	"github.com/driftloom/loomcore/pkg/models"
)

// DisplayInfo customizes how a pending permission request is rendered
// to whoever (or whatever) is being asked to decide it. The driver
// builds one per escalated call (a summary naming the tool, with the
// policy's reason as details); there is no plugin capability for
// supplying a custom one.
type DisplayInfo struct {
	Summary      string
	Details      string
	FormatHint   string // "text" | "diff" | "json" | "code"
	Language     string
	Truncated    bool
	OriginalLines int
}

// Render formats the DisplayInfo as a single human-readable block.
func (d DisplayInfo) Render() string {
	out := d.Summary
	if d.Details != "" {
		out += "\n\n" + d.Details
	}
	if d.Truncated {
		out += "\n[truncated; original had " + strconv.Itoa(d.OriginalLines) + " lines]"
	}
	return out
}

// Channel is the single operation every approval channel
// implementation provides: resolve a PermissionRequest into a
// ChannelResponse. Every implementation blocks until it has an answer
// (console line, file poll, queue Respond, webhook HTTP reply) or ctx
// ends — callers apply their own timeout via ctx.
type Channel interface {
	Name() string
	Resolve(ctx context.Context, req models.PermissionRequest, display DisplayInfo) (models.ChannelResponse, error)
}
