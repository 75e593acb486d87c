package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/driftloom/loomcore/pkg/models"
)

// ExecutionRecord is one append-only record of a tool call handled by
// dispatchOne (executed, denied, or not found), distinct from the
// policy engine's decision audit log: this one records what happened
// to the call and what it returned, not why it was allowed to run.
type ExecutionRecord struct {
	Timestamp  time.Time
	ToolName   string
	ToolCallID string
	IsError    bool
	Summary    string
}

// executionLog is a mutex-guarded, append-only list of ExecutionRecords.
type executionLog struct {
	mu      sync.Mutex
	records []ExecutionRecord
}

func (l *executionLog) record(rec ExecutionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *executionLog) snapshot() []ExecutionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ExecutionRecord(nil), l.records...)
}

// ExecutionLog returns a snapshot of every tool call dispatchOne has
// executed (or attempted), in execution order.
func (d *Driver) ExecutionLog() []ExecutionRecord {
	return d.execLog.snapshot()
}

// summarizeResult builds the short, audit-friendly description of a
// ToolResult: a truncated content excerpt for normal results, or a
// mime/byte-count marker for multimodal ones.
func summarizeResult(r models.ToolResult) string {
	if r.Multimodal {
		return fmt.Sprintf("multimodal(%s, %d bytes)", r.MimeType, len(r.Data))
	}
	const maxLen = 200
	content := r.Content
	if len(content) > maxLen {
		content = content[:maxLen] + "…"
	}
	return content
}
