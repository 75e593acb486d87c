// Package enrich implements the prompt enrichment pipeline: a chain
// of plugin-supplied enrichers that inspect and may augment a user
// prompt before it reaches the model, followed by the driver's own
// at-reference stripping pass.
package enrich

import (
	"context"
	"fmt"
	"regexp"
)

// AtReferencePattern matches @-references like "@file.png" or
// "@some/path.ts" in a prompt.
var AtReferencePattern = regexp.MustCompile(`@([\w./\-]+(?:\.\w+)?)`)

// Enricher is the capability a plugin implements to participate in
// the pipeline (internal/registry.EnrichmentSubscriber). Enrichers
// must not strip @-references themselves — the driver does that once,
// after every enricher has run (grounded on
// original_source/shared/plugins/base.py's enrich_prompt doc: "Plugins
// should NOT remove @references from the prompt. The framework
// handles @reference cleanup after all plugins have processed it.").
type Enricher interface {
	Name() string
	EnrichPrompt(ctx context.Context, prompt string) (string, map[string]any, error)
}

// Pipeline runs a sequence of Enrichers over a prompt in registration
// order, then strips at-references, returning the final prompt text
// and the merged metadata every enricher contributed.
type Pipeline struct {
	Enrichers []Enricher
}

// Run applies every enricher in order, then strips at-references.
func (p *Pipeline) Run(ctx context.Context, prompt string) (string, map[string]any, error) {
	metadata := make(map[string]any)

	current := prompt
	for _, e := range p.Enrichers {
		next, meta, err := e.EnrichPrompt(ctx, current)
		if err != nil {
			return "", nil, fmt.Errorf("enrich: %s: %w", e.Name(), err)
		}
		current = next
		for k, v := range meta {
			metadata[e.Name()+"."+k] = v
		}
	}

	return StripAtReferences(current), metadata, nil
}

// StripAtReferences removes every @-reference token from a prompt.
// Idempotent: running it twice produces the same output as running it
// once, since a stripped prompt contains no more @-reference tokens to
// match.
func StripAtReferences(prompt string) string {
	return AtReferencePattern.ReplaceAllString(prompt, "")
}

// ExtractAtReferences returns the referenced paths found in a prompt,
// in order of appearance, without modifying the prompt.
func ExtractAtReferences(prompt string) []string {
	matches := AtReferencePattern.FindAllStringSubmatch(prompt, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
