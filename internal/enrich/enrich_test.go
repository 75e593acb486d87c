package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upperEnricher struct{}

func (upperEnricher) Name() string { return "upper" }
func (upperEnricher) EnrichPrompt(_ context.Context, prompt string) (string, map[string]any, error) {
	return prompt + " [enriched]", map[string]any{"ran": true}, nil
}

func TestPipeline_RunsEnrichersThenStripsReferences(t *testing.T) {
	p := &Pipeline{Enrichers: []Enricher{upperEnricher{}}}
	out, meta, err := p.Run(context.Background(), "look at @main.go please")
	require.NoError(t, err)
	assert.NotContains(t, out, "@main.go")
	assert.Contains(t, out, "[enriched]")
	assert.Equal(t, true, meta["upper.ran"])
}

func TestStripAtReferences_Idempotent(t *testing.T) {
	once := StripAtReferences("see @foo.go and @bar/baz.ts")
	twice := StripAtReferences(once)
	assert.Equal(t, once, twice)
	assert.NotContains(t, once, "@")
}

func TestExtractAtReferences(t *testing.T) {
	refs := ExtractAtReferences("compare @a.go with @b/c.go")
	assert.Equal(t, []string{"a.go", "b/c.go"}, refs)
}
