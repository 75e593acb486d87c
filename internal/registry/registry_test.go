package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloom/loomcore/pkg/models"
)

type echoPlugin struct {
	name string
}

func (e echoPlugin) Name() string     { return e.name }
func (e echoPlugin) Kind() models.Kind { return models.KindTool }

func (e echoPlugin) ToolSchemas() []models.ToolSchema {
	return []models.ToolSchema{{Name: e.name + "_echo", Description: "echoes input"}}
}

func (e echoPlugin) Executors() map[string]Executor {
	return map[string]Executor{e.name + "_echo": echoExecutor{}}
}

func (e echoPlugin) SystemInstruction() string {
	return "the " + e.name + " plugin can echo text"
}

func (e echoPlugin) AutoApprovedTools() []string {
	return []string{e.name + "_echo"}
}

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, call models.ToolCallRequest) (models.ToolResult, error) {
	return models.ToolResult{ToolCallID: call.ID, Content: string(call.Input)}, nil
}

func TestRegistry_RegisterExposeOrderIsExplicit(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoPlugin{name: "b"}))
	require.NoError(t, r.Register(echoPlugin{name: "a"}))
	require.NoError(t, r.Register(echoPlugin{name: "c"}))

	require.NoError(t, r.Expose(context.Background(), "b", "any-model"))
	require.NoError(t, r.Expose(context.Background(), "a", "any-model"))
	require.NoError(t, r.Expose(context.Background(), "c", "any-model"))

	assert.Equal(t, []string{"b", "a", "c"}, r.ExposedOrder())

	schemas := r.ToolSchemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "b_echo", schemas[0].Name)
	assert.Equal(t, "a_echo", schemas[1].Name)
	assert.Equal(t, "c_echo", schemas[2].Name)
}

func TestRegistry_UnexposeRemovesFromOrderNotRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoPlugin{name: "a"}))
	require.NoError(t, r.Expose(context.Background(), "a", "any-model"))

	r.Unexpose("a")
	assert.Empty(t, r.ExposedOrder())

	_, found := r.Executor("a_echo")
	assert.False(t, found)

	require.NoError(t, r.Expose(context.Background(), "a", "any-model"))
	_, found = r.Executor("a_echo")
	assert.True(t, found)
}

func TestRegistry_DuplicateRegisterFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoPlugin{name: "a"}))
	err := r.Register(echoPlugin{name: "a"})
	assert.Error(t, err)
}

func TestRegistry_AutoApprovedAndSystemInstructions(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoPlugin{name: "a"}))
	require.NoError(t, r.Expose(context.Background(), "a", "any-model"))

	assert.Contains(t, r.AutoApprovedTools(), "a_echo")
	assert.Contains(t, r.SystemInstructions(), "a plugin can echo text")
}

type lifecyclePlugin struct {
	name       string
	initErr    error
	shutdownErr error
	initialized bool
	shutdown    bool
}

func (p *lifecyclePlugin) Name() string      { return p.name }
func (p *lifecyclePlugin) Kind() models.Kind { return models.KindTool }
func (p *lifecyclePlugin) Initialize(context.Context) error {
	p.initialized = true
	return p.initErr
}
func (p *lifecyclePlugin) Shutdown(context.Context) error {
	p.shutdown = true
	return p.shutdownErr
}

func TestRegistry_InitializeFailureKeepsPluginUnexposed(t *testing.T) {
	r := New()
	bad := &lifecyclePlugin{name: "bad", initErr: fmt.Errorf("boom")}
	good := &lifecyclePlugin{name: "good"}
	require.NoError(t, r.Register(bad))
	require.NoError(t, r.Register(good))

	err := r.Expose(context.Background(), "bad", "any-model")
	assert.Error(t, err)
	assert.True(t, bad.initialized)

	require.NoError(t, r.Expose(context.Background(), "good", "any-model"))

	assert.Equal(t, []string{"good"}, r.ExposedOrder())
}

func TestRegistry_ShutdownCallsEveryExposedPlugin(t *testing.T) {
	r := New()
	a := &lifecyclePlugin{name: "a"}
	b := &lifecyclePlugin{name: "b", shutdownErr: fmt.Errorf("failed to close")}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Expose(context.Background(), "a", "any-model"))
	require.NoError(t, r.Expose(context.Background(), "b", "any-model"))

	errs := r.Shutdown(context.Background())
	assert.True(t, a.shutdown)
	assert.True(t, b.shutdown)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "failed to close")
}

type observerPlugin struct {
	name   string
	events []models.AgentEvent
}

func (p *observerPlugin) Name() string      { return p.name }
func (p *observerPlugin) Kind() models.Kind { return models.KindSession }
func (p *observerPlugin) OnEvent(_ context.Context, event models.AgentEvent) {
	p.events = append(p.events, event)
}

func TestRegistry_ObserversReceiveEventsInExposureOrder(t *testing.T) {
	r := New()
	first := &observerPlugin{name: "first"}
	second := &observerPlugin{name: "second"}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))
	require.NoError(t, r.Expose(context.Background(), "first", "any-model"))
	require.NoError(t, r.Expose(context.Background(), "second", "any-model"))

	observers := r.Observers()
	require.Len(t, observers, 2)
	assert.Same(t, first, observers[0])
	assert.Same(t, second, observers[1])

	event := models.AgentEvent{Type: models.EventTurnStart, SessionID: "s1"}
	for _, o := range observers {
		o.OnEvent(context.Background(), event)
	}

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, models.EventTurnStart, first.events[0].Type)
}

func TestRegistry_RegisterDetectsObserverCapability(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&observerPlugin{name: "watcher"}))
	require.NoError(t, r.Register(echoPlugin{name: "plain"}))

	handles := r.Handles()
	byName := make(map[string]models.PluginHandle, len(handles))
	for _, h := range handles {
		byName[h.Name] = h
	}

	assert.True(t, byName["watcher"].Observes)
	assert.False(t, byName["plain"].Observes)
}

func TestParseManifest_RejectsUnknownKind(t *testing.T) {
	_, err := ParseManifest([]byte("name: foo\nkind: bogus\n"))
	assert.Error(t, err)
}

func TestParseManifest_OK(t *testing.T) {
	m, err := ParseManifest([]byte("name: foo\nkind: tool\n"))
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)
}
