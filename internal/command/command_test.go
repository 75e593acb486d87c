package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DispatchByNameAndAlias(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&Command{
		Name:    "permissions",
		Aliases: []string{"perms"},
		Handler: func(_ context.Context, args []string) (Result, error) {
			return Result{Text: "args:" + args[0]}, nil
		},
	}))

	out, err := r.Dispatch(context.Background(), "sess-1", "permissions show")
	require.NoError(t, err)
	assert.Equal(t, "args:show", out.Text)

	out, err = r.Dispatch(context.Background(), "sess-1", "perms show")
	require.NoError(t, err)
	assert.Equal(t, "args:show", out.Text)
}

func TestRegistry_DuplicateNameFails(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&Command{Name: "foo", Handler: func(context.Context, []string) (Result, error) { return Result{}, nil }}))
	err := r.Register(&Command{Name: "foo", Handler: func(context.Context, []string) (Result, error) { return Result{}, nil }})
	assert.Error(t, err)
}

func TestRegistry_AliasCollisionIsSkippedNotFatal(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&Command{Name: "foo", Handler: func(context.Context, []string) (Result, error) { return Result{}, nil }}))
	err := r.Register(&Command{Name: "bar", Aliases: []string{"foo"}, Handler: func(context.Context, []string) (Result, error) { return Result{}, nil }})
	require.NoError(t, err)

	cmd, ok := r.Resolve("foo")
	require.True(t, ok)
	assert.Equal(t, "foo", cmd.Name)
}

func TestRegistry_DispatchUnknownCommand(t *testing.T) {
	r := New(nil)
	_, err := r.Dispatch(context.Background(), "sess-1", "nope")
	assert.Error(t, err)
}

type fakeRuntime struct {
	sessionID, commandName, output string
	calls                          int
}

func (f *fakeRuntime) ShareCommandOutput(_ context.Context, sessionID, commandName, output string) error {
	f.sessionID, f.commandName, f.output = sessionID, commandName, output
	f.calls++
	return nil
}

func TestRegistry_ShareWithModelInjectsIntoRuntime(t *testing.T) {
	r := New(nil)
	rt := &fakeRuntime{}
	r.SetRuntime(rt)

	require.NoError(t, r.Register(&Command{
		Name:           "summary",
		ShareWithModel: true,
		Handler: func(context.Context, []string) (Result, error) {
			return Result{Text: "3 open items"}, nil
		},
	}))

	_, err := r.Dispatch(context.Background(), "sess-9", "summary")
	require.NoError(t, err)

	assert.Equal(t, 1, rt.calls)
	assert.Equal(t, "sess-9", rt.sessionID)
	assert.Equal(t, "summary", rt.commandName)
	assert.Equal(t, "3 open items", rt.output)
}

func TestRegistry_NoShareWithModelSkipsRuntime(t *testing.T) {
	r := New(nil)
	rt := &fakeRuntime{}
	r.SetRuntime(rt)

	require.NoError(t, r.Register(&Command{
		Name:    "local-only",
		Handler: func(context.Context, []string) (Result, error) { return Result{Text: "ok"}, nil },
	}))

	_, err := r.Dispatch(context.Background(), "sess-9", "local-only")
	require.NoError(t, err)
	assert.Zero(t, rt.calls)
}
