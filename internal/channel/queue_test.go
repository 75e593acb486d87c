package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloom/loomcore/pkg/models"
)

func TestQueue_RespondDelivers(t *testing.T) {
	q := NewQueue(0)
	req := models.PermissionRequest{RequestID: "r1", ToolName: "exec"}

	done := make(chan models.ChannelResponse, 1)
	go func() {
		resp, err := q.Resolve(context.Background(), req, DisplayInfo{})
		require.NoError(t, err)
		done <- resp
	}()

	// Give Resolve a moment to register itself as pending.
	require.Eventually(t, func() bool { return len(q.Pending()) == 1 }, time.Second, time.Millisecond)

	ok := q.Respond(models.ChannelResponse{RequestID: "r1", Decision: models.ChannelAllowOnce})
	require.True(t, ok)

	resp := <-done
	assert.Equal(t, models.ChannelAllowOnce, resp.Decision)
}

func TestQueue_TimeoutWithoutResponse(t *testing.T) {
	q := NewQueue(10 * time.Millisecond)
	resp, err := q.Resolve(context.Background(), models.PermissionRequest{RequestID: "r2"}, DisplayInfo{})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelTimeout, resp.Decision)
}

func TestQueue_RespondWithNoWaiterReturnsFalse(t *testing.T) {
	q := NewQueue(0)
	ok := q.Respond(models.ChannelResponse{RequestID: "nope"})
	assert.False(t, ok)
}
