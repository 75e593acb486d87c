package channel

import (
	"context"
	"sync"
	"time"

	"github.com/driftloom/loomcore/pkg/models"
)

// Queue is an in-process approval channel backed by a pending-request
// map: Resolve enqueues the request and blocks on a per-request
// channel until something calls Respond with a matching request ID,
// or ctx is cancelled. Adapted from a TTL-pruned pending-request store
// pattern to a blocking channel wait, since this module has no
// separate UI process polling for pending requests.
type Queue struct {
	mu      sync.Mutex
	pending map[string]chan models.ChannelResponse
	ttl     time.Duration
}

// NewQueue builds a Queue channel. ttl bounds how long a request
// waits for Respond before Resolve gives up and returns a timeout
// response; zero means no TTL beyond ctx's own deadline.
func NewQueue(ttl time.Duration) *Queue {
	return &Queue{pending: make(map[string]chan models.ChannelResponse), ttl: ttl}
}

func (q *Queue) Name() string { return "queue" }

// Pending lists request IDs currently awaiting a Respond call.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}

// Respond delivers a decision for a pending request. It returns false
// if no Resolve call is currently waiting on that request ID.
func (q *Queue) Respond(resp models.ChannelResponse) bool {
	q.mu.Lock()
	ch, ok := q.pending[resp.RequestID]
	if ok {
		delete(q.pending, resp.RequestID)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

func (q *Queue) Resolve(ctx context.Context, req models.PermissionRequest, _ DisplayInfo) (models.ChannelResponse, error) {
	ch := make(chan models.ChannelResponse, 1)

	q.mu.Lock()
	q.pending[req.RequestID] = ch
	q.mu.Unlock()

	cleanup := func() {
		q.mu.Lock()
		delete(q.pending, req.RequestID)
		q.mu.Unlock()
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if q.ttl > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, q.ttl)
		defer cancel()
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-waitCtx.Done():
		cleanup()
		return models.ChannelResponse{
			RequestID: req.RequestID,
			Decision:  models.ChannelTimeout,
			Reason:    "no response before timeout",
		}, nil
	}
}
