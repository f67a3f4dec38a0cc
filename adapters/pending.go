package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type callResult struct {
	resp *ActionResponse
	err  error
}

// pendingTable correlates echo tokens with the calls waiting on them.
type pendingTable struct {
	mu    sync.Mutex
	slots map[string]chan callResult
}

func (t *pendingTable) register(token string) (<-chan callResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots == nil {
		t.slots = make(map[string]chan callResult)
	}
	if _, exists := t.slots[token]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, token)
	}
	ch := make(chan callResult, 1)
	t.slots[token] = ch
	return ch, nil
}

// resolve completes the slot for token. It reports false for unknown or
// already completed tokens, whose responses are dropped.
func (t *pendingTable) resolve(token string, resp *ActionResponse) bool {
	t.mu.Lock()
	ch, ok := t.slots[token]
	delete(t.slots, token)
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- callResult{resp: resp}
	return true
}

func (t *pendingTable) cancel(token string) {
	t.mu.Lock()
	delete(t.slots, token)
	t.mu.Unlock()
}

func (t *pendingTable) await(ctx context.Context, token string, slot <-chan callResult, timeout time.Duration) (*ActionResponse, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-slot:
		return res.resp, res.err
	case <-timer.C:
		t.cancel(token)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimedOut, token, timeout)
	case <-ctx.Done():
		t.cancel(token)
		return nil, ctx.Err()
	}
}

// failAll completes every outstanding slot with err.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()

	for _, ch := range slots {
		ch <- callResult{err: err}
	}
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
