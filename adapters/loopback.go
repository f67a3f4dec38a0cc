package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// LoopbackCall is one action recorded by Loopback.
type LoopbackCall struct {
	Action string
	Params json.RawMessage
}

// Loopback 无网关的本地连接，用于控制台和测试。所有调用都会被记录，
// 发送类动作返回递增的 message_id，其余返回空结果。
type Loopback struct {
	// OnCall, when set, sees every call after it was recorded.
	OnCall func(call LoopbackCall)

	mu          sync.Mutex
	calls       []LoopbackCall
	nextID      atomic.Int64
	state       atomic.Int32
	disconnects atomic.Int32
	reboots     atomic.Int32
}

var _ Conn = (*Loopback)(nil)

func NewLoopback() *Loopback {
	lb := &Loopback{}
	lb.state.Store(int32(StateRunning))
	return lb
}

func (lb *Loopback) CallAction(ctx context.Context, action string, params any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if State(lb.state.Load()) != StateRunning {
		return nil, ErrNotConnected
	}
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("loopback: encode %s: %w", action, err)
	}
	call := LoopbackCall{Action: action, Params: raw}

	lb.mu.Lock()
	lb.calls = append(lb.calls, call)
	lb.mu.Unlock()
	if lb.OnCall != nil {
		lb.OnCall(call)
	}

	switch action {
	case "send_msg", "send_group_msg", "send_private_msg":
		return json.RawMessage(fmt.Sprintf(`{"message_id":%d}`, lb.nextID.Add(1))), nil
	}
	return json.RawMessage(`null`), nil
}

// Calls returns the recorded calls of action, or all of them for "".
func (lb *Loopback) Calls(action string) []LoopbackCall {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	var out []LoopbackCall
	for _, c := range lb.calls {
		if action == "" || c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (lb *Loopback) State() State {
	return State(lb.state.Load())
}

func (lb *Loopback) Disconnect() {
	lb.disconnects.Add(1)
	lb.state.Store(int32(StateDisconnected))
}

// Reboot comes back immediately.
func (lb *Loopback) Reboot() {
	lb.reboots.Add(1)
	lb.state.Store(int32(StateRunning))
}

// Reconnect puts a disconnected loopback back to running.
func (lb *Loopback) Reconnect() {
	lb.state.Store(int32(StateRunning))
}

func (lb *Loopback) Disconnects() int {
	return int(lb.disconnects.Load())
}

func (lb *Loopback) Reboots() int {
	return int(lb.reboots.Load())
}
