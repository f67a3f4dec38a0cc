package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame 收到的帧不是 JSON 对象
	ErrMalformedFrame = errors.New("ob11: malformed frame")
	// ErrConnectionFailed 握手缺少 X-Self-ID 或其值非法
	ErrConnectionFailed = errors.New("ob11: connection failed")
	// ErrTimedOut means the call produced no result before its deadline.
	// It is not fatal; callers that do not need the result may ignore it.
	ErrTimedOut = errors.New("ob11: action timed out")
	// ErrDuplicateToken 同一 echo 重复注册
	ErrDuplicateToken = errors.New("ob11: duplicate echo token")
	ErrNotConnected   = errors.New("ob11: no active connection")
	ErrSessionClosed  = errors.New("ob11: connection closed")
)

// ActionFailedError carries the gateway response of a call whose status was failed.
type ActionFailedError struct {
	Action   string
	Response *ActionResponse
}

func (e *ActionFailedError) Error() string {
	msg := e.Response.Wording
	if msg == "" {
		msg = e.Response.Message
	}
	if msg == "" {
		return fmt.Sprintf("ob11: action %s failed: retcode=%d", e.Action, e.Response.RetCode)
	}
	return fmt.Sprintf("ob11: action %s failed: retcode=%d %s", e.Action, e.Response.RetCode, msg)
}

// ActionRequest is an outbound call frame.
type ActionRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// ActionResponse is the gateway's reply to an ActionRequest.
type ActionResponse struct {
	Status  string          `json:"status"`
	RetCode int64           `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Echo    json.RawMessage `json:"echo"`
}

func (r *ActionResponse) Failed() bool {
	return r.Status == "failed"
}

// State 连接管理器状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAccepted
	StateIdentified
	StateRunning
	StateDisconnecting
	StateRebooting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAccepted:
		return "accepted"
	case StateIdentified:
		return "identified"
	case StateRunning:
		return "running"
	case StateDisconnecting:
		return "disconnecting"
	case StateRebooting:
		return "rebooting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
