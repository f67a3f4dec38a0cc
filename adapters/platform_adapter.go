package adapters

import (
	"context"
	"encoding/json"
)

// Caller performs one correlated action call against the gateway.
type Caller interface {
	CallAction(ctx context.Context, action string, params any) (json.RawMessage, error)
}

// Conn is the connection surface the bot drives.
type Conn interface {
	Caller
	State() State
	// Disconnect drops the current connection.
	Disconnect()
	// Reboot drops the current connection and waits for the gateway to come back.
	Reboot()
}

// AdapterCallback 适配器回调接口。OnEvent 在读循环内调用，必须尽快返回。
type AdapterCallback interface {
	OnConnect(selfID int64)
	OnDisconnect(cause error)
	OnEvent(payload []byte)
	// OnReboot is called between disconnect and reconnect. Implementations
	// should wait for in-flight work until ctx is done.
	OnReboot(ctx context.Context)
	OnError(err error)
}

var _ Conn = (*PlatformAdapterOB11)(nil)
