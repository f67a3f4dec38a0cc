package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/sealdice/muzi/bot/message"
)

func TestLoopbackRecordsCalls(t *testing.T) {
	as := assert.New(t)
	lb := NewLoopback()
	var seen []string
	lb.OnCall = func(call LoopbackCall) { seen = append(seen, call.Action) }
	acts := Actions{Caller: lb}

	id, err := acts.SendGroupMsg(context.Background(), 3, message.Of("hi"))
	as.NoError(err)
	as.EqualValues(1, id)
	id, err = acts.SendMsg(context.Background(), 0, 4, message.Of("yo"))
	as.NoError(err)
	as.EqualValues(2, id)
	as.NoError(acts.DeleteMsg(context.Background(), 1))

	as.Equal([]string{"send_group_msg", "send_msg", "delete_msg"}, seen)
	as.Len(lb.Calls(""), 3)
	calls := lb.Calls("send_msg")
	as.Len(calls, 1)
	as.EqualValues(4, gjson.GetBytes(calls[0].Params, "user_id").Int())
}

func TestLoopbackState(t *testing.T) {
	as := assert.New(t)
	lb := NewLoopback()
	as.Equal(StateRunning, lb.State())

	lb.Disconnect()
	as.Equal(StateDisconnected, lb.State())
	as.Equal(1, lb.Disconnects())
	_, err := lb.CallAction(context.Background(), "get_login_info", nil)
	as.ErrorIs(err, ErrNotConnected)

	lb.Reboot()
	as.Equal(StateRunning, lb.State())
	as.Equal(1, lb.Reboots())
	_, err = lb.CallAction(context.Background(), "get_login_info", nil)
	as.NoError(err)
}
