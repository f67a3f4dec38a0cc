package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sealdice/muzi/adapters"
	"github.com/sealdice/muzi/bot/event"
)

type sendOutcome struct {
	id  int64
	err error
}

// A gateway frame travels through the adapter into a handler, and the
// handler's reply travels back out as an echo-correlated call.
func TestGatewayRoundTrip(t *testing.T) {
	as := assert.New(t)

	pa := &adapters.PlatformAdapterOB11{Path: "/ws", CallTimeout: 2 * time.Second}
	b := New(pa, Options{})
	pa.SetCallback(b)
	t.Cleanup(b.Close)

	seen := make(chan *event.PrivateMessage, 1)
	sent := make(chan sendOutcome, 1)
	require.NoError(t, b.Load(Module{Name: "pong", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindPrivateMessage).Handle(func(c *Context) error {
			seen <- c.Event.(*event.PrivateMessage)
			id, err := c.Send("pong")
			sent <- sendOutcome{id, err}
			return nil
		})
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(pa.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + pa.Path
	gw, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Self-ID": []string{"10001"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	require.Eventually(t, func() bool { return pa.State() == adapters.StateRunning }, 2*time.Second, 10*time.Millisecond)
	as.EqualValues(10001, b.SelfID())

	frame := `{"time":1,"self_id":10001,"post_type":"message","message_type":"private","sub_type":"friend",
		"message_id":1,"user_id":42,"message":"[CQ:at,qq=10001]hi","raw_message":"[CQ:at,qq=10001]hi",
		"sender":{"user_id":42,"nickname":"alice"}}`
	require.NoError(t, gw.WriteMessage(websocket.TextMessage, []byte(frame)))

	var ev *event.PrivateMessage
	select {
	case ev = <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the handler")
	}
	as.True(ev.ToMe)
	require.Len(t, ev.Message, 2)
	as.Equal("at", ev.Message[0].Type)
	as.Equal("10001", ev.Message[0].Get("qq"))
	as.Equal("text", ev.Message[1].Type)
	as.Equal("hi", ev.Message[1].Get("text"))

	require.NoError(t, gw.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := gw.ReadMessage()
	require.NoError(t, err)
	call := gjson.ParseBytes(raw)
	as.Equal("send_msg", call.Get("action").String())
	as.EqualValues(42, call.Get("params.user_id").Int())
	as.Equal("text", call.Get("params.message.0.type").String())
	as.Equal("pong", call.Get("params.message.0.data.text").String())
	echo := call.Get("echo").String()
	require.NotEmpty(t, echo)

	reply := `{"status":"ok","retcode":0,"data":{"message_id":99},"echo":"` + echo + `"}`
	require.NoError(t, gw.WriteMessage(websocket.TextMessage, []byte(reply)))

	select {
	case out := <-sent:
		as.NoError(out.err)
		as.EqualValues(99, out.id)
	case <-time.After(2 * time.Second):
		t.Fatal("send_msg never resolved")
	}
}
