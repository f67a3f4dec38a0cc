package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingResolve(t *testing.T) {
	var table pendingTable
	slot, err := table.register("muzi-1")
	require.NoError(t, err)

	go func() {
		table.resolve("muzi-1", &ActionResponse{Status: "ok", Data: []byte(`{"x":1}`)})
	}()

	resp, err := table.await(context.Background(), "muzi-1", slot, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `{"x":1}`, string(resp.Data))
	assert.Zero(t, table.len())
}

func TestPendingDuplicateToken(t *testing.T) {
	var table pendingTable
	_, err := table.register("muzi-1")
	require.NoError(t, err)

	_, err = table.register("muzi-1")
	assert.True(t, errors.Is(err, ErrDuplicateToken))
}

func TestPendingTimeoutDiscardsLateResponse(t *testing.T) {
	as := assert.New(t)
	var table pendingTable
	slot, err := table.register("muzi-7")
	require.NoError(t, err)

	start := time.Now()
	resp, err := table.await(context.Background(), "muzi-7", slot, 50*time.Millisecond)
	as.Nil(resp)
	as.True(errors.Is(err, ErrTimedOut))
	as.GreaterOrEqual(time.Since(start), 50*time.Millisecond)
	as.Zero(table.len(), "timed out entry must be removed")

	as.False(table.resolve("muzi-7", &ActionResponse{Status: "ok"}), "late response must be discarded")
	as.Zero(table.len())
}

func TestPendingUnknownTokenIgnored(t *testing.T) {
	var table pendingTable
	assert.False(t, table.resolve("nobody", &ActionResponse{Status: "ok"}))
}

func TestPendingContextCancel(t *testing.T) {
	var table pendingTable
	slot, err := table.register("muzi-2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = table.await(ctx, "muzi-2", slot, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, table.len())
}

func TestPendingFailAll(t *testing.T) {
	var table pendingTable
	slotA, _ := table.register("a")
	slotB, _ := table.register("b")

	table.failAll(ErrSessionClosed)

	for _, slot := range []<-chan callResult{slotA, slotB} {
		res := <-slot
		assert.True(t, errors.Is(res.err, ErrSessionClosed))
	}
	assert.Zero(t, table.len())
}

func TestDecodeFrame(t *testing.T) {
	as := assert.New(t)

	for _, raw := range []string{`not json`, `[1,2]`, `"str"`, ``} {
		_, err := decodeFrame([]byte(raw))
		as.True(errors.Is(err, ErrMalformedFrame), "input %q", raw)
	}

	f, err := decodeFrame([]byte(`{"post_type":"message","time":1}`))
	require.NoError(t, err)
	as.True(f.isEvent())
	as.False(f.HasEcho)

	f, err = decodeFrame([]byte(`{"status":"ok","retcode":0,"data":null,"echo":"muzi-3"}`))
	require.NoError(t, err)
	as.False(f.isEvent())
	as.True(f.HasEcho)
	as.Equal("muzi-3", f.Echo)
	as.Equal("ok", f.response().Status)
}

func TestEncodeCall(t *testing.T) {
	out, err := encodeCall("delete_msg", map[string]any{"message_id": 9}, "muzi-4")
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"delete_msg","params":{"message_id":9},"echo":"muzi-4"}`, string(out))

	out, err = encodeCall("get_login_info", nil, "muzi-5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"get_login_info","params":{},"echo":"muzi-5"}`, string(out))
}
