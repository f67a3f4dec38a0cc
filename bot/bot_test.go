package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sealdice/muzi/adapters"
	"github.com/sealdice/muzi/bot/event"
)

const (
	groupMsg = `{"time":1,"self_id":10001,"post_type":"message","message_type":"group","sub_type":"normal",
		"message_id":7,"group_id":555,"user_id":42,"message":"%s","raw_message":"%s",
		"sender":{"user_id":42,"nickname":"alice","role":"member"}}`
	privateMsg = `{"time":1,"self_id":10001,"post_type":"message","message_type":"private","sub_type":"friend",
		"message_id":8,"user_id":42,"message":"%s","raw_message":"%s","sender":{"user_id":42,"nickname":"alice"}}`
	offlineHeartbeat = `{"time":1,"self_id":10001,"post_type":"meta_event","meta_event_type":"heartbeat","interval":5000,"status":{"online":false}}`
	onlineHeartbeat  = `{"time":1,"self_id":10001,"post_type":"meta_event","meta_event_type":"heartbeat","interval":5000,"status":{"online":true}}`
	bareHeartbeat    = `{"time":1,"self_id":10001,"post_type":"meta_event","meta_event_type":"heartbeat","interval":5000,"status":{"app_good":true,"good":true}}`
	nullHeartbeat    = `{"time":1,"self_id":10001,"post_type":"meta_event","meta_event_type":"heartbeat","interval":5000,"status":{"online":null,"good":true}}`
)

type fakeCall struct {
	action string
	params []byte
}

type fakeConn struct {
	mu          sync.Mutex
	calls       []fakeCall
	nextID      int64
	disconnects int
	reboots     int
}

func (f *fakeConn) CallAction(_ context.Context, action string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{action: action, params: raw})
	if action == "send_msg" {
		f.nextID++
		return json.RawMessage(fmt.Sprintf(`{"message_id":%d}`, f.nextID)), nil
	}
	return json.RawMessage(`null`), nil
}

func (f *fakeConn) State() adapters.State { return adapters.StateRunning }

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeConn) Reboot() {
	f.mu.Lock()
	f.reboots++
	f.mu.Unlock()
}

func (f *fakeConn) callsOf(action string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.action == action {
			out = append(out, c)
		}
	}
	return out
}

func newTestBot(t *testing.T, opts Options) (*Bot, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	b := New(conn, opts)
	t.Cleanup(b.Close)
	return b, conn
}

func decode(t *testing.T, raw string) event.Event {
	t.Helper()
	ev, ok, err := event.Decode([]byte(raw))
	require.NoError(t, err)
	require.True(t, ok)
	return ev
}

func groupText(t *testing.T, text string) event.Event {
	return decode(t, fmt.Sprintf(groupMsg, text, text))
}

func privateText(t *testing.T, text string) event.Event {
	return decode(t, fmt.Sprintf(privateMsg, text, text))
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.got = append(r.got, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func (r *recorder) handler(tag string) HandlerFunc {
	return func(*Context) error {
		r.add(tag)
		return nil
	}
}

func TestDispatchOrdersTriggersByPriority(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(Module{Name: "order", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindMessage, WithPriority(3)).Handle(rec.handler("p3"))
		r.OnEvent(event.KindMessage, WithPriority(1)).Handle(rec.handler("p1-first"))
		r.OnEvent(event.KindMessage, WithPriority(2)).Handle(rec.handler("p2"))
		r.OnEvent(event.KindMessage, WithPriority(1)).Handle(rec.handler("p1-second"))
		return nil
	}}))

	report := b.Dispatch(context.Background(), privateText(t, "hi"))
	as.Equal([]string{"p1-first", "p1-second", "p2", "p3"}, rec.list())
	as.Len(report.Handled, 4)
	as.Empty(report.Failed)
}

func TestDispatchVisitsPluginsByName(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	for _, name := range []string{"zeta", "alpha", "mid"} {
		name := name
		as.NoError(b.Load(Module{Name: name, Setup: func(r *Registrar) error {
			r.OnEvent(nil, WithPriority(0)).Handle(rec.handler(name))
			return nil
		}}))
	}

	b.Dispatch(context.Background(), privateText(t, "hi"))
	as.Equal([]string{"alpha", "mid", "zeta"}, rec.list())
}

func TestBlockingTriggerStopsPass(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(
		Module{Name: "a", Setup: func(r *Registrar) error {
			r.OnKeyword([]string{"stop"}, WithBlock(), WithName("blocker")).Handle(rec.handler("blocker"))
			r.OnEvent(event.KindMessage, WithPriority(5)).Handle(rec.handler("a-late"))
			return nil
		}},
		Module{Name: "b", Setup: func(r *Registrar) error {
			r.OnEvent(event.KindMessage).Handle(rec.handler("b"))
			return nil
		}},
	))

	report := b.Dispatch(context.Background(), privateText(t, "please stop"))
	as.Equal([]string{"blocker"}, rec.list())
	as.Equal("a.blocker", report.Blocked)

	// a blocking trigger that does not match does not block
	rec.got = nil
	b.Dispatch(context.Background(), privateText(t, "go on"))
	as.Equal([]string{"a-late", "b"}, rec.list())
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(Module{Name: "iso", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindMessage, WithName("broken")).Handle(func(*Context) error {
			return errors.New("boom")
		}).Handle(rec.handler("never"))
		r.OnEvent(event.KindMessage, WithName("panics")).Handle(func(*Context) error {
			panic("oops")
		})
		r.OnEvent(event.KindMessage, WithName("fine")).Handle(rec.handler("fine"))
		return nil
	}}))

	report := b.Dispatch(context.Background(), privateText(t, "x"))
	as.Equal([]string{"fine"}, rec.list())
	as.Equal([]string{"iso.broken", "iso.panics"}, report.Failed)
	as.Equal([]string{"iso.fine"}, report.Handled)
}

func TestExecuteErrorLocatesHandler(t *testing.T) {
	as := assert.New(t)
	cause := errors.New("bad")
	tr := OnEvent(nil, WithName("t"))
	tr.plugin = "p"
	tr.Handle(func(*Context) error { return nil }).Handle(func(*Context) error { return cause })

	err := tr.execute(newContext(context.Background(), nil, privateText(t, "x")))
	var ee *ExecuteError
	as.True(errors.As(err, &ee))
	as.Equal("p", ee.Plugin)
	as.Equal("t", ee.Trigger)
	as.Equal(1, ee.Handler)
	as.ErrorIs(err, cause)
}

func TestExecuteDoneStopsChain(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(Module{Name: "done", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindMessage).
			Handle(rec.handler("first")).
			Handle(func(*Context) error { return fmt.Errorf("wrapped: %w", ErrExecuteDone) }).
			Handle(rec.handler("third"))
		return nil
	}}))

	report := b.Dispatch(context.Background(), privateText(t, "x"))
	as.Equal([]string{"first"}, rec.list())
	as.Empty(report.Failed)
	as.Len(report.Handled, 1)
}

func TestExecutorSkippedWhenParamMissing(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(Module{Name: "params", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindMessage).
			Use(Handle(func(c *Context, g *event.GroupMessage) error {
				rec.add(fmt.Sprintf("group %d", g.GroupID))
				return nil
			})).
			Use(Handle(func(c *Context, p *event.PrivateMessage) error {
				rec.add(fmt.Sprintf("private %d", p.UserID))
				return nil
			})).
			Handle(rec.handler("notice"), ParamNotice).
			Handle(rec.handler("any"), ParamEvent, ParamBot)
		return nil
	}}))

	b.Dispatch(context.Background(), privateText(t, "x"))
	as.Equal([]string{"private 42", "any"}, rec.list())

	rec.got = nil
	b.Dispatch(context.Background(), groupText(t, "x"))
	as.Equal([]string{"group 555", "any"}, rec.list())
}

func TestPreHookFailureSkipsHandler(t *testing.T) {
	as := assert.New(t)
	ran := false
	ex := NewExecutor(func(*Context) error {
		ran = true
		return nil
	}).Before(func(*Context) error { return nil }, func(*Context) error { return errors.New("denied") })

	err := ex.Call(newContext(context.Background(), nil, privateText(t, "x")))
	var pe *PreExecuteError
	as.True(errors.As(err, &pe))
	as.Equal(1, pe.Index)
	as.False(ran)
}

func TestConditionCheck(t *testing.T) {
	c := newContext(context.Background(), nil, privateText(t, "x"))
	yes := Is(func(*Context) bool { return true })
	no := Is(func(*Context) bool { return false })
	fails := func(*Context) (bool, error) { return false, errors.New("err") }
	panics := func(*Context) (bool, error) { panic("p") }

	cases := []struct {
		name string
		cd   Condition
		want bool
	}{
		{"empty", nil, true},
		{"all true", All(yes, yes), true},
		{"one false", All(yes, no), false},
		{"error", All(yes, fails), false},
		{"panic", All(panics, yes), false},
		{"and", All(yes).And(All(no)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cd.Check(c))
		})
	}
}

func TestConditionCheckersRunConcurrently(t *testing.T) {
	c := newContext(context.Background(), nil, privateText(t, "x"))
	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func(*Context) (bool, error) {
		wg.Done()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return true, nil
		case <-time.After(2 * time.Second):
			return false, errors.New("checkers ran one after another")
		}
	}
	assert.True(t, All(barrier, barrier).Check(c))
}

func TestFalseCheckerCancelsOthers(t *testing.T) {
	c := newContext(context.Background(), nil, privateText(t, "x"))
	slow := func(cc *Context) (bool, error) {
		select {
		case <-cc.Context().Done():
			return false, cc.Context().Err()
		case <-time.After(5 * time.Second):
			return true, nil
		}
	}
	start := time.Now()
	assert.False(t, All(slow, Is(func(*Context) bool { return false })).Check(c))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBuiltinConditions(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{Superusers: []int64{42}})

	priv := newContext(context.Background(), b, privateText(t, "x"))
	grp := newContext(context.Background(), b, groupText(t, "x"))
	atMe := newContext(context.Background(), b, groupText(t, "[CQ:at,qq=10001] x"))

	as.True(Superuser.Check(priv))
	as.True(Friend.Check(priv))
	as.False(Friend.Check(grp))
	as.True(ToMe.Check(priv))
	as.False(ToMe.Check(grp))
	as.True(ToMe.Check(atMe))
	as.True(GroupMember.Check(grp))
	as.False(GroupAdmin.Check(grp))
	as.False(GroupMember.Check(priv))
	as.True(InGroup.Check(grp))
	as.True(InPrivate.Check(priv))

	b.SetSuperusers([]int64{7})
	as.False(Superuser.Check(priv))
	as.True(b.IsSuperuser(7))
}

func TestCommandTriggerCapturesArgs(t *testing.T) {
	as := assert.New(t)
	tr := OnCommand([]string{"r", "roll"})

	c := newContext(context.Background(), nil, privateText(t, ".r 2d6+1 attack"))
	as.True(tr.match(c))
	as.Equal("2d6+1 attack", c.Result.Group("args"))

	c = newContext(context.Background(), nil, privateText(t, "。roll"))
	as.True(tr.match(c))
	as.Equal("", c.Result.Group("args"))

	c = newContext(context.Background(), nil, privateText(t, ".rx"))
	as.False(tr.match(c))
}

func TestRegexTriggerGroups(t *testing.T) {
	as := assert.New(t)
	tr := OnRegex(`(\d+)\+(?P<b>\d+)`)
	c := newContext(context.Background(), nil, privateText(t, "sum 12+30 please"))
	as.True(tr.match(c))
	as.Equal("12+30", c.Result.Text)
	as.Equal([]string{"12", "30"}, c.Result.Groups)
	as.Equal("30", c.Result.Group("b"))

	// only message events reach text detectors
	as.False(tr.match(newContext(context.Background(), nil, decode(t, onlineHeartbeat))))
}

func TestRegexTriggerSeesMarkup(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}
	var file string
	as.NoError(b.Load(Module{Name: "img", Setup: func(r *Registrar) error {
		r.OnRegex(`\[CQ:image,file=(?P<f>[^,\]]+)`).Use(HandleMatch(func(c *Context, res *Result) error {
			file = res.Group("f")
			return rec.handler("img")(c)
		}))
		return nil
	}}))

	b.Dispatch(context.Background(), privateText(t, "look [CQ:image,file=a.png]"))
	as.Equal([]string{"img"}, rec.list())
	as.Equal("a.png", file)

	plain := OnRegex(`\[CQ:image`, WithPlainText())
	as.False(plain.match(newContext(context.Background(), nil, privateText(t, "look [CQ:image,file=a.png]"))))
	plain = OnRegex(`^look\s*$`, WithPlainText())
	as.True(plain.match(newContext(context.Background(), nil, privateText(t, "look [CQ:image,file=a.png]"))))
}

func TestSimplifiedKeyword(t *testing.T) {
	as := assert.New(t)
	plain := OnKeyword([]string{"开始"})
	folded := OnKeyword([]string{"开始"}, WithSimplified())

	ev := privateText(t, "遊戲開始")
	as.False(plain.match(newContext(context.Background(), nil, ev)))
	as.True(folded.match(newContext(context.Background(), nil, ev)))
}

func TestSendRepliesToGroupWithAt(t *testing.T) {
	as := assert.New(t)
	b, conn := newTestBot(t, Options{})

	c := newContext(context.Background(), b, groupText(t, "hi"))
	id, err := c.Send("hello[CQ:face,id=1]", AtSender())
	as.NoError(err)
	as.EqualValues(1, id)

	calls := conn.callsOf("send_msg")
	require.Len(t, calls, 1)
	p := gjson.ParseBytes(calls[0].params)
	as.Equal("group", p.Get("message_type").String())
	as.EqualValues(555, p.Get("group_id").Int())
	as.Equal("at", p.Get("message.0.type").String())
	as.Equal("42", p.Get("message.0.data.qq").String())
	as.Equal("hello", p.Get("message.1.data.text").String())
	as.Equal("face", p.Get("message.2.type").String())
}

func TestSendPrivateIgnoresAtAndRecalls(t *testing.T) {
	as := assert.New(t)
	b, conn := newTestBot(t, Options{})

	c := newContext(context.Background(), b, privateText(t, "hi"))
	_, err := c.Send("secret", AtSender(), RecallAfter(20*time.Millisecond))
	as.NoError(err)

	calls := conn.callsOf("send_msg")
	require.Len(t, calls, 1)
	p := gjson.ParseBytes(calls[0].params)
	as.Equal("private", p.Get("message_type").String())
	as.EqualValues(42, p.Get("user_id").Int())
	as.Equal("text", p.Get("message.0.type").String())

	as.Eventually(func() bool {
		return len(conn.callsOf("delete_msg")) == 1
	}, time.Second, 10*time.Millisecond)
	as.EqualValues(1, gjson.GetBytes(conn.callsOf("delete_msg")[0].params, "message_id").Int())
}

func TestFinishEndsChain(t *testing.T) {
	as := assert.New(t)
	b, conn := newTestBot(t, Options{})
	rec := &recorder{}

	as.NoError(b.Load(Module{Name: "finish", Setup: func(r *Registrar) error {
		r.OnCommand([]string{"ping"}).
			Handle(func(c *Context) error { return c.Finish("pong") }).
			Handle(rec.handler("after"))
		return nil
	}}))

	report := b.Dispatch(context.Background(), privateText(t, ".ping"))
	as.Empty(rec.list())
	as.Empty(report.Failed)
	as.Len(conn.callsOf("send_msg"), 1)
}

func TestOfflineHeartbeatDisconnects(t *testing.T) {
	as := assert.New(t)
	b, conn := newTestBot(t, Options{})
	rec := &recorder{}
	as.NoError(b.Load(Module{Name: "meta", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindHeartbeat).Handle(rec.handler("hb"))
		return nil
	}}))

	b.Dispatch(context.Background(), decode(t, offlineHeartbeat))
	as.Equal(1, conn.disconnects)
	as.Empty(rec.list())

	b.Dispatch(context.Background(), decode(t, onlineHeartbeat))
	as.Equal(1, conn.disconnects)
	as.Equal([]string{"hb"}, rec.list())
}

func TestHeartbeatWithoutOnlineKeepsConnection(t *testing.T) {
	as := assert.New(t)
	b, conn := newTestBot(t, Options{})
	rec := &recorder{}
	as.NoError(b.Load(Module{Name: "meta", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindHeartbeat).Handle(rec.handler("hb"))
		return nil
	}}))

	b.Dispatch(context.Background(), decode(t, bareHeartbeat))
	b.Dispatch(context.Background(), decode(t, nullHeartbeat))
	as.Equal(0, conn.disconnects)
	as.Equal([]string{"hb", "hb"}, rec.list())
}

func TestOnEventDispatchesAndRebootDrains(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	release := make(chan struct{})
	rec := &recorder{}
	as.NoError(b.Load(Module{Name: "slow", Setup: func(r *Registrar) error {
		r.OnEvent(event.KindMessage).Handle(func(*Context) error {
			<-release
			rec.add("done")
			return nil
		})
		return nil
	}}))

	b.OnEvent([]byte(fmt.Sprintf(privateMsg, "x", "x")))
	b.OnEvent([]byte(`{"post_type":"message","message_type":"private"}`))
	b.OnEvent([]byte(`{"post_type":"bogus"}`))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	b.OnReboot(ctx)
	cancel()
	as.Empty(rec.list())

	close(release)
	b.OnReboot(context.Background())
	as.Equal([]string{"done"}, rec.list())
}

func TestConnectHooks(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	rec := &recorder{}

	_, err := b.AddConnectHook("low", HookPriorityLow, func(_ *Bot, id int64) error {
		rec.add(fmt.Sprintf("low %d", id))
		return nil
	})
	as.NoError(err)
	_, err = b.AddConnectHookOnce("once", func(*Bot, int64) error {
		rec.add("once")
		return nil
	})
	as.NoError(err)
	h, err := b.AddConnectHook("high", HookPriorityHigh, func(*Bot, int64) error {
		rec.add("high")
		return errors.New("ignored")
	})
	as.NoError(err)

	b.runConnectHooks(1)
	as.Equal([]string{"high", "once", "low 1"}, rec.list())
	as.Equal(2, b.connectHooks.len())

	rec.got = nil
	as.True(b.RemoveHook(h))
	as.False(b.RemoveHook(h))
	b.runConnectHooks(2)
	as.Equal([]string{"low 2"}, rec.list())
}

func TestConnectHooksRunFromCallback(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	got := make(chan int64, 1)
	_, err := b.AddConnectHookOnce("id", func(bb *Bot, id int64) error {
		got <- bb.SelfID()
		return nil
	})
	as.NoError(err)

	b.OnConnect(10001)
	select {
	case id := <-got:
		as.EqualValues(10001, id)
	case <-time.After(time.Second):
		t.Fatal("connect hook did not run")
	}
}

func TestDisconnectHooks(t *testing.T) {
	as := assert.New(t)
	b, _ := newTestBot(t, Options{})
	var causes []error
	cause := errors.New("closed")

	_, err := b.AddDisconnectHook("keep", HookPriorityNormal, func(_ *Bot, err error) error {
		causes = append(causes, err)
		return nil
	})
	as.NoError(err)
	_, err = b.AddDisconnectHookOnce("panics", func(*Bot, error) error {
		panic("hook")
	})
	as.NoError(err)

	b.OnDisconnect(cause)
	b.OnDisconnect(nil)
	as.Equal([]error{cause, nil}, causes)
	as.Equal(1, b.disconnectHooks.len())
}
