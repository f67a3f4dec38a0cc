package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sealdice/muzi/adapters"
	"github.com/sealdice/muzi/bot/event"
)

// Options 机器人运行参数
type Options struct {
	Superusers []int64
	// AllowEmptyPlugins loads modules that register no trigger, disabled.
	AllowEmptyPlugins bool
	// HideEmptyPlugins hides such modules from listings.
	HideEmptyPlugins bool
	// PluginEnabled holds configured switches by plugin name.
	PluginEnabled map[string]bool
	Store         *StateStore
}

// Bot owns the plugins and routes the events of one connection to them.
type Bot struct {
	conn adapters.Conn
	opts Options
	log  *zap.SugaredLogger

	superusers atomic.Pointer[map[int64]struct{}]
	selfID     atomic.Int64
	plugins    pluginSet

	connectHooks    hookRegistry[ConnectHook]
	disconnectHooks hookRegistry[DisconnectHook]

	tasks  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

var _ adapters.AdapterCallback = (*Bot)(nil)

func New(conn adapters.Conn, opts Options) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		conn:   conn,
		opts:   opts,
		log:    zap.S().Named("bot"),
		ctx:    ctx,
		cancel: cancel,
	}
	b.SetSuperusers(opts.Superusers)
	return b
}

func (b *Bot) Conn() adapters.Conn {
	return b.conn
}

func (b *Bot) Actions() adapters.Actions {
	return adapters.Actions{Caller: b.conn}
}

// SelfID is the account id the gateway reported, 0 before the first connect.
func (b *Bot) SelfID() int64 {
	return b.selfID.Load()
}

func (b *Bot) SetSuperusers(ids []int64) {
	set := lo.SliceToMap(ids, func(id int64) (int64, struct{}) { return id, struct{}{} })
	b.superusers.Store(&set)
}

func (b *Bot) Superusers() []int64 {
	return lo.Keys(*b.superusers.Load())
}

func (b *Bot) IsSuperuser(id int64) bool {
	_, ok := (*b.superusers.Load())[id]
	return ok
}

// ApplyPluginFlags sets the enabled flag of listed plugins without saving it.
// Plugins with a flag in the state store keep the stored one.
func (b *Bot) ApplyPluginFlags(flags map[string]bool) {
	for name, v := range flags {
		p, ok := b.plugins.get(name)
		if !ok || len(p.Triggers) == 0 {
			continue
		}
		if b.opts.Store != nil {
			_, found, err := b.opts.Store.LoadEnabled(name)
			if err != nil {
				b.log.Warnf("plugin [%s] load state: %v", name, err)
				continue
			}
			if found {
				continue
			}
		}
		p.setEnabled(v)
	}
}

// Reboot asks the gateway connection to restart.
func (b *Bot) Reboot() {
	b.conn.Reboot()
}

// Close stops background work and waits for running dispatches.
func (b *Bot) Close() {
	b.cancel()
	b.tasks.Wait()
}

func (b *Bot) OnConnect(selfID int64) {
	b.selfID.Store(selfID)
	b.log.Infof("gateway connected, self id %d", selfID)
	// 读循环尚未启动，钩子里的调用需要等它，因此异步执行
	b.tasks.Add(1)
	go func() {
		defer b.tasks.Done()
		b.runConnectHooks(selfID)
	}()
}

func (b *Bot) OnDisconnect(cause error) {
	if cause != nil {
		b.log.Warnf("gateway disconnected: %v", cause)
	} else {
		b.log.Info("gateway disconnected")
	}
	b.runDisconnectHooks(cause)
}

// OnEvent decodes the payload and dispatches it on its own goroutine.
func (b *Bot) OnEvent(payload []byte) {
	ev, ok, err := event.Decode(payload)
	if err != nil {
		var de *event.DecodeError
		if errors.As(err, &de) {
			b.log.Warnf("drop event, %v: %s", err, payload)
		} else {
			b.log.Warnf("drop event: %v", err)
		}
		return
	}
	if !ok {
		b.log.Debugf("unknown event: %s", payload)
		return
	}
	b.tasks.Add(1)
	go func() {
		defer b.tasks.Done()
		b.Dispatch(b.ctx, ev)
	}()
}

// OnReboot waits for running dispatches until ctx ends.
func (b *Bot) OnReboot(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.log.Info("in-flight events drained, rebooting")
	case <-ctx.Done():
		b.log.Warn("reboot grace period elapsed with events still running")
	}
}

func (b *Bot) OnError(err error) {
	b.log.Errorf("adapter: %v", err)
}

// DispatchReport lists what one dispatch pass did, by "plugin.trigger" name.
type DispatchReport struct {
	Handled []string
	Failed  []string
	Blocked string
	Elapsed time.Duration
}

// Dispatch runs ev through the enabled plugins in name order and their
// triggers in priority order. Every matching trigger runs; a matching
// blocking trigger ends the pass.
func (b *Bot) Dispatch(ctx context.Context, ev event.Event) *DispatchReport {
	report := &DispatchReport{}
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	if hb, ok := ev.(*event.Heartbeat); ok && hb.Offline() {
		b.log.Warn("heartbeat reports the account offline, dropping connection")
		b.conn.Disconnect()
		return report
	}
	if s, ok := event.Summary(ev); ok {
		b.log.Info(s)
	}

	for _, p := range b.plugins.snapshot() {
		if !p.Enabled() {
			continue
		}
		for _, t := range p.Triggers {
			c := newContext(ctx, b, ev)
			if !t.match(c) {
				continue
			}
			b.log.Debugf("trigger [%s] will be executed", t)
			if err := t.execute(c); err != nil {
				b.log.Errorf("trigger [%s] catch an exception: %v", t, err)
				report.Failed = append(report.Failed, t.String())
			} else {
				b.log.Debugf("trigger [%s] execute complete", t)
				report.Handled = append(report.Handled, t.String())
			}
			if t.Block {
				report.Blocked = t.String()
				return report
			}
		}
	}
	return report
}
