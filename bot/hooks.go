package bot

import (
	"fmt"
)

// ConnectHook runs after the gateway identified itself.
type ConnectHook func(b *Bot, selfID int64) error

// DisconnectHook runs after the session ended. cause is nil for a clean close.
type DisconnectHook func(b *Bot, cause error) error

// AddConnectHook registers a hook that runs on every connect.
func (b *Bot) AddConnectHook(name string, priority HookPriority, fn ConnectHook) (HookHandle, error) {
	return b.connectHooks.register(name, priority, false, fn)
}

// AddConnectHookOnce registers a hook for the next connect only.
func (b *Bot) AddConnectHookOnce(name string, fn ConnectHook) (HookHandle, error) {
	return b.connectHooks.register(name, HookPriorityNormal, true, fn)
}

func (b *Bot) AddDisconnectHook(name string, priority HookPriority, fn DisconnectHook) (HookHandle, error) {
	return b.disconnectHooks.register(name, priority, false, fn)
}

func (b *Bot) AddDisconnectHookOnce(name string, fn DisconnectHook) (HookHandle, error) {
	return b.disconnectHooks.register(name, HookPriorityNormal, true, fn)
}

// RemoveHook unregisters a connect or disconnect hook.
func (b *Bot) RemoveHook(h HookHandle) bool {
	return b.connectHooks.unregister(h) || b.disconnectHooks.unregister(h)
}

func (b *Bot) runConnectHooks(selfID int64) {
	for _, h := range b.connectHooks.take() {
		if err := callHook(func() error { return h.handler(b, selfID) }); err != nil {
			b.log.Errorf("connect hook %s: %v", h.name, err)
		}
	}
}

func (b *Bot) runDisconnectHooks(cause error) {
	for _, h := range b.disconnectHooks.take() {
		if err := callHook(func() error { return h.handler(b, cause) }); err != nil {
			b.log.Errorf("disconnect hook %s: %v", h.name, err)
		}
	}
}

func callHook(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook: %w", &PanicError{Value: r})
		}
	}()
	return fn()
}
