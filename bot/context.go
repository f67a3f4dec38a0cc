package bot

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/sealdice/muzi/bot/event"
)

// Result is what a detector found in the event.
type Result struct {
	Text   string            // matched substring
	Groups []string          // positional capture groups
	Named  map[string]string // named capture groups
}

// Group returns a named group, empty when absent.
func (r *Result) Group(name string) string {
	if r == nil || r.Named == nil {
		return ""
	}
	return r.Named[name]
}

// Context carries everything one trigger run may ask for.
type Context struct {
	Bot     *Bot
	Event   event.Event
	Trigger *Trigger
	Result  *Result

	ctx context.Context
}

func newContext(ctx context.Context, b *Bot, ev event.Event) *Context {
	return &Context{Bot: b, Event: ev, ctx: ctx}
}

// Context returns the context bounding this event's processing.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Context) withContext(ctx context.Context) *Context {
	cc := *c
	cc.ctx = ctx
	return &cc
}

// UserID is the user the event is about, 0 when it has none.
func (c *Context) UserID() int64 {
	if m, ok := event.AsMessage(c.Event); ok {
		return m.UserID
	}
	if c.Event == nil {
		return 0
	}
	return gjson.GetBytes(c.Event.Head().Raw(), "user_id").Int()
}

// GroupID is the group the event happened in, 0 outside groups.
func (c *Context) GroupID() int64 {
	if g, ok := c.Event.(*event.GroupMessage); ok {
		return g.GroupID
	}
	if c.Event == nil {
		return 0
	}
	return gjson.GetBytes(c.Event.Head().Raw(), "group_id").Int()
}

// Param names one value a handler asks to be given.
type Param uint8

const (
	ParamTrigger Param = iota + 1
	ParamBot
	ParamEvent
	ParamMessage
	ParamGroupMessage
	ParamPrivateMessage
	ParamNotice
	ParamRequest
	ParamMeta
	ParamResult
)

var paramNames = map[Param]string{
	ParamTrigger:        "trigger",
	ParamBot:            "bot",
	ParamEvent:          "event",
	ParamMessage:        "message event",
	ParamGroupMessage:   "group message",
	ParamPrivateMessage: "private message",
	ParamNotice:         "notice",
	ParamRequest:        "request",
	ParamMeta:           "meta event",
	ParamResult:         "result",
}

func (p Param) String() string {
	if s, ok := paramNames[p]; ok {
		return s
	}
	return "unknown"
}

var paramResolvers = map[Param]func(c *Context) any{
	ParamTrigger: func(c *Context) any {
		if c.Trigger == nil {
			return nil
		}
		return c.Trigger
	},
	ParamBot: func(c *Context) any {
		if c.Bot == nil {
			return nil
		}
		return c.Bot
	},
	ParamEvent: func(c *Context) any {
		if c.Event == nil {
			return nil
		}
		return c.Event
	},
	ParamMessage: func(c *Context) any {
		if m, ok := event.AsMessage(c.Event); ok {
			return m
		}
		return nil
	},
	ParamGroupMessage: func(c *Context) any {
		if g, ok := c.Event.(*event.GroupMessage); ok {
			return g
		}
		return nil
	},
	ParamPrivateMessage: func(c *Context) any {
		if p, ok := c.Event.(*event.PrivateMessage); ok {
			return p
		}
		return nil
	},
	ParamNotice: func(c *Context) any {
		if n, ok := event.AsNotice(c.Event); ok {
			return n
		}
		return nil
	},
	ParamRequest: func(c *Context) any {
		if r, ok := c.Event.(*event.RequestEvent); ok {
			return r
		}
		return nil
	},
	ParamMeta: func(c *Context) any {
		if m, ok := event.AsMeta(c.Event); ok {
			return m
		}
		return nil
	},
	ParamResult: func(c *Context) any {
		if c.Result == nil {
			return nil
		}
		return c.Result
	},
}

// Resolve looks a param up in the context; nil when it is not available.
func (c *Context) Resolve(p Param) any {
	fn, ok := paramResolvers[p]
	if !ok {
		return nil
	}
	return fn(c)
}
