package bot

import (
	"github.com/sealdice/muzi/bot/event"
)

type HandlerFunc func(c *Context) error

// Executor is one handler of a trigger. Params lists what the handler needs;
// when any of them cannot be resolved for an event the executor is skipped.
type Executor struct {
	Func   HandlerFunc
	Pre    []HandlerFunc
	Params []Param

	guard func(c *Context) bool
}

// NewExecutor wraps fn. It runs for every matched event unless params say otherwise.
func NewExecutor(fn HandlerFunc, params ...Param) *Executor {
	return &Executor{Func: fn, Params: params}
}

// Before appends pre-hooks that run, in order, ahead of the handler.
func (e *Executor) Before(pre ...HandlerFunc) *Executor {
	e.Pre = append(e.Pre, pre...)
	return e
}

func (e *Executor) Satisfied(c *Context) bool {
	for _, p := range e.Params {
		if c.Resolve(p) == nil {
			return false
		}
	}
	return e.guard == nil || e.guard(c)
}

// Call runs the pre-hooks and then the handler. A failing pre-hook is
// reported as *PreExecuteError and the handler does not run.
func (e *Executor) Call(c *Context) error {
	for i, pre := range e.Pre {
		if err := pre(c); err != nil {
			return &PreExecuteError{Index: i, Err: err}
		}
	}
	return e.Func(c)
}

// Handle builds an executor for handlers that want one event type. Events of
// other types skip it.
func Handle[E event.Event](fn func(c *Context, ev E) error) *Executor {
	p := paramFor[E]()
	pick := func(c *Context) (E, bool) {
		ev, ok := c.Resolve(p).(E)
		return ev, ok
	}
	return &Executor{
		Params: []Param{p},
		guard: func(c *Context) bool {
			_, ok := pick(c)
			return ok
		},
		Func: func(c *Context) error {
			ev, _ := pick(c)
			return fn(c, ev)
		},
	}
}

// HandleMatch builds an executor that needs the detector result.
func HandleMatch(fn func(c *Context, r *Result) error) *Executor {
	return &Executor{
		Params: []Param{ParamResult},
		Func: func(c *Context) error {
			return fn(c, c.Result)
		},
	}
}

func paramFor[E event.Event]() Param {
	switch any((*E)(nil)).(type) {
	case **event.MessageEvent:
		return ParamMessage
	case **event.GroupMessage:
		return ParamGroupMessage
	case **event.PrivateMessage:
		return ParamPrivateMessage
	case **event.NoticeEvent:
		return ParamNotice
	case **event.RequestEvent:
		return ParamRequest
	case **event.MetaEvent:
		return ParamMeta
	default:
		return ParamEvent
	}
}
