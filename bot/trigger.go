package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/lascape/sat"
	"go.uber.org/zap"

	"github.com/sealdice/muzi/bot/event"
)

// DefaultPriority is used when a trigger names none. Lower runs first.
const DefaultPriority = 1

// Detector decides whether a trigger matches and may record a Result on c.
type Detector func(c *Context) (bool, error)

// Trigger pairs a matching pipeline with the handlers it runs.
type Trigger struct {
	Name      string
	Event     *event.Kind
	Condition Condition
	Detector  Detector
	Priority  int
	Block     bool
	Handlers  []*Executor

	plugin  string
	seq     int
	fold    bool
	plain   bool
	reFlags string
}

type TriggerOption func(t *Trigger)

func WithCondition(cd ...Condition) TriggerOption {
	return func(t *Trigger) {
		t.Condition = t.Condition.And(cd...)
	}
}

func WithPriority(p int) TriggerOption {
	return func(t *Trigger) {
		t.Priority = p
	}
}

// WithBlock stops the dispatch pass once this trigger has matched.
func WithBlock() TriggerOption {
	return func(t *Trigger) {
		t.Block = true
	}
}

func WithName(name string) TriggerOption {
	return func(t *Trigger) {
		t.Name = name
	}
}

// WithSimplified folds traditional Chinese in the message to simplified
// before text detectors look at it.
func WithSimplified() TriggerOption {
	return func(t *Trigger) {
		t.fold = true
	}
}

// WithPlainText makes OnRegex search the text segments only, with markup
// such as at or image dropped. OnCommand always does.
func WithPlainText() TriggerOption {
	return func(t *Trigger) {
		t.plain = true
	}
}

// WithRegexFlags replaces the default "s" flags of OnRegex, e.g. "is".
func WithRegexFlags(flags string) TriggerOption {
	return func(t *Trigger) {
		t.reFlags = flags
	}
}

func newTrigger(kind *event.Kind, opts []TriggerOption) *Trigger {
	t := &Trigger{Event: kind, Priority: DefaultPriority, reFlags: "s"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnEvent matches every event of kind, or of a kind below it.
func OnEvent(kind *event.Kind, opts ...TriggerOption) *Trigger {
	if kind == nil {
		kind = event.KindEvent
	}
	t := newTrigger(kind, opts)
	t.Detector = func(c *Context) (bool, error) {
		c.Result = &Result{}
		return true, nil
	}
	return t
}

// OnRegex matches message events whose raw text, markup included, contains
// pattern. It panics on an invalid pattern, like regexp.MustCompile.
func OnRegex(pattern string, opts ...TriggerOption) *Trigger {
	t := newTrigger(event.KindMessage, opts)
	if t.reFlags != "" {
		pattern = "(?" + t.reFlags + ")" + pattern
	}
	re := regexp.MustCompile(pattern)
	t.Detector = func(c *Context) (bool, error) {
		text, ok := t.messageText(c, !t.plain)
		if !ok {
			return false, nil
		}
		idx := re.FindStringSubmatchIndex(text)
		if idx == nil {
			return false, nil
		}
		c.Result = regexResult(re, text, idx)
		return true, nil
	}
	return t
}

// OnCommand matches ".name args" style commands. The args, if any, are in
// the "args" group. Full-width 。 and / also work as prefixes.
func OnCommand(names []string, opts ...TriggerOption) *Trigger {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	pattern := `^\s*[.。/](?:` + strings.Join(quoted, "|") + `)(?:\s+(?P<args>.*?))?\s*$`
	return OnRegex(pattern, append([]TriggerOption{WithPlainText()}, opts...)...)
}

// OnKeyword matches messages containing any of words.
func OnKeyword(words []string, opts ...TriggerOption) *Trigger {
	t := newTrigger(event.KindMessage, opts)
	t.Detector = func(c *Context) (bool, error) {
		text, ok := t.messageText(c, false)
		if !ok {
			return false, nil
		}
		for _, w := range words {
			if w != "" && strings.Contains(text, w) {
				c.Result = &Result{Text: w}
				return true, nil
			}
		}
		return false, nil
	}
	return t
}

var (
	simplifier     sat.Dicter
	simplifierOnce sync.Once
)

func simplify(text string) string {
	simplifierOnce.Do(func() {
		simplifier = sat.DefaultDict()
	})
	if out := simplifier.Read(text); out != "" {
		return out
	}
	return text
}

func (t *Trigger) messageText(c *Context, raw bool) (string, bool) {
	m, ok := event.AsMessage(c.Event)
	if !ok {
		return "", false
	}
	text := m.PlainText()
	if raw {
		text = m.RawText()
	}
	if t.fold {
		text = simplify(text)
	}
	return text, true
}

func regexResult(re *regexp.Regexp, text string, idx []int) *Result {
	res := &Result{Text: text[idx[0]:idx[1]]}
	names := re.SubexpNames()
	for i := 1; i < len(names); i++ {
		var g string
		if idx[2*i] >= 0 {
			g = text[idx[2*i]:idx[2*i+1]]
		}
		res.Groups = append(res.Groups, g)
		if names[i] != "" {
			if res.Named == nil {
				res.Named = make(map[string]string)
			}
			res.Named[names[i]] = g
		}
	}
	return res
}

// Handle appends a handler.
func (t *Trigger) Handle(fn HandlerFunc, params ...Param) *Trigger {
	return t.Use(NewExecutor(fn, params...))
}

// Use appends prepared executors.
func (t *Trigger) Use(ex ...*Executor) *Trigger {
	t.Handlers = append(t.Handlers, ex...)
	return t
}

func (t *Trigger) String() string {
	return t.plugin + "." + t.Name
}

// match runs the kind filter, then the condition, then the detector.
func (t *Trigger) match(c *Context) bool {
	if !c.Event.Kind().Is(t.Event) {
		return false
	}
	if !t.Condition.Check(c) {
		return false
	}
	if t.Detector == nil {
		c.Result = &Result{}
		return true
	}
	ok, err := safeDetect(t.Detector, c)
	if err != nil {
		zap.S().Named("bot").Warnf("trigger %s detector: %v", t, err)
		return false
	}
	return ok
}

func safeDetect(d Detector, c *Context) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return d(c)
}

// execute runs the handlers in order. ErrExecuteDone ends the chain
// quietly; any other error ends it and is returned.
func (t *Trigger) execute(c *Context) error {
	c.Trigger = t
	for i, ex := range t.Handlers {
		if !ex.Satisfied(c) {
			continue
		}
		err := safeCall(ex, c)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrExecuteDone) {
			return nil
		}
		return &ExecuteError{Plugin: t.plugin, Trigger: t.Name, Handler: i, Err: err}
	}
	return nil
}

func safeCall(ex *Executor, c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler: %w", &PanicError{Value: r})
		}
	}()
	return ex.Call(c)
}
