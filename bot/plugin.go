package bot

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/sealdice/muzi/bot/event"
)

// Metadata 插件的描述信息，用于帮助和状态展示
type Metadata struct {
	Name       string
	Version    string
	Usage      string
	UsageImage string
	// Status reports live state. The keys "available" and "risk" are read by
	// Available and Risk.
	Status func() map[string]any
	Scope  int
	Hidden bool
}

func (m *Metadata) CurrentStatus() map[string]any {
	if m.Status == nil {
		return map[string]any{}
	}
	st := m.Status()
	if st == nil {
		return map[string]any{}
	}
	return st
}

// Available defaults to true when Status does not say otherwise.
func (m *Metadata) Available() bool {
	v, ok := m.CurrentStatus()["available"].(bool)
	return !ok || v
}

func (m *Metadata) Risk() bool {
	v, _ := m.CurrentStatus()["risk"].(bool)
	return v
}

// Module is what a plugin package exports. Setup registers its triggers and
// runs again on every reload.
type Module struct {
	Name     string
	Metadata Metadata
	Setup    func(r *Registrar) error
}

// Plugin is a loaded module.
type Plugin struct {
	Name     string
	Metadata Metadata
	Triggers []*Trigger

	module  Module
	enabled atomic.Bool
}

func (p *Plugin) Enabled() bool {
	return p.enabled.Load()
}

func (p *Plugin) setEnabled(v bool) {
	p.enabled.Store(v)
}

// Registrar collects the triggers of one module during Setup.
type Registrar struct {
	Bot *Bot

	plugin   string
	triggers []*Trigger
}

// Add binds triggers to the plugin. A trigger without a name is called
// trigger-N after its position.
func (r *Registrar) Add(ts ...*Trigger) {
	for _, t := range ts {
		if t == nil {
			continue
		}
		t.plugin = r.plugin
		t.seq = len(r.triggers)
		if t.Name == "" {
			t.Name = fmt.Sprintf("trigger-%d", t.seq)
		}
		r.triggers = append(r.triggers, t)
	}
}

func (r *Registrar) OnEvent(kind *event.Kind, opts ...TriggerOption) *Trigger {
	t := OnEvent(kind, opts...)
	r.Add(t)
	return t
}

func (r *Registrar) OnRegex(pattern string, opts ...TriggerOption) *Trigger {
	t := OnRegex(pattern, opts...)
	r.Add(t)
	return t
}

func (r *Registrar) OnCommand(names []string, opts ...TriggerOption) *Trigger {
	t := OnCommand(names, opts...)
	r.Add(t)
	return t
}

func (r *Registrar) OnKeyword(words []string, opts ...TriggerOption) *Trigger {
	t := OnKeyword(words, opts...)
	r.Add(t)
	return t
}

// sortTriggers orders by ascending priority, ties by registration order.
func sortTriggers(ts []*Trigger) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Priority != ts[j].Priority {
			return ts[i].Priority < ts[j].Priority
		}
		return ts[i].seq < ts[j].seq
	})
}

// pluginSet keeps plugins sorted by name.
type pluginSet struct {
	mu    sync.RWMutex
	items []*Plugin
}

func (s *pluginSet) put(p *Plugin) (replaced *Plugin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.items {
		if it.Name == p.Name {
			s.items[i] = p
			return it
		}
	}
	s.items = append(s.items, p)
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Name < s.items[j].Name
	})
	return nil
}

func (s *pluginSet) get(name string) (*Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Find(s.items, func(p *Plugin) bool { return p.Name == name })
}

func (s *pluginSet) snapshot() []*Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Plugin, len(s.items))
	copy(out, s.items)
	return out
}
