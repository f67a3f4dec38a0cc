package bot

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	ErrNoTriggers     = errors.New("plugin registered no trigger")
	ErrPluginNotFound = errors.New("plugin not found")
)

// Load sets up modules and adds them to the bot. A module that fails is
// logged and skipped; the failures are returned joined.
func (b *Bot) Load(mods ...Module) error {
	var errs []error
	for _, mod := range mods {
		p, err := b.build(mod)
		if err != nil {
			b.log.Errorf("plugin [%s] initialization failed: %v", mod.Name, err)
			errs = append(errs, fmt.Errorf("load %s: %w", mod.Name, err))
			continue
		}
		b.applyEnabled(p)
		b.plugins.put(p)
		b.log.Infof("plugin [%s] loaded, %d trigger(s)", p.Name, len(p.Triggers))
	}
	return errors.Join(errs...)
}

func (b *Bot) build(mod Module) (p *Plugin, err error) {
	if mod.Name == "" {
		return nil, errors.New("module has no name")
	}
	meta := mod.Metadata
	if meta.Name == "" {
		meta.Name = mod.Name
	}
	if meta.Version != "" {
		if _, err := semver.NewVersion(meta.Version); err != nil {
			return nil, fmt.Errorf("version %q: %w", meta.Version, err)
		}
	}

	r := &Registrar{Bot: b, plugin: mod.Name}
	if mod.Setup != nil {
		if err := setup(mod.Setup, r); err != nil {
			return nil, err
		}
	}

	p = &Plugin{Name: mod.Name, Metadata: meta, module: mod}
	if len(r.triggers) == 0 {
		if !b.opts.AllowEmptyPlugins {
			b.log.Warnf("plugin [%s] 0 trigger was detected", mod.Name)
			return nil, ErrNoTriggers
		}
		p.Metadata.Hidden = p.Metadata.Hidden || b.opts.HideEmptyPlugins
		return p, nil
	}

	sortTriggers(r.triggers)
	p.Triggers = r.triggers
	p.setEnabled(true)
	return p, nil
}

func setup(fn func(r *Registrar) error, r *Registrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("setup: %w", &PanicError{Value: rec})
		}
	}()
	return fn(r)
}

// applyEnabled 依次应用配置文件和持久化状态中的开关，后者优先
func (b *Bot) applyEnabled(p *Plugin) {
	if len(p.Triggers) == 0 {
		return
	}
	if v, ok := b.opts.PluginEnabled[p.Name]; ok {
		p.setEnabled(v)
	}
	if b.opts.Store == nil {
		return
	}
	v, found, err := b.opts.Store.LoadEnabled(p.Name)
	if err != nil {
		b.log.Warnf("plugin [%s] load state: %v", p.Name, err)
		return
	}
	if found {
		p.setEnabled(v)
	}
}

// Reload runs the module's Setup again and swaps in the new triggers. The
// enabled flag is kept.
func (b *Bot) Reload(name string) error {
	old, ok := b.plugins.get(name)
	if !ok {
		return fmt.Errorf("reload %s: %w", name, ErrPluginNotFound)
	}
	p, err := b.build(old.module)
	if err != nil {
		b.log.Errorf("plugin [%s] reload failed: %v", name, err)
		return fmt.Errorf("reload %s: %w", name, err)
	}
	if len(p.Triggers) > 0 {
		p.setEnabled(old.Enabled())
	}
	b.plugins.put(p)
	b.log.Infof("plugin [%s] reloads successfully", name)
	return nil
}

// SetPluginEnabled toggles a plugin and persists the flag when a store is set.
func (b *Bot) SetPluginEnabled(name string, enabled bool) error {
	p, ok := b.plugins.get(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrPluginNotFound)
	}
	p.setEnabled(enabled)
	if b.opts.Store != nil {
		if err := b.opts.Store.SaveEnabled(name, enabled); err != nil {
			return fmt.Errorf("save state of %s: %w", name, err)
		}
	}
	return nil
}

// Plugins returns the loaded plugins sorted by name.
func (b *Bot) Plugins() []*Plugin {
	return b.plugins.snapshot()
}

func (b *Bot) Plugin(name string) (*Plugin, bool) {
	return b.plugins.get(name)
}
