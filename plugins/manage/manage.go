package manage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sealdice/muzi/bot"
	"github.com/sealdice/muzi/bot/message"
)

const Name = "manage"

var Module = bot.Module{
	Name: Name,
	Metadata: bot.Metadata{
		Name:    "插件管理",
		Version: "1.0.0",
		Usage: strings.Join([]string{
			".plugins  列出插件",
			".enable/.disable <插件>  开关插件",
			".reload <插件>  重载插件",
			".help [插件]  查看帮助",
			".status  运行状态",
			".reboot  重启连接",
		}, "\n"),
		Hidden: true,
	},
	Setup: setup,
}

var startedAt = time.Now()

// 管理指令仅超级用户可用，群聊中需要 at 机器人
var admin = bot.WithCondition(bot.Superuser.And(bot.ToMe))

func setup(r *bot.Registrar) error {
	r.OnCommand([]string{"plugins"}, admin, bot.WithName("list"), bot.WithBlock()).
		Handle(listPlugins)
	r.OnCommand([]string{"enable", "disable"}, admin, bot.WithName("toggle"), bot.WithBlock()).
		Use(bot.HandleMatch(togglePlugin))
	r.OnCommand([]string{"reload"}, admin, bot.WithName("reload"), bot.WithBlock()).
		Use(bot.HandleMatch(reloadPlugin))
	r.OnCommand([]string{"status"}, admin, bot.WithName("status"), bot.WithBlock()).
		Handle(status)
	r.OnCommand([]string{"reboot"}, admin, bot.WithName("reboot"), bot.WithBlock()).
		Handle(reboot)
	r.OnCommand([]string{"help"}, bot.WithName("help")).
		Use(bot.HandleMatch(help))
	return nil
}

func switchText(on bool) string {
	if on {
		return "开"
	}
	return "关"
}

// Listing renders the visible plugins, one per line.
func Listing(b *bot.Bot) string {
	visible := lo.Filter(b.Plugins(), func(p *bot.Plugin, _ int) bool { return !p.Metadata.Hidden })
	if len(visible) == 0 {
		return "没有可用的插件"
	}
	lines := lo.Map(visible, func(p *bot.Plugin, _ int) string {
		line := fmt.Sprintf("%s [%s] %s", p.Name, switchText(p.Enabled()), p.Metadata.Name)
		if p.Metadata.Version != "" {
			line += " v" + p.Metadata.Version
		}
		if !p.Metadata.Available() {
			line += " (不可用)"
		}
		return line
	})
	return strings.Join(lines, "\n")
}

func listPlugins(c *bot.Context) error {
	return c.Finish(Listing(c.Bot))
}

func togglePlugin(c *bot.Context, res *bot.Result) error {
	name := strings.TrimSpace(res.Group("args"))
	if name == "" {
		return c.Finish("请指定插件名")
	}
	on := strings.HasPrefix(strings.TrimLeft(res.Text, " \t.。/"), "enable")
	if name == Name && !on {
		return c.Finish("不能关闭插件管理")
	}
	if err := c.Bot.SetPluginEnabled(name, on); err != nil {
		return c.Finish(fmt.Sprintf("操作失败: %v", err))
	}
	return c.Finish(fmt.Sprintf("插件 %s 已%s", name, switchText(on)))
}

func reloadPlugin(c *bot.Context, res *bot.Result) error {
	name := strings.TrimSpace(res.Group("args"))
	if name == "" {
		return c.Finish("请指定插件名")
	}
	if err := c.Bot.Reload(name); err != nil {
		return c.Finish(fmt.Sprintf("重载失败: %v", err))
	}
	return c.Finish(fmt.Sprintf("插件 %s 已重载", name))
}

// Help renders the usage of one plugin, or an index of all visible ones.
func Help(b *bot.Bot, name string) string {
	if name == "" {
		names := lo.FilterMap(b.Plugins(), func(p *bot.Plugin, _ int) (string, bool) {
			return p.Name, !p.Metadata.Hidden && p.Metadata.Usage != ""
		})
		sort.Strings(names)
		return "可查看帮助的插件: " + strings.Join(names, ", ") + "\n使用 .help <插件> 查看详情"
	}
	p, ok := b.Plugin(name)
	if !ok {
		return "没有找到插件 " + name
	}
	if p.Metadata.Usage == "" {
		return p.Metadata.Name + " 没有帮助信息"
	}
	return p.Metadata.Name + "\n" + p.Metadata.Usage
}

func help(c *bot.Context, res *bot.Result) error {
	text := Help(c.Bot, strings.TrimSpace(res.Group("args")))
	if p, ok := c.Bot.Plugin(strings.TrimSpace(res.Group("args"))); ok && p.Metadata.UsageImage != "" {
		return c.Finish(message.Of(text, "\n", message.Image(p.Metadata.UsageImage)))
	}
	return c.Finish(text)
}

func status(c *bot.Context) error {
	plugins := c.Bot.Plugins()
	enabled := lo.CountBy(plugins, func(p *bot.Plugin) bool { return p.Enabled() })
	lines := []string{
		fmt.Sprintf("%s %s", bot.APPNAME, bot.VERSION.String()),
		fmt.Sprintf("账号: %d", c.Bot.SelfID()),
		fmt.Sprintf("连接: %s", c.Bot.Conn().State()),
		fmt.Sprintf("插件: %d/%d 已启用", enabled, len(plugins)),
		fmt.Sprintf("运行时间: %s", time.Since(startedAt).Truncate(time.Second)),
	}
	for _, p := range plugins {
		if st := p.Metadata.CurrentStatus(); len(st) > 0 {
			keys := lo.Keys(st)
			sort.Strings(keys)
			parts := lo.Map(keys, func(k string, _ int) string { return fmt.Sprintf("%s=%v", k, st[k]) })
			lines = append(lines, fmt.Sprintf("%s: %s", p.Name, strings.Join(parts, " ")))
		}
	}
	return c.Finish(strings.Join(lines, "\n"))
}

func reboot(c *bot.Context) error {
	if _, err := c.Send("正在重启连接"); err != nil {
		return err
	}
	c.Bot.Reboot()
	return bot.ErrExecuteDone
}
