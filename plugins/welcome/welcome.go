package welcome

import (
	"github.com/sealdice/muzi/bot"
	"github.com/sealdice/muzi/bot/event"
	"github.com/sealdice/muzi/bot/message"
)

const DefaultGreeting = "欢迎新人！"

var Module = New(DefaultGreeting)

// New returns the module with a custom greeting, which may contain markup.
func New(greeting string) bot.Module {
	return bot.Module{
		Name: "welcome",
		Metadata: bot.Metadata{
			Name:    "入群欢迎",
			Version: "1.0.0",
			Usage:   "新成员入群时发送欢迎语，被戳时戳回去",
		},
		Setup: func(r *bot.Registrar) error {
			r.OnEvent(event.KindGroupIncrease, bot.WithName("greet")).
				Use(bot.Handle(func(c *bot.Context, ev *event.GroupIncrease) error {
					if ev.UserID == ev.SelfID {
						return nil
					}
					_, err := c.Send(" "+greeting, bot.AtSender())
					return err
				}))

			r.OnEvent(event.KindPoke, bot.WithName("poke-back"), bot.WithCondition(pokedMe)).
				Use(bot.Handle(func(c *bot.Context, ev *event.Poke) error {
					_, err := c.Send(message.Poke(ev.UserID))
					return err
				}))
			return nil
		},
	}
}

var pokedMe = bot.All(bot.Is(func(c *bot.Context) bool {
	p, ok := c.Event.(*event.Poke)
	return ok && p.TargetID == p.SelfID && p.UserID != p.SelfID
}))
