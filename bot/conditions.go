package bot

import (
	"github.com/sealdice/muzi/bot/event"
)

// Built-in conditions. Each is false for events it does not apply to.
var (
	Superuser   = All(Is(isSuperuser))
	ToMe        = All(Is(func(c *Context) bool { return event.IsToMe(c.Event) }))
	Friend      = All(Is(isFriend))
	GroupOwner  = All(Is(senderRoleIn("owner")))
	GroupAdmin  = All(Is(senderRoleIn("admin", "owner")))
	GroupMember = All(Is(senderRoleIn("member", "admin", "owner")))
	InGroup     = All(Is(func(c *Context) bool { _, ok := c.Event.(*event.GroupMessage); return ok }))
	InPrivate   = All(Is(func(c *Context) bool { _, ok := c.Event.(*event.PrivateMessage); return ok }))
)

func isSuperuser(c *Context) bool {
	if c.Bot == nil {
		return false
	}
	m, ok := event.AsMessage(c.Event)
	if !ok {
		return false
	}
	return c.Bot.IsSuperuser(m.UserID)
}

func isFriend(c *Context) bool {
	p, ok := c.Event.(*event.PrivateMessage)
	return ok && p.SubType == "friend"
}

func senderRoleIn(roles ...string) func(c *Context) bool {
	return func(c *Context) bool {
		g, ok := c.Event.(*event.GroupMessage)
		if !ok {
			return false
		}
		for _, r := range roles {
			if g.Sender.Role == r {
				return true
			}
		}
		return false
	}
}
