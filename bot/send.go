package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sealdice/muzi/bot/event"
	"github.com/sealdice/muzi/bot/message"
)

var ErrNoTarget = errors.New("event has no reply target")

type sendOptions struct {
	atSender    bool
	recallAfter time.Duration
}

type SendOption func(o *sendOptions)

// AtSender mentions the sender in front of the reply. No effect in private chats.
func AtSender() SendOption {
	return func(o *sendOptions) {
		o.atSender = true
	}
}

// RecallAfter withdraws the sent message after d.
func RecallAfter(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.recallAfter = d
	}
}

// Send replies where the event came from. msg is a string (parsed as
// markup), a message.Message or a message.Segment.
func (c *Context) Send(msg any, opts ...SendOption) (int64, error) {
	if c.Bot == nil {
		return 0, ErrNoTarget
	}
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	groupID, userID := c.replyTarget()
	if groupID == 0 && userID == 0 {
		return 0, ErrNoTarget
	}

	body := message.Of(msg)
	if o.atSender && groupID != 0 && userID != 0 {
		body = append(message.Message{message.At(userID)}, body...)
	}

	id, err := c.Bot.Actions().SendMsg(c.Context(), groupID, userID, body)
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	if o.recallAfter > 0 && id != 0 {
		c.Bot.recallLater(id, o.recallAfter)
	}
	return id, nil
}

// Finish sends msg and then ends the handler chain.
func (c *Context) Finish(msg any, opts ...SendOption) error {
	if _, err := c.Send(msg, opts...); err != nil {
		return err
	}
	return ErrExecuteDone
}

// CallAction forwards a raw action call to the gateway.
func (c *Context) CallAction(action string, params any) (json.RawMessage, error) {
	if c.Bot == nil {
		return nil, ErrNoTarget
	}
	return c.Bot.conn.CallAction(c.Context(), action, params)
}

func (c *Context) replyTarget() (groupID, userID int64) {
	switch ev := c.Event.(type) {
	case *event.GroupMessage:
		return ev.GroupID, ev.UserID
	case *event.PrivateMessage:
		return 0, ev.UserID
	case nil:
		return 0, 0
	}
	return c.GroupID(), c.UserID()
}

func (b *Bot) recallLater(messageID int64, d time.Duration) {
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-b.ctx.Done():
			return
		}
		ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
		defer cancel()
		if err := b.Actions().DeleteMsg(ctx, messageID); err != nil {
			b.log.Debugf("recall message %d: %v", messageID, err)
		}
	}()
}
