package event

import (
	"github.com/sealdice/muzi/bot/message"
)

// Event is one decoded gateway event. Concrete variants are pointers to the
// structs in this package.
type Event interface {
	Kind() *Kind
	Head() *Header
}

// Header 所有事件共有的字段
type Header struct {
	Time     int64  `json:"time"`
	SelfID   int64  `json:"self_id"`
	PostType string `json:"post_type"`

	raw []byte
}

func (h *Header) Head() *Header {
	return h
}

// Raw returns the payload the event was decoded from.
func (h *Header) Raw() []byte {
	return h.raw
}

// Sender 发送者
type Sender struct {
	UserID   int64  `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Sex      string `json:"sex,omitempty"`
	Age      int    `json:"age,omitempty"`
	Card     string `json:"card,omitempty"`
	Area     string `json:"area,omitempty"`
	Level    string `json:"level,omitempty"`
	Role     string `json:"role,omitempty"`
	Title    string `json:"title,omitempty"`
}

// DisplayName prefers the group card over the nickname.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

type Anonymous struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// MessageEvent 消息事件。收到未知 message_type 时也以此类型分发。
type MessageEvent struct {
	Header
	MessageType string          `json:"message_type"`
	SubType     string          `json:"sub_type"`
	Message     message.Message `json:"message"`
	RawMessage  string          `json:"raw_message"`
	MessageID   int64           `json:"message_id"`
	Sender      Sender          `json:"sender"`
	UserID      int64           `json:"user_id"`

	// ToMe is derived after decoding, never read from the payload.
	ToMe bool `json:"-"`
}

func (*MessageEvent) Kind() *Kind { return KindMessage }

func (e *MessageEvent) MessageBase() *MessageEvent { return e }

// PlainText is the text projection of the message body.
func (e *MessageEvent) PlainText() string {
	return e.Message.ExtractText()
}

// RawText is raw_message, or the rendered body when the gateway sent none.
func (e *MessageEvent) RawText() string {
	if e.RawMessage != "" {
		return e.RawMessage
	}
	return e.Message.String()
}

type GroupMessage struct {
	MessageEvent
	GroupID   int64      `json:"group_id"`
	Anonymous *Anonymous `json:"anonymous,omitempty"`
}

func (*GroupMessage) Kind() *Kind { return KindGroupMessage }

type PrivateMessage struct {
	MessageEvent
}

func (*PrivateMessage) Kind() *Kind { return KindPrivateMessage }

// AsMessage returns the common message fields of any message variant.
func AsMessage(ev Event) (*MessageEvent, bool) {
	m, ok := ev.(interface{ MessageBase() *MessageEvent })
	if !ok {
		return nil, false
	}
	return m.MessageBase(), true
}

// IsToMe reports whether ev is a message addressed to the bot.
func IsToMe(ev Event) bool {
	m, ok := AsMessage(ev)
	return ok && m.ToMe
}

// RequestEvent 请求事件
type RequestEvent struct {
	Header
	RequestType string `json:"request_type"`
	SubType     string `json:"sub_type,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	GroupID     int64  `json:"group_id,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Flag        string `json:"flag,omitempty"`
}

func (*RequestEvent) Kind() *Kind { return KindRequest }
