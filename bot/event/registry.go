package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sealdice/muzi/bot/message"
)

// Schema is the static identity of a variant. Its key is the dispatch key
// payloads are matched against.
type Schema struct {
	Category string // post_type
	Type     string // message_type, notice_type, request_type or meta_event_type
	SubType  string // only meaningful when Type is notify
}

func (s Schema) Key() string {
	return dispatchKey(s.Category, s.Type, s.SubType)
}

func dispatchKey(category, typ, sub string) string {
	return category + "." + typ + "." + sub
}

// Variant describes one concrete event type.
type Variant struct {
	Kind     *Kind
	Schema   Schema
	Required []string
	New      func() Event
}

// DecodeError reports a payload that does not fit its variant.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "event decode: " + e.Reason
	}
	return fmt.Sprintf("event decode: field %s: %s", e.Field, e.Reason)
}

// typeFields maps post_type to the field naming the event type.
var typeFields = map[string]string{
	"message":    "message_type",
	"notice":     "notice_type",
	"request":    "request_type",
	"meta_event": "meta_event_type",
}

func required(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	headerFields  = []string{"time", "self_id", "post_type"}
	messageFields = required(headerFields, []string{"message_type", "sub_type", "message", "raw_message", "message_id", "sender", "user_id"})
	noticeFields  = required(headerFields, []string{"notice_type"})
	notifyFields  = required(noticeFields, []string{"sub_type", "user_id"})
	metaFields    = required(headerFields, []string{"meta_event_type"})
)

var variants = []*Variant{
	{KindMessage, Schema{"message", "", ""}, messageFields, func() Event { return &MessageEvent{} }},
	{KindGroupMessage, Schema{"message", "group", ""}, required(messageFields, []string{"group_id"}), func() Event { return &GroupMessage{} }},
	{KindPrivateMessage, Schema{"message", "private", ""}, messageFields, func() Event { return &PrivateMessage{} }},

	{KindNotice, Schema{"notice", "", ""}, noticeFields, func() Event { return &NoticeEvent{} }},
	{KindGroupUpload, Schema{"notice", "group_upload", ""}, required(noticeFields, []string{"user_id", "group_id"}), func() Event { return &GroupUpload{} }},
	{KindGroupAdmin, Schema{"notice", "group_admin", ""}, required(noticeFields, []string{"sub_type", "user_id", "group_id"}), func() Event { return &GroupAdmin{} }},
	{KindGroupDecrease, Schema{"notice", "group_decrease", ""}, required(noticeFields, []string{"sub_type", "user_id", "group_id", "operator_id"}), func() Event { return &GroupDecrease{} }},
	{KindGroupIncrease, Schema{"notice", "group_increase", ""}, required(noticeFields, []string{"sub_type", "user_id", "group_id", "operator_id"}), func() Event { return &GroupIncrease{} }},
	{KindGroupBan, Schema{"notice", "group_ban", ""}, required(noticeFields, []string{"sub_type", "user_id", "group_id", "operator_id", "duration"}), func() Event { return &GroupBan{} }},
	{KindFriendAdd, Schema{"notice", "friend_add", ""}, required(noticeFields, []string{"user_id"}), func() Event { return &FriendAdd{} }},
	{KindGroupRecall, Schema{"notice", "group_recall", ""}, required(noticeFields, []string{"user_id", "group_id", "operator_id", "message_id"}), func() Event { return &GroupRecall{} }},
	{KindFriendRecall, Schema{"notice", "friend_recall", ""}, required(noticeFields, []string{"user_id", "message_id"}), func() Event { return &FriendRecall{} }},
	{KindNotify, Schema{"notice", "notify", ""}, notifyFields, func() Event { return &Notify{} }},
	{KindPoke, Schema{"notice", "notify", "poke"}, required(notifyFields, []string{"target_id"}), func() Event { return &Poke{} }},
	{KindLuckyKing, Schema{"notice", "notify", "lucky_king"}, required(notifyFields, []string{"group_id", "target_id"}), func() Event { return &LuckyKing{} }},
	{KindHonor, Schema{"notice", "notify", "honor"}, required(notifyFields, []string{"group_id", "honor_type"}), func() Event { return &Honor{} }},

	{KindRequest, Schema{"request", "", ""}, required(headerFields, []string{"request_type"}), func() Event { return &RequestEvent{} }},

	{KindMeta, Schema{"meta_event", "", ""}, metaFields, func() Event { return &MetaEvent{} }},
	{KindHeartbeat, Schema{"meta_event", "heartbeat", ""}, required(metaFields, []string{"interval", "status"}), func() Event { return &Heartbeat{} }},
	{KindLifecycle, Schema{"meta_event", "lifecycle", ""}, required(metaFields, []string{"sub_type"}), func() Event { return &Lifecycle{} }},
}

var registry = mustBuildRegistry(variants)

func buildRegistry(vs []*Variant) (map[string]*Variant, error) {
	out := make(map[string]*Variant, len(vs))
	for _, v := range vs {
		key := v.Schema.Key()
		if prev, dup := out[key]; dup {
			return nil, fmt.Errorf("event: dispatch key %q claimed by both %s and %s", key, prev.Kind, v.Kind)
		}
		out[key] = v
	}
	return out, nil
}

func mustBuildRegistry(vs []*Variant) map[string]*Variant {
	r, err := buildRegistry(vs)
	if err != nil {
		panic(err)
	}
	return r
}

// Variants lists every registered variant.
func Variants() []*Variant {
	out := make([]*Variant, len(variants))
	copy(out, variants)
	return out
}

// KeyOf computes the dispatch key of a raw payload, empty when the payload
// names no known category.
func KeyOf(raw []byte) string {
	res := gjson.GetBytes(raw, "post_type")
	field, ok := typeFields[res.String()]
	if !ok {
		return ""
	}
	typ := gjson.GetBytes(raw, field).String()
	sub := ""
	if res.String() == "notice" && typ == "notify" {
		sub = gjson.GetBytes(raw, "sub_type").String()
	}
	return dispatchKey(res.String(), typ, sub)
}

// Classify picks the variant for a raw payload. A key with no exact match
// falls back to the generic variant of its type, then of its category.
func Classify(raw []byte) (*Variant, bool) {
	key := KeyOf(raw)
	if key == "" {
		return nil, false
	}
	parts := strings.SplitN(key, ".", 3)
	for _, k := range []string{key, dispatchKey(parts[0], parts[1], ""), dispatchKey(parts[0], "", "")} {
		if v, ok := registry[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// Build decodes raw into the variant. Every required field must be present
// and non-null, and every field must have the declared type.
func Build(raw []byte, v *Variant) (Event, error) {
	for _, f := range v.Required {
		r := gjson.GetBytes(raw, f)
		if !r.Exists() || r.Type == gjson.Null {
			return nil, &DecodeError{Field: f, Reason: "missing required field"}
		}
	}

	ev := v.New()
	if err := json.Unmarshal(raw, ev); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &DecodeError{Field: te.Field, Reason: fmt.Sprintf("expected %s, got %s", te.Type, te.Value)}
		}
		return nil, &DecodeError{Reason: err.Error()}
	}

	h := ev.Head()
	h.raw = append([]byte(nil), raw...)

	if m, ok := AsMessage(ev); ok {
		_, group := ev.(*GroupMessage)
		m.ToMe = !group || mentions(m, h.SelfID)
	}
	return ev, nil
}

// Decode classifies and builds raw. ok is false when no variant matches.
func Decode(raw []byte) (ev Event, ok bool, err error) {
	v, ok := Classify(raw)
	if !ok {
		return nil, false, nil
	}
	ev, err = Build(raw, v)
	return ev, true, err
}

// mentions reports whether the message carries an at segment for selfID.
func mentions(m *MessageEvent, selfID int64) bool {
	body := m.Message
	if m.RawMessage != "" {
		body = message.Parse(m.RawMessage)
	}
	self := strconv.FormatInt(selfID, 10)
	for _, seg := range body {
		if seg.Type == "at" && seg.Get("qq") == self {
			return true
		}
	}
	return false
}
