package message

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Segment 消息段，type 为种类，data 为字段表。文本段的内容保存在 data["text"]。
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Message 消息段序列
type Message []Segment

const TypeText = "text"

func (s Segment) IsText() bool {
	return s.Type == TypeText
}

// Get returns the field value, empty when absent.
func (s Segment) Get(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

func New(kind string, kv ...string) Segment {
	seg := Segment{Type: kind, Data: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		seg.Data[kv[i]] = kv[i+1]
	}
	return seg
}

func Text(text string) Segment {
	return Segment{Type: TypeText, Data: map[string]string{"text": text}}
}

func At(qq int64) Segment {
	return New("at", "qq", strconv.FormatInt(qq, 10))
}

func AtName(qq int64, name string) Segment {
	return New("at", "qq", strconv.FormatInt(qq, 10), "name", name)
}

func AtAll() Segment {
	return New("at", "qq", "all")
}

func Face(id int) Segment {
	return New("face", "id", strconv.Itoa(id))
}

// Image accepts a url, a file:// uri or a base64:// payload.
func Image(file string) Segment {
	return New("image", "file", file)
}

func ImageBytes(data []byte) Segment {
	return Image("base64://" + base64.StdEncoding.EncodeToString(data))
}

func Record(file string, magic bool) Segment {
	return New("record", "file", file, "magic", boolString(magic))
}

func Video(file, cover string) Segment {
	return New("video", "file", file, "cover", cover)
}

func Reply(id int64) Segment {
	return New("reply", "id", strconv.FormatInt(id, 10))
}

func Poke(qq int64) Segment {
	return New("poke", "qq", strconv.FormatInt(qq, 10))
}

func Share(url, title, content, image string) Segment {
	return New("share", "url", url, "title", title, "content", content, "image", image)
}

// Music shares a track from a known provider (qq, 163, xm).
func Music(provider, id string) Segment {
	return New("music", "type", provider, "id", id)
}

func CustomMusic(url, audio, title, content, image string) Segment {
	return New("music", "type", "custom", "url", url, "audio", audio, "title", title, "content", content, "image", image)
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Append adds parts to the message. Strings are parsed as markup.
func (m Message) Append(parts ...any) Message {
	for _, p := range parts {
		switch v := p.(type) {
		case Segment:
			m = append(m, v)
		case Message:
			m = append(m, v...)
		case []Segment:
			m = append(m, v...)
		case string:
			m = append(m, Parse(v)...)
		case nil:
		default:
			m = append(m, Text(toString(v)))
		}
	}
	return m
}

// Of builds a message from the given parts, see Append.
func Of(parts ...any) Message {
	return Message(nil).Append(parts...)
}

// ExtractText 只保留文本段内容
func (m Message) ExtractText() string {
	var sb strings.Builder
	for _, seg := range m {
		if seg.IsText() {
			sb.WriteString(seg.Get("text"))
		}
	}
	return sb.String()
}

func (m Message) Filter(kind string) []Segment {
	var out []Segment
	for _, seg := range m {
		if seg.Type == kind {
			out = append(out, seg)
		}
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case interface{ String() string }:
		return x.String()
	default:
		return ""
	}
}
