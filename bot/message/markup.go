package message

import (
	"sort"
	"strings"
)

const codePrefix = "[CQ:"

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"[", "&#91;",
		"]", "&#93;",
		",", "&#44;",
	)
	unescaper = strings.NewReplacer(
		"&#91;", "[",
		"&#93;", "]",
		"&#44;", ",",
	)
)

// Escape encodes a value for use inside a markup token.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape. "&amp;" is decoded last so that "&amp;#91;"
// comes back as the literal "&#91;".
func Unescape(s string) string {
	return strings.ReplaceAll(unescaper.Replace(s), "&amp;", "&")
}

// Parse splits markup text into segments. Text between tokens becomes text
// segments and is taken literally; a bracket run that is not a well formed
// token stays text. Parse never fails.
func Parse(s string) Message {
	var (
		out  Message
		text strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			out = append(out, Text(text.String()))
			text.Reset()
		}
	}

	for i := 0; i < len(s); {
		if !strings.HasPrefix(s[i:], codePrefix) {
			next := strings.Index(s[i+1:], codePrefix)
			if next < 0 {
				text.WriteString(s[i:])
				break
			}
			text.WriteString(s[i : i+1+next])
			i += 1 + next
			continue
		}

		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			text.WriteString(s[i:])
			break
		}
		seg, ok := parseToken(s[i+len(codePrefix) : i+end])
		if !ok {
			text.WriteByte('[')
			i++
			continue
		}
		flush()
		out = append(out, seg)
		i += end + 1
	}
	flush()
	return out
}

// parseToken parses the body of "[CQ:body]": kind followed by ",k=v" pairs.
func parseToken(body string) (Segment, bool) {
	if strings.IndexByte(body, '[') >= 0 {
		return Segment{}, false
	}
	parts := strings.Split(body, ",")
	kind := parts[0]
	if !isWord(kind) {
		return Segment{}, false
	}
	seg := Segment{Type: kind, Data: make(map[string]string, len(parts)-1)}
	for idx, p := range parts[1:] {
		if p == "" {
			// a single trailing comma is tolerated
			if idx == len(parts)-2 {
				continue
			}
			return Segment{}, false
		}
		k, v, found := strings.Cut(p, "=")
		if !found || !isWord(k) || v == "" {
			return Segment{}, false
		}
		seg.Data[k] = Unescape(v)
	}
	return seg, true
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r == '_', r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// String renders the segment as markup. Text renders raw; other kinds render
// as a token with sorted keys, escaped values and empty values left out.
func (s Segment) String() string {
	if s.IsText() {
		return s.Get("text")
	}
	var sb strings.Builder
	sb.WriteString(codePrefix)
	sb.WriteString(s.Type)
	keys := make([]string, 0, len(s.Data))
	for k, v := range s.Data {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(',')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(Escape(s.Data[k]))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (m Message) String() string {
	var sb strings.Builder
	for _, seg := range m {
		sb.WriteString(seg.String())
	}
	return sb.String()
}
