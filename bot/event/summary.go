package event

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Summary returns a one-line description for logs. Meta events are not
// summarised.
func Summary(ev Event) (string, bool) {
	switch {
	case ev.Kind().Is(KindMeta):
		return "", false
	case ev.Kind().Is(KindMessage):
		m, _ := AsMessage(ev)
		var sb strings.Builder
		sb.WriteString("Message ")
		if g, ok := ev.(*GroupMessage); ok {
			fmt.Fprintf(&sb, "[GID:%d]", g.GroupID)
		}
		fmt.Fprintf(&sb, "[UID:%d] %s", m.UserID, m.RawMessage)
		return sb.String(), true
	case ev.Kind().Is(KindNotice):
		n, _ := AsNotice(ev)
		raw := ev.Head().Raw()
		var sb strings.Builder
		sb.WriteString("Notice ")
		if v := gjson.GetBytes(raw, "group_id").Int(); v != 0 {
			fmt.Fprintf(&sb, "[GID:%d]", v)
		}
		if v := gjson.GetBytes(raw, "user_id").Int(); v != 0 {
			fmt.Fprintf(&sb, "[UID:%d]", v)
		}
		if v := gjson.GetBytes(raw, "operator_id").Int(); v != 0 {
			fmt.Fprintf(&sb, "[OID:%d]", v)
		} else if v := gjson.GetBytes(raw, "target_id").Int(); v != 0 {
			fmt.Fprintf(&sb, "[TID:%d]", v)
		}
		sb.WriteString(" ")
		sb.WriteString(n.NoticeType)
		return sb.String(), true
	case ev.Kind().Is(KindRequest):
		r := ev.(*RequestEvent)
		return fmt.Sprintf("Request [UID:%d] %s", r.UserID, r.RequestType), true
	default:
		return "Unknown " + ev.Head().PostType, true
	}
}
