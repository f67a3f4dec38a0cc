package event

// Kind 事件种类。种类组成一棵封闭的树，过滤时子种类视为父种类的实例。
type Kind struct {
	name   string
	parent *Kind
}

func newKind(name string, parent *Kind) *Kind {
	return &Kind{name: name, parent: parent}
}

var (
	KindEvent = newKind("event", nil)

	KindMessage        = newKind("message", KindEvent)
	KindGroupMessage   = newKind("message.group", KindMessage)
	KindPrivateMessage = newKind("message.private", KindMessage)

	KindNotice        = newKind("notice", KindEvent)
	KindGroupUpload   = newKind("notice.group_upload", KindNotice)
	KindGroupAdmin    = newKind("notice.group_admin", KindNotice)
	KindGroupDecrease = newKind("notice.group_decrease", KindNotice)
	KindGroupIncrease = newKind("notice.group_increase", KindNotice)
	KindGroupBan      = newKind("notice.group_ban", KindNotice)
	KindFriendAdd     = newKind("notice.friend_add", KindNotice)
	KindGroupRecall   = newKind("notice.group_recall", KindNotice)
	KindFriendRecall  = newKind("notice.friend_recall", KindNotice)
	KindNotify        = newKind("notice.notify", KindNotice)
	KindPoke          = newKind("notice.notify.poke", KindNotify)
	KindLuckyKing     = newKind("notice.notify.lucky_king", KindNotify)
	KindHonor         = newKind("notice.notify.honor", KindNotify)

	KindRequest = newKind("request", KindEvent)

	KindMeta      = newKind("meta_event", KindEvent)
	KindHeartbeat = newKind("meta_event.heartbeat", KindMeta)
	KindLifecycle = newKind("meta_event.lifecycle", KindMeta)
)

// Is reports whether k is target or one of its descendants.
func (k *Kind) Is(target *Kind) bool {
	if target == nil {
		return true
	}
	for c := k; c != nil; c = c.parent {
		if c == target {
			return true
		}
	}
	return false
}

func (k *Kind) Parent() *Kind {
	return k.parent
}

func (k *Kind) String() string {
	if k == nil {
		return "<nil>"
	}
	return k.name
}
