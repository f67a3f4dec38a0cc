package event

// NoticeEvent 通知事件
type NoticeEvent struct {
	Header
	NoticeType string `json:"notice_type"`
}

func (*NoticeEvent) Kind() *Kind { return KindNotice }

func (e *NoticeEvent) NoticeBase() *NoticeEvent { return e }

// AsNotice returns the common notice fields of any notice variant.
func AsNotice(ev Event) (*NoticeEvent, bool) {
	n, ok := ev.(interface{ NoticeBase() *NoticeEvent })
	if !ok {
		return nil, false
	}
	return n.NoticeBase(), true
}

type UploadFile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	BusID int64  `json:"busid"`
}

// GroupUpload 群文件上传
type GroupUpload struct {
	NoticeEvent
	UserID  int64       `json:"user_id"`
	GroupID int64       `json:"group_id"`
	File    *UploadFile `json:"file,omitempty"`
}

func (*GroupUpload) Kind() *Kind { return KindGroupUpload }

// GroupAdmin 群管理员变动，sub_type 为 set 或 unset
type GroupAdmin struct {
	NoticeEvent
	SubType string `json:"sub_type"`
	UserID  int64  `json:"user_id"`
	GroupID int64  `json:"group_id"`
}

func (*GroupAdmin) Kind() *Kind { return KindGroupAdmin }

// GroupDecrease 群成员减少
type GroupDecrease struct {
	NoticeEvent
	SubType    string `json:"sub_type"`
	UserID     int64  `json:"user_id"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
}

func (*GroupDecrease) Kind() *Kind { return KindGroupDecrease }

// GroupIncrease 群成员增加
type GroupIncrease struct {
	NoticeEvent
	SubType    string `json:"sub_type"`
	UserID     int64  `json:"user_id"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
}

func (*GroupIncrease) Kind() *Kind { return KindGroupIncrease }

// GroupBan 群禁言，duration 单位为秒
type GroupBan struct {
	NoticeEvent
	SubType    string `json:"sub_type"`
	UserID     int64  `json:"user_id"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	Duration   int64  `json:"duration"`
}

func (*GroupBan) Kind() *Kind { return KindGroupBan }

type FriendAdd struct {
	NoticeEvent
	UserID int64 `json:"user_id"`
}

func (*FriendAdd) Kind() *Kind { return KindFriendAdd }

type GroupRecall struct {
	NoticeEvent
	UserID     int64 `json:"user_id"`
	GroupID    int64 `json:"group_id"`
	OperatorID int64 `json:"operator_id"`
	MessageID  int64 `json:"message_id"`
}

func (*GroupRecall) Kind() *Kind { return KindGroupRecall }

type FriendRecall struct {
	NoticeEvent
	UserID    int64 `json:"user_id"`
	MessageID int64 `json:"message_id"`
}

func (*FriendRecall) Kind() *Kind { return KindFriendRecall }

// Notify 提醒事件，具体种类由 sub_type 区分
type Notify struct {
	NoticeEvent
	SubType string `json:"sub_type"`
	UserID  int64  `json:"user_id"`
	GroupID int64  `json:"group_id,omitempty"`
}

func (*Notify) Kind() *Kind { return KindNotify }

// Poke 戳一戳。私聊戳一戳没有 group_id。
type Poke struct {
	Notify
	TargetID int64 `json:"target_id"`
}

func (*Poke) Kind() *Kind { return KindPoke }

// LuckyKing 红包运气王
type LuckyKing struct {
	Notify
	TargetID int64 `json:"target_id"`
}

func (*LuckyKing) Kind() *Kind { return KindLuckyKing }

// Honor 群荣誉变更
type Honor struct {
	Notify
	HonorType string `json:"honor_type"`
}

func (*Honor) Kind() *Kind { return KindHonor }
