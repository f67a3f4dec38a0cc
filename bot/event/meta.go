package event

// MetaEvent 元事件，只在框架内部消费，不记录摘要日志
type MetaEvent struct {
	Header
	MetaEventType string `json:"meta_event_type"`
}

func (*MetaEvent) Kind() *Kind { return KindMeta }

func (e *MetaEvent) MetaBase() *MetaEvent { return e }

// AsMeta returns the common fields of any meta variant.
func AsMeta(ev Event) (*MetaEvent, bool) {
	m, ok := ev.(interface{ MetaBase() *MetaEvent })
	if !ok {
		return nil, false
	}
	return m.MetaBase(), true
}

// Status of a heartbeat. Online is nil when the gateway leaves it out.
type Status struct {
	AppInitialized bool  `json:"app_initialized"`
	AppEnabled     bool  `json:"app_enabled"`
	AppGood        bool  `json:"app_good"`
	Online         *bool `json:"online"`
	Good           bool  `json:"good"`
}

// Heartbeat interval is in milliseconds.
type Heartbeat struct {
	MetaEvent
	Interval int64  `json:"interval"`
	Status   Status `json:"status"`
}

func (*Heartbeat) Kind() *Kind { return KindHeartbeat }

// Offline reports a heartbeat whose status says the account is logged out.
// A missing or null online field is not an offline report.
func (h *Heartbeat) Offline() bool {
	return h.Status.Online != nil && !*h.Status.Online
}

// Lifecycle sub_type is enable, disable or connect.
type Lifecycle struct {
	MetaEvent
	SubType string `json:"sub_type"`
}

func (*Lifecycle) Kind() *Kind { return KindLifecycle }
