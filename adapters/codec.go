package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type frame struct {
	PostType string
	Echo     string
	HasEcho  bool
	raw      []byte
}

// isEvent reports an unsolicited event frame. Anything with a post_type is
// an event even if it also carries an echo.
func (f *frame) isEvent() bool {
	return f.PostType != ""
}

func decodeFrame(raw []byte) (*frame, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedFrame)
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	f := &frame{PostType: res.Get("post_type").String(), raw: raw}
	if echo := res.Get("echo"); echo.Exists() && echo.Type != gjson.Null {
		f.Echo = echo.String()
		f.HasEcho = true
	}
	return f, nil
}

func (f *frame) response() *ActionResponse {
	var resp ActionResponse
	if err := json.Unmarshal(f.raw, &resp); err != nil {
		return &ActionResponse{Status: "failed", RetCode: -1, Message: err.Error()}
	}
	return &resp
}

func encodeCall(action string, params any, echo string) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(ActionRequest{Action: action, Params: params, Echo: echo})
}
