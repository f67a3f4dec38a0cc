package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sealdice/muzi/bot/message"
)

// Actions wraps a Caller with typed OneBot11 calls.
type Actions struct {
	Caller Caller
}

func (a Actions) call(ctx context.Context, action string, params map[string]any, out any) error {
	var p any
	if params != nil {
		p = params
	}
	data, err := a.Caller.CallAction(ctx, action, p)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("ob11: decode %s result: %w", action, err)
		}
	}
	return nil
}

type sendResult struct {
	MessageID int64 `json:"message_id"`
}

// SendMsg sends to the group when groupID is set, otherwise to userID.
func (a Actions) SendMsg(ctx context.Context, groupID, userID int64, msg message.Message) (int64, error) {
	params := map[string]any{"message": msg}
	if groupID != 0 {
		params["message_type"] = "group"
		params["group_id"] = groupID
	} else {
		params["message_type"] = "private"
		params["user_id"] = userID
	}
	var res sendResult
	err := a.call(ctx, "send_msg", params, &res)
	return res.MessageID, err
}

func (a Actions) SendGroupMsg(ctx context.Context, groupID int64, msg message.Message) (int64, error) {
	var res sendResult
	err := a.call(ctx, "send_group_msg", map[string]any{"group_id": groupID, "message": msg}, &res)
	return res.MessageID, err
}

func (a Actions) SendPrivateMsg(ctx context.Context, userID int64, msg message.Message) (int64, error) {
	var res sendResult
	err := a.call(ctx, "send_private_msg", map[string]any{"user_id": userID, "message": msg}, &res)
	return res.MessageID, err
}

// DeleteMsg recalls a message by id.
func (a Actions) DeleteMsg(ctx context.Context, messageID int64) error {
	return a.call(ctx, "delete_msg", map[string]any{"message_id": messageID}, nil)
}

type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

func (a Actions) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	var info LoginInfo
	if err := a.call(ctx, "get_login_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GroupInfo 群组信息
type GroupInfo struct {
	GroupID        int64  `json:"group_id"`
	GroupName      string `json:"group_name"`
	MemberCount    int    `json:"member_count"`
	MaxMemberCount int    `json:"max_member_count"`
}

func (a Actions) GetGroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error) {
	var info GroupInfo
	if err := a.call(ctx, "get_group_info", map[string]any{"group_id": groupID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetGroupBan mutes a member; a zero duration lifts the mute.
func (a Actions) SetGroupBan(ctx context.Context, groupID, userID, seconds int64) error {
	return a.call(ctx, "set_group_ban", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"duration": seconds,
	}, nil)
}

func (a Actions) SetGroupKick(ctx context.Context, groupID, userID int64, rejectAddRequest bool) error {
	return a.call(ctx, "set_group_kick", map[string]any{
		"group_id":           groupID,
		"user_id":            userID,
		"reject_add_request": rejectAddRequest,
	}, nil)
}

func (a Actions) SetGroupCard(ctx context.Context, groupID, userID int64, card string) error {
	return a.call(ctx, "set_group_card", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"card":     card,
	}, nil)
}

func (a Actions) SetGroupLeave(ctx context.Context, groupID int64) error {
	return a.call(ctx, "set_group_leave", map[string]any{
		"group_id":   groupID,
		"is_dismiss": false,
	}, nil)
}

// SetFriendAddRequest answers a friend request identified by flag.
func (a Actions) SetFriendAddRequest(ctx context.Context, flag string, approve bool, remark string) error {
	params := map[string]any{"flag": flag, "approve": approve}
	if remark != "" {
		params["remark"] = remark
	}
	return a.call(ctx, "set_friend_add_request", params, nil)
}

// SetGroupAddRequest answers a group join request or invitation.
func (a Actions) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error {
	params := map[string]any{"flag": flag, "sub_type": subType, "approve": approve}
	if reason != "" && !approve {
		params["reason"] = reason
	}
	return a.call(ctx, "set_group_add_request", params, nil)
}
