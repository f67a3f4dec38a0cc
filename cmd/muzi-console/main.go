package main

// 本地调试控制台：输入的每一行都作为私聊消息交给插件处理

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/sealdice/muzi/adapters"
	"github.com/sealdice/muzi/bot"
	"github.com/sealdice/muzi/bot/event"
	"github.com/sealdice/muzi/bot/message"
	"github.com/sealdice/muzi/plugins/manage"
	"github.com/sealdice/muzi/plugins/roll"
	"github.com/sealdice/muzi/plugins/welcome"
)

const (
	consoleSelfID = 10000
	consoleUserID = 123
)

var (
	historyFn = filepath.Join(os.TempDir(), ".muzi_console_history")
	messageID atomic.Int64
)

func printReply(call adapters.LoopbackCall) {
	var p struct {
		Message message.Message `json:"message"`
	}
	switch call.Action {
	case "send_msg", "send_group_msg", "send_private_msg":
		if err := json.Unmarshal(call.Params, &p); err != nil {
			fmt.Printf("<%s> %s\n", call.Action, call.Params)
			return
		}
		fmt.Println(p.Message.String())
	default:
		fmt.Printf("<%s> %s\n", call.Action, call.Params)
	}
}

func privateMessage(text string) event.Event {
	raw, _ := json.Marshal(map[string]any{
		"time":         time.Now().Unix(),
		"self_id":      consoleSelfID,
		"post_type":    "message",
		"message_type": "private",
		"sub_type":     "friend",
		"message_id":   messageID.Add(1),
		"user_id":      consoleUserID,
		"message":      text,
		"raw_message":  text,
		"sender":       map[string]any{"user_id": consoleUserID, "nickname": "console"},
	})
	ev, _, err := event.Decode(raw)
	if err != nil {
		fmt.Println("事件构造失败:", err)
		return nil
	}
	return ev
}

func main() {
	logger, _ := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	lb := adapters.NewLoopback()
	lb.OnCall = printReply

	store, err := bot.OpenStateStore(":memory:")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer store.Close()

	b := bot.New(lb, bot.Options{Superusers: []int64{consoleUserID}, Store: store})
	defer b.Close()
	if err := b.Load(manage.Module, roll.Module, welcome.Module); err != nil {
		fmt.Println("插件加载失败:", err)
	}
	b.OnConnect(consoleSelfID)

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(text string) (c []string) {
		for _, cmd := range []string{".r", ".choose", ".help", ".plugins", ".status", ".enable", ".disable", ".reload"} {
			if strings.HasPrefix(cmd, text) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFn); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Printf("%s Console %s\n", bot.APPNAME, bot.VERSION)

	for {
		if text, err := line.Prompt(">>> "); err == nil {
			if strings.TrimSpace(text) == "" {
				continue
			}
			line.AppendHistory(text)

			if lb.State() != adapters.StateRunning {
				lb.Reconnect()
				b.OnConnect(consoleSelfID)
			}
			ev := privateMessage(text)
			if ev == nil {
				continue
			}
			report := b.Dispatch(context.Background(), ev)
			if len(report.Handled)+len(report.Failed) == 0 {
				fmt.Println("(无触发)")
			}
			for _, name := range report.Failed {
				fmt.Printf("(触发器 %s 执行失败)\n", name)
			}
		} else if err == liner.ErrPromptAborted {
			fmt.Print("Interrupted")
			break
		} else {
			fmt.Print("Error reading line: ", err)
			break
		}
	}

	if f, err := os.Create(historyFn); err != nil {
		fmt.Println("Error writing history file: ", err)
	} else {
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}
}
