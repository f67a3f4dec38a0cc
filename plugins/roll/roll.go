package roll

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	ds "github.com/sealdice/dicescript"
	"golang.org/x/exp/rand"

	"github.com/sealdice/muzi/bot"
	"github.com/sealdice/muzi/bot/event"
)

// DefaultExpr is rolled when .r has no expression.
const DefaultExpr = "d"

var Module = bot.Module{
	Name: "roll",
	Metadata: bot.Metadata{
		Name:    "掷骰",
		Version: "1.0.0",
		Usage:   ".r [表达式] [原因]  掷骰，默认 d100\n.choose 选项1 选项2 ...  随机选择一项",
	},
	Setup: setup,
}

func init() {
	rand.Seed(uint64(time.Now().UnixNano()))
}

func setup(r *bot.Registrar) error {
	r.OnCommand([]string{"r", "roll"}, bot.WithName("roll")).Use(bot.HandleMatch(handleRoll))
	r.OnCommand([]string{"choose"}, bot.WithName("choose")).Use(bot.HandleMatch(handleChoose))
	return nil
}

func newVM() *ds.Context {
	vm := ds.NewVM()
	vm.Config.EnableDiceWoD = true
	vm.Config.EnableDiceCoC = true
	vm.Config.EnableDiceFate = true
	vm.Config.EnableDiceDoubleCross = true
	vm.Config.DisableStmts = true
	vm.Config.DefaultDiceSideExpr = "100"
	vm.Config.OpCountLimit = 30000
	return vm
}

// Outcome 一次掷骰的结果
type Outcome struct {
	Expr   string
	Result string
	Detail string
	Reason string
}

func (o Outcome) String() string {
	expr := strings.ToUpper(o.Expr)
	if o.Detail != "" && o.Detail != o.Result {
		return fmt.Sprintf("%s=%s=%s", expr, o.Detail, o.Result)
	}
	return fmt.Sprintf("%s=%s", expr, o.Result)
}

// Eval rolls args. Text the expression parser does not consume is the
// reason; args that are not an expression at all are rolled as the default
// die with args as the reason.
func Eval(args string) (Outcome, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return run(DefaultExpr, "")
	}
	out, err := run(args, "")
	if err != nil {
		return run(DefaultExpr, args)
	}
	return out, nil
}

func run(expr, reason string) (Outcome, error) {
	vm := newVM()
	if err := vm.Run(expr); err != nil {
		return Outcome{}, err
	}
	if vm.Ret == nil {
		return Outcome{}, fmt.Errorf("roll %q: no result", expr)
	}
	out := Outcome{
		Expr:   strings.TrimSpace(vm.Matched),
		Result: vm.Ret.ToString(),
		Detail: vm.GetDetailText(),
		Reason: reason,
	}
	if out.Expr == "" {
		out.Expr = expr
	}
	if out.Reason == "" {
		out.Reason = strings.TrimSpace(vm.RestInput)
	}
	return out, nil
}

func senderName(c *bot.Context) string {
	if m, ok := event.AsMessage(c.Event); ok {
		return m.Sender.DisplayName()
	}
	return ""
}

func handleRoll(c *bot.Context, res *bot.Result) error {
	out, err := Eval(res.Group("args"))
	if err != nil {
		return c.Finish("表达式有误: " + err.Error())
	}
	text := fmt.Sprintf("%s掷出了 %s", senderName(c), out)
	if out.Reason != "" {
		text = fmt.Sprintf("由于%s，%s", out.Reason, text)
	}
	return c.Finish(text)
}

// Options splits a .choose argument list on blanks and commas.
func Options(args string) []string {
	items := strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '，' || r == '\n'
	})
	return lo.Uniq(items)
}

func handleChoose(c *bot.Context, res *bot.Result) error {
	items := Options(res.Group("args"))
	if len(items) == 0 {
		return c.Finish("请给出至少一个选项")
	}
	picked := items[rand.Intn(len(items))]
	return c.Finish(fmt.Sprintf("%s的选择是: %s", senderName(c), picked))
}
