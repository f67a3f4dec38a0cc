package main

// muzi 主程序：在本地监听 OneBot11 反向 WebSocket，等待网关连接

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sealdice/muzi/adapters"
	"github.com/sealdice/muzi/bot"
	"github.com/sealdice/muzi/config"
	"github.com/sealdice/muzi/plugins/manage"
	"github.com/sealdice/muzi/plugins/roll"
	"github.com/sealdice/muzi/plugins/welcome"
)

// builtinModules 内置插件，按名称排序后分发
var builtinModules = []bot.Module{
	manage.Module,
	roll.Module,
	welcome.Module,
}

type flags struct {
	configPath string
	host       string
	port       int
	logLevel   string
	initConfig bool
	version    bool
}

func parseFlags(args []string) (*flags, *pflag.FlagSet, error) {
	f := &flags{}
	fs := pflag.NewFlagSet("muzi", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "muzi.yaml", "config file, .yaml or .toml")
	fs.StringVar(&f.host, "host", "", "listen host, overrides the config")
	fs.IntVar(&f.port, "port", 0, "listen port, overrides the config")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.initConfig, "init", false, "write a default config file and exit")
	fs.BoolVarP(&f.version, "version", "v", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return f, fs, nil
}

// apply puts command line overrides on top of cfg.
func (f *flags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(cfg.Level())
	zc := zap.NewDevelopmentConfig()
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger, level
}

func newAdapter(cfg *config.Config) *adapters.PlatformAdapterOB11 {
	return &adapters.PlatformAdapterOB11{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Path:          cfg.Path,
		AccessToken:   cfg.AccessToken,
		CallTimeout:   cfg.CallTimeoutDuration(),
		AutoReconnect: cfg.AutoReconnect,
		RebootGrace:   cfg.RebootGraceDuration(),
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
	}
}

func run() error {
	f, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if f.version {
		fmt.Printf("%s %s\n", bot.APPNAME, bot.VERSION)
		return nil
	}
	if f.initConfig {
		if err := config.Save(f.configPath, config.Default()); err != nil {
			return err
		}
		fmt.Printf("已写入默认配置 %s\n", f.configPath)
		return nil
	}

	path := f.configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !fs.Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, level := newLogger(cfg)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	log := zap.S()
	log.Infof("%s %s", bot.APPNAME, bot.VERSION)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if dir := filepath.Dir(cfg.DataPath); cfg.DataPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	store, err := bot.OpenStateStore(cfg.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	conn := newAdapter(cfg)
	b := bot.New(conn, bot.Options{
		Superusers:        cfg.Superusers,
		AllowEmptyPlugins: cfg.Extra.AllowEmptyPlugins,
		HideEmptyPlugins:  cfg.Extra.HideEmptyPlugins,
		PluginEnabled:     cfg.PluginFlags(),
		Store:             store,
	})
	defer b.Close()
	conn.SetCallback(b)

	if err := b.Load(builtinModules...); err != nil {
		log.Warnf("some plugins failed to load: %v", err)
	}
	_, _ = b.AddConnectHook("login-info", bot.HookPriorityNormal, func(b *bot.Bot, selfID int64) error {
		info, err := b.Actions().GetLoginInfo(ctx)
		if err != nil {
			return err
		}
		log.Infof("logged in as %s (%d)", info.Nickname, info.UserID)
		return nil
	})

	if path != "" {
		go func() {
			err := config.Watch(ctx, path, func(next *config.Config) {
				f.apply(fs, next)
				level.SetLevel(next.Level())
				b.SetSuperusers(next.Superusers)
				b.ApplyPluginFlags(next.PluginFlags())
			})
			if err != nil {
				log.Warnf("config watch stopped: %v", err)
			}
		}()
	}

	fmt.Println("等待网关连接中... 使用 Ctrl+C 退出")
	return conn.Serve(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
