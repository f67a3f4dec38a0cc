package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and hands the result to fn. A file
// that fails to load is logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(cfg *Config)) error {
	log := zap.S().Named("config")
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// 编辑器常以重命名方式保存，监听目录而非文件
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			reload = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher: %v", err)
		case <-reload:
			reload = nil
			cfg, err := Load(path)
			if err != nil {
				log.Errorf("reload %s: %v", path, err)
				continue
			}
			log.Infof("reloaded %s", path)
			fn(cfg)
		}
	}
}
