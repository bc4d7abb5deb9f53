package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the settings document when it is edited outside the process.
// Writes made by the store itself are ignored. A document that fails to load
// is logged and the current settings are kept. onReload, when set, receives
// each reloaded snapshot. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onReload func(*Settings)) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType(string(s.format))
	if err := v.ReadInConfig(); err != nil {
		s.logger.Warn("settings watch initial read failed", "path", s.path, "err", err)
	}

	reload := func() {
		if ctx.Err() != nil {
			return
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			s.logger.Warn("settings reload read failed", "path", s.path, "err", err)
			return
		}
		if s.isOwnWrite(data) {
			return
		}
		next, err := s.decode(data)
		if err != nil {
			s.logger.Warn("settings reload rejected, keeping current settings", "path", s.path, "err", err)
			return
		}
		s.replace(next)
		s.logger.Info("settings hot-reloaded", "path", s.path)
		if onReload != nil {
			onReload(next.Clone())
		}
	}

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if filepath.Clean(e.Name) != filepath.Clean(s.path) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(reloadDebounce, reload)
	})
	v.WatchConfig()

	<-ctx.Done()
	mu.Lock()
	if debounce != nil {
		debounce.Stop()
	}
	mu.Unlock()
}
