package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benz9527/xrbt/lib/infra"
	"github.com/benz9527/xrbt/xlog"
)

// Watcher reloads the YAML file on change and pushes the new log level into
// the live logger. A level given by flag is never overridden.
type Watcher struct {
	cfg     *Config
	logger  xlog.XLogger
	watcher *fsnotify.Watcher
	closeC  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	once    sync.Once
}

func NewWatcher(cfg *Config, logger xlog.XLogger) (*Watcher, error) {
	if cfg == nil || cfg.path == "" {
		return nil, infra.NewErrorStack("[config] watcher requires a config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[config] new watcher")
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		watcher: w,
		closeC:  make(chan struct{}),
	}, nil
}

// Start watches the parent dir, editors often replace the file by rename.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.cfg.path)); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[config] watch "+w.cfg.path)
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeC:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.cfg.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(err, "[config] watcher failed")
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.cfg.path)
	if err != nil {
		w.logger.ErrorStack(infra.WrapErrorStack(err), "[config] reload failed")
		return
	}
	// A truncating writer fires once before the content lands.
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	next := envDefault()
	if err = yaml.Unmarshal(data, next); err != nil {
		w.logger.ErrorStack(infra.WrapErrorStack(err), "[config] reload failed")
		return
	}
	if _, err := xlog.ParseLogLevel(next.Log.Level); err != nil {
		w.logger.ErrorStack(err, "[config] reload rejected")
		return
	}
	if w.cfg.levelPinned || next.Log.Level == w.cfg.Log.Level {
		return
	}
	w.cfg.Log.Level = next.Log.Level
	w.logger.IncreaseLogLevel(w.cfg.LogLevel())
	w.logger.Info("[config] log level reloaded", zap.String("level", w.cfg.Log.Level))
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeC)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
