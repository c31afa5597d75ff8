package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 配置文件监控器
// fsnotify 监控配置目录，辅以修改时间轮询兜底；
// 变更通过 Updates 通道推送重新加载并通过校验的配置
type Watcher struct {
	configPath  string
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	isWatching  bool
	lastModTime time.Time
	updateChan  chan *Config
	errorChan   chan error
}

// NewWatcher 创建配置监控器
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if configDir == "" || configDir == "." {
		configDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("获取当前目录失败: %w", err)
		}
		configPath = filepath.Join(configDir, filepath.Base(configPath))
	}

	var lastModTime time.Time
	if info, err := os.Stat(configPath); err == nil {
		lastModTime = info.ModTime()
	}

	return &Watcher{
		configPath:  configPath,
		watcher:     fsw,
		lastModTime: lastModTime,
		updateChan:  make(chan *Config, 1),
		errorChan:   make(chan error, 10),
	}, nil
}

// Start 开始监控
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return fmt.Errorf("配置监控器已经在运行")
	}
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	w.isWatching = true
	go w.watchLoop(ctx)
	return nil
}

// Stop 停止监控
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}

// watchLoop 监控循环
func (w *Watcher) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name == w.configPath &&
				(event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// 延迟处理，避免文件正在写入时读取
				time.Sleep(100 * time.Millisecond)
				w.handleChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.pushError(err)

		case <-ticker.C:
			// 修改时间轮询兜底
			w.mu.Lock()
			last := w.lastModTime
			w.mu.Unlock()
			if info, err := os.Stat(w.configPath); err == nil && info.ModTime().After(last) {
				w.handleChange()
			}
		}
	}
}

// handleChange 处理配置文件变化
func (w *Watcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		w.pushError(fmt.Errorf("获取文件信息失败: %w", err))
		return
	}

	modTime := info.ModTime()
	if !modTime.After(w.lastModTime) {
		return
	}
	w.lastModTime = modTime

	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		w.pushError(fmt.Errorf("重新加载配置失败: %w", err))
		return
	}

	select {
	case w.updateChan <- newConfig:
	default:
	}
}

// pushError 非阻塞投递错误
func (w *Watcher) pushError(err error) {
	select {
	case w.errorChan <- err:
	default:
	}
}

// Updates 配置更新通道
func (w *Watcher) Updates() <-chan *Config {
	return w.updateChan
}

// Errors 错误通道
func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}
