// Package event 进程内事件总线
// 求值完成、预警触发、配置变更等事件在此发布，
// WebSocket 集线器与预警模块各自订阅消费。
package event

import (
	"sync"
	"time"

	"quantdesk/logger"
)

// EventType 事件类型
type EventType string

const (
	EventTypeEvaluationDone EventType = "evaluation_done"
	EventTypeAlertTriggered EventType = "alert_triggered"
	EventTypeBacktestDone   EventType = "backtest_done"
	EventTypeCacheCleared   EventType = "cache_cleared"
	EventTypeConfigReloaded EventType = "config_reloaded"
	EventTypeSystemStart    EventType = "system_start"
	EventTypeSystemStop     EventType = "system_stop"
)

// Event 事件结构
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventBus 事件总线
// 支持多订阅者，每个订阅者有独立缓冲；队列满时丢弃并告警，绝不阻塞发布方
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan *Event
	bufferSize  int
	closed      bool
}

// NewEventBus 创建事件总线
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &EventBus{bufferSize: bufferSize}
}

// Publish 发布事件（非阻塞）
func (eb *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warn("⚠️ 事件队列已满，丢弃事件: %s", event.Type)
		}
	}
}

// Subscribe 订阅事件，返回独立缓冲的通道
func (eb *EventBus) Subscribe() <-chan *Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan *Event, eb.bufferSize)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Close 关闭事件总线，所有订阅通道随之关闭
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, ch := range eb.subscribers {
		close(ch)
	}
	eb.subscribers = nil
}
