package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quantdesk/event"
	"quantdesk/logger"
	"quantdesk/metrics"
	"quantdesk/worker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 桌面端本地访问，允许所有来源
	},
}

// wsClient 单个 WebSocket 连接
// gorilla 的连接不支持并发写，响应与广播共用一把写锁
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// writeJSON 串行化写出
func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

// Hub WebSocket 中心
// 每条连接直接讲 worker 信封协议：读到的请求派发给 worker 池，
// 响应按 id 写回，完成顺序不保证；事件总线的事件广播给所有连接
type Hub struct {
	pool    *worker.Pool
	timeout time.Duration

	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub 创建并启动 WebSocket 中心
// bus 非空时订阅事件总线，事件以 {"type":"event",...} 信封推送给所有连接
func NewHub(pool *worker.Pool, bus *event.EventBus, timeout time.Duration) *Hub {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	h := &Hub{
		pool:       pool,
		timeout:    timeout,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.run(ctx)
	if bus != nil {
		go h.forwardEvents(ctx, bus.Subscribe())
	}
	return h
}

// run 注册/注销/广播主循环
func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketConnections(n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.GetPrometheusMetrics().SetWebSocketConnections(n)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.mu.Lock()
				client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				err := client.conn.WriteMessage(websocket.TextMessage, message)
				client.mu.Unlock()
				if err != nil {
					logger.Debug("🔌 广播写入失败，连接将被移除: %v", err)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// eventEnvelope 推送给前端的事件信封，与请求/响应信封区分
type eventEnvelope struct {
	Type  string       `json:"type"` // 恒为 "event"
	Event *event.Event `json:"event"`
}

// forwardEvents 把事件总线的事件转为广播
func (h *Hub) forwardEvents(ctx context.Context, ch <-chan *event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(&eventEnvelope{Type: "event", Event: ev})
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- data:
			default:
				// 广播队列满，丢弃
			}
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 停止中心并断开所有连接，幂等
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		close(h.done)

		h.mu.Lock()
		for client := range h.clients {
			client.conn.Close()
		}
		h.clients = make(map[*wsClient]bool)
		h.mu.Unlock()
		metrics.GetPrometheusMetrics().SetWebSocketConnections(0)
	})
}

// handleWebSocket 单连接读循环
// 每个请求独立协程派发，慢请求不阻塞后续请求的读取与响应
func (h *Hub) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("⚠️ WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	pm := metrics.GetPrometheusMetrics()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case h.unregister <- client:
			case <-h.done:
			}
			break
		}
		pm.RecordWebSocketMessage("in")

		var req worker.Request
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(client, worker.Response{
				Type:  worker.TypeError,
				Error: "malformed request envelope: " + err.Error(),
			})
			continue
		}

		go h.dispatch(client, req)
	}
}

// dispatch 把单个请求交给 worker 池并写回响应
func (h *Hub) dispatch(client *wsClient, req worker.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp, err := h.pool.Do(ctx, req)
	if err != nil {
		resp = worker.Response{
			Type:  worker.TypeError,
			ID:    req.ID,
			Error: err.Error(),
		}
	}
	h.reply(client, resp)
}

// reply 写回单条响应
func (h *Hub) reply(client *wsClient, resp worker.Response) {
	if err := client.writeJSON(resp); err != nil {
		logger.Debug("🔌 响应写入失败: %v", err)
		return
	}
	metrics.GetPrometheusMetrics().RecordWebSocketMessage("out")
}
