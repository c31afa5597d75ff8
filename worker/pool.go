package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"quantdesk/engine"
	"quantdesk/logger"
	"quantdesk/metrics"
)

// Pool worker 池
// N 个 worker 共享一条请求队列，各自独占一个 Engine。
// 响应按请求 id 路由回调用方；调用方取消后到达的晚到响应被丢弃
type Pool struct {
	requests chan Request
	workers  []*Worker

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool

	// 关闭信号。requests 通道永不 close：发送方（Do）可能正阻塞在
	// 入队上，对着它 close 会让发送方 panic
	done chan struct{}

	wg       sync.WaitGroup
	seq      atomic.Uint64
	inflight atomic.Int64
	stats    *metrics.StatsCollector
}

// NewPool 创建并启动 worker 池
// size 为 worker 数，queueSize 为请求队列容量；engineOpts 透传给每个 Engine
func NewPool(size, queueSize int, engineOpts ...engine.Option) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}

	p := &Pool{
		requests: make(chan Request, queueSize),
		pending:  make(map[string]chan Response),
		done:     make(chan struct{}),
		stats:    metrics.NewStatsCollector(),
	}

	// 引擎缓存命中情况回流到池统计，/api/status 直接读
	opts := make([]engine.Option, 0, len(engineOpts)+1)
	opts = append(opts, engineOpts...)
	opts = append(opts, engine.WithCacheObserver(p.stats))

	p.workers = make([]*Worker, size)
	for i := 0; i < size; i++ {
		w := NewWorker(i, engine.New(opts...))
		p.workers[i] = w
		p.wg.Add(1)
		go p.runWorker(w)
	}

	logger.Info("⚙️ worker 池已启动: %d 个 worker, 队列容量 %d", size, queueSize)
	return p
}

// runWorker 单个 worker 的处理循环
// 收到关闭信号后排空已排队的请求再退出
func (p *Pool) runWorker(w *Worker) {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			p.process(w, req)
		case <-p.done:
			for {
				select {
				case req := <-p.requests:
					p.process(w, req)
				default:
					return
				}
			}
		}
	}
}

// process 处理单条请求并更新运行指标
func (p *Pool) process(w *Worker, req Request) {
	pm := metrics.GetPrometheusMetrics()
	pm.SetWorkerInflight(int(p.inflight.Add(1)))
	pm.SetWorkerQueueDepth(len(p.requests))

	resp := w.Handle(req)
	p.deliver(resp)

	pm.SetWorkerInflight(int(p.inflight.Add(-1)))
	pm.SetCacheEntries(p.cacheEntries())
}

// cacheEntries 全部 worker 的一级缓存条目总数
func (p *Pool) cacheEntries() int {
	total := 0
	for _, w := range p.workers {
		total += w.engine.CacheSize()
	}
	return total
}

// deliver 把响应路由给等待方；无人等待（已取消/超时）则丢弃
func (p *Pool) deliver(resp Response) {
	p.mu.Lock()
	ch, ok := p.pending[resp.ID]
	if ok {
		delete(p.pending, resp.ID)
	}
	p.mu.Unlock()

	if !ok {
		logger.Debug("🗑️ 丢弃晚到响应: %s", resp.ID)
		return
	}
	ch <- resp
}

// Do 提交原始请求信封并等待对应 id 的响应
// ctx 取消或超时后立即返回，之后到达的响应被丢弃；
// 池关闭后阻塞中的入队立即返回 ErrPoolClosed，不会 panic
func (p *Pool) Do(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	ch := make(chan Response, 1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Response{}, ErrPoolClosed
	}
	if _, exists := p.pending[req.ID]; exists {
		p.mu.Unlock()
		return Response{}, fmt.Errorf("%w: %s", ErrDuplicateRequestID, req.ID)
	}
	p.pending[req.ID] = ch
	p.mu.Unlock()

	select {
	case p.requests <- req:
		metrics.GetPrometheusMetrics().SetWorkerQueueDepth(len(p.requests))
	case <-p.done:
		p.unregister(req.ID)
		metrics.RecordWorkerRequest(string(req.Type), "closed", time.Since(start))
		return Response{}, ErrPoolClosed
	case <-ctx.Done():
		p.unregister(req.ID)
		metrics.RecordWorkerRequest(string(req.Type), "timeout", time.Since(start))
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-ch:
		status := "ok"
		if resp.Type == TypeError {
			status = "error"
		}
		metrics.RecordWorkerRequest(string(req.Type), status, time.Since(start))
		p.stats.RecordEvaluation(time.Since(start))
		return resp, nil
	case <-ctx.Done():
		p.unregister(req.ID)
		metrics.RecordWorkerRequest(string(req.Type), "timeout", time.Since(start))
		return Response{}, ctx.Err()
	}
}

// Call 类型化调用：编码载荷、生成 id、等待结果
// 返回错误响应时转为 error
func (p *Pool) Call(ctx context.Context, typ RequestType, payload interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		raw = data
	}

	req := Request{
		Type:    typ,
		ID:      p.nextID(),
		Payload: raw,
	}

	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Type == TypeError {
		return nil, fmt.Errorf("worker: %s", resp.Error)
	}
	return resp.Result, nil
}

// unregister 撤销等待中的请求
func (p *Pool) unregister(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// nextID 进程内唯一请求 id
func (p *Pool) nextID() string {
	return fmt.Sprintf("req-%d", p.seq.Add(1))
}

// QueueDepth 当前排队请求数
func (p *Pool) QueueDepth() int {
	return len(p.requests)
}

// Stats 运行统计快照
func (p *Pool) Stats() metrics.Stats {
	return p.stats.Snapshot()
}

// Close 关闭池，等待在途与已排队的请求处理完毕
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	logger.Info("⚙️ worker 池已关闭")
}
