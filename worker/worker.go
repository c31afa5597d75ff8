package worker

import (
	"encoding/json"
	"fmt"

	"quantdesk/engine"
	"quantdesk/logger"
	"quantdesk/profile"
)

// Worker 单个计算单元
// 每个 Worker 独占一个 Engine（缓存隔离），不与其他 worker 共享可变状态
type Worker struct {
	id     int
	engine *engine.Engine
}

// NewWorker 创建计算单元
func NewWorker(id int, e *engine.Engine) *Worker {
	return &Worker{id: id, engine: e}
}

// Handle 处理一条请求
// 任何错误（含 panic）都转成 error 响应，坏请求不会终结 worker
func (w *Worker) Handle(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("💥 worker %d panic: %v (请求 %s)", w.id, r, req.ID)
			resp = errorResponse(req.ID, fmt.Errorf("internal error: %v", r))
		}
	}()

	switch req.Type {
	case OpEvaluateIndicator:
		return w.handleEvaluate(req)
	case OpCalculateVolumeProfile:
		return w.handleProfile(req)
	case OpBatchEvaluate:
		return w.handleBatch(req)
	case OpClearCache:
		w.engine.ClearCache()
		return resultResponse(req.ID, ClearCacheResult{Cleared: true})
	default:
		return errorResponse(req.ID, fmt.Errorf("%w: %s", ErrUnknownRequestType, req.Type))
	}
}

func (w *Worker) handleEvaluate(req Request) Response {
	var payload EvaluatePayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return errorResponse(req.ID, fmt.Errorf("decode payload: %w", err))
	}

	values, err := w.engine.Evaluate(&payload.Indicator, payload.Candles)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, values)
}

func (w *Worker) handleProfile(req Request) Response {
	var payload ProfilePayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return errorResponse(req.ID, fmt.Errorf("decode payload: %w", err))
	}

	return resultResponse(req.ID, profile.Calculate(payload.Candles, payload.NumLevels))
}

func (w *Worker) handleBatch(req Request) Response {
	var payload BatchPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return errorResponse(req.ID, fmt.Errorf("decode payload: %w", err))
	}

	results, err := w.engine.BatchEvaluate(payload.Indicators, payload.Candles)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, results)
}
