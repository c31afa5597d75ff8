// Package worker 计算卸载传输协议
// 重计算（图求值、成交量分布）通过 JSON 信封转发给后台 worker，
// 请求与响应以 id 关联，完成顺序不做保证，调用方按 id 收取。
package worker

import (
	"encoding/json"
	"errors"

	"quantdesk/engine"
	"quantdesk/indicators"
)

// RequestType 请求类型
type RequestType string

const (
	OpEvaluateIndicator      RequestType = "evaluateIndicator"
	OpCalculateVolumeProfile RequestType = "calculateVolumeProfile"
	OpBatchEvaluate          RequestType = "batchEvaluate"
	OpClearCache             RequestType = "clearCache"
)

// ResponseType 响应类型
type ResponseType string

const (
	TypeResult ResponseType = "result"
	TypeError  ResponseType = "error"
)

// Request 请求信封
type Request struct {
	Type    RequestType     `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response 响应信封，result 与 error 二选一
type Response struct {
	Type   ResponseType    `json:"type"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// EvaluatePayload evaluateIndicator 请求载荷
type EvaluatePayload struct {
	Indicator engine.CustomIndicator `json:"indicator"`
	Candles   []indicators.Candle    `json:"candles"`
}

// ProfilePayload calculateVolumeProfile 请求载荷
type ProfilePayload struct {
	Candles   []indicators.Candle `json:"candles"`
	NumLevels int                 `json:"numLevels"`
}

// BatchPayload batchEvaluate 请求载荷
type BatchPayload struct {
	Indicators []engine.CustomIndicator `json:"indicators"`
	Candles    []indicators.Candle      `json:"candles"`
}

// ClearCacheResult clearCache 响应载荷
type ClearCacheResult struct {
	Cleared bool `json:"cleared"`
}

var (
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrPoolClosed         = errors.New("worker pool closed")
	ErrDuplicateRequestID = errors.New("duplicate request id")
)

// resultResponse 构造成功响应
func resultResponse(id string, result interface{}) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, err)
	}
	return Response{Type: TypeResult, ID: id, Result: data}
}

// errorResponse 构造错误响应
func errorResponse(id string, err error) Response {
	return Response{Type: TypeError, ID: id, Error: err.Error()}
}
