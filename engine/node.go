// Package engine 自定义指标图求值引擎
// 用户以节点图（常量/内置指标/算术/条件）描述指标，
// 引擎在编译期校验图结构（缺失引用、入参不足、未知指标、环），
// 再对 K 线序列逐索引求值，并按（指标 id、序列指纹）记忆化
package engine

import (
	"errors"
	"fmt"
)

// NodeType 节点类型
type NodeType string

const (
	NodeConstant  NodeType = "constant"  // 常量广播
	NodeIndicator NodeType = "indicator" // 内置指标
	NodeOperator  NodeType = "operator"  // 算术运算
	NodeCondition NodeType = "condition" // 条件比较，输出 1/0
)

// IndicatorKind 引擎内置的简化指标
type IndicatorKind string

const (
	KindSMA    IndicatorKind = "sma"
	KindEMA    IndicatorKind = "ema"
	KindRSI    IndicatorKind = "rsi"
	KindVolume IndicatorKind = "volume"
)

// 运算符与条件符号
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpGT  = ">"
	OpLT  = "<"
	OpEQ  = "=="
	OpAnd = "&&"
	OpOr  = "||"
)

// IndicatorNode 指标图节点
type IndicatorNode struct {
	ID        string             `json:"id"`
	Type      NodeType           `json:"type"`
	Value     float64            `json:"value,omitempty"`
	Indicator IndicatorKind      `json:"indicator,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
	Operator  string             `json:"operator,omitempty"`
	Inputs    []string           `json:"inputs,omitempty"`
}

// CustomIndicator 用户自定义指标，节点图加输出节点
// 引擎不修改传入的值对象
type CustomIndicator struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Nodes        []IndicatorNode `json:"nodes"`
	OutputNodeID string          `json:"outputNodeId"`
}

// IndicatorValue 求值结果点，时间戳与输入 K 线一一对应
type IndicatorValue struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// 图结构错误，均在编译期抛出，属于数据缺陷而非瞬时故障，不可重试
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrTooFewInputs     = errors.New("operator node requires at least 2 inputs")
	ErrUnknownIndicator = errors.New("unknown indicator kind")
	ErrUnknownOperator  = errors.New("unknown operator")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrGraphCycle       = errors.New("indicator graph contains a cycle")
)

// nodeError 携带节点 id 的错误包装
func nodeError(err error, nodeID string) error {
	return fmt.Errorf("node %q: %w", nodeID, err)
}
