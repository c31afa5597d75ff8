// Package storage 持久化层
// GORM 存取指标预设、预警规则与回测报告，支持 SQLite/PostgreSQL/MySQL。
package storage

import (
	"time"
)

// IndicatorPreset 指标预设
// Graph 字段存放 CustomIndicator 的 JSON 序列化
type IndicatorPreset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Graph     string    `gorm:"type:text;not null" json:"graph"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertRule 预警规则
type AlertRule struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Symbol    string  `gorm:"size:32;index;not null" json:"symbol"`
	Indicator string  `gorm:"size:64;not null" json:"indicator"` // 指标预设名或内置指标类型
	Condition string  `gorm:"size:16;not null" json:"condition"` // above, below, cross_up, cross_down
	Threshold float64 `gorm:"not null" json:"threshold"`
	Enabled   bool    `gorm:"default:true" json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertRecord 预警触发记录
type AlertRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RuleID    uint      `gorm:"index;not null" json:"rule_id"`
	Symbol    string    `gorm:"size:32;index" json:"symbol"`
	Value     float64   `json:"value"`     // 触发时的指标值
	Threshold float64   `json:"threshold"` // 触发时的规则阈值
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BacktestReport 回测报告
// Result 字段存放 backtest.Result 的 JSON 序列化
type BacktestReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Indicator string    `gorm:"size:128;index" json:"indicator"`
	Symbol    string    `gorm:"size:32;index" json:"symbol"`
	Threshold float64   `json:"threshold"`
	Result    string    `gorm:"type:text;not null" json:"result"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
