package metrics

import (
	"sync"
	"time"
)

// Stats 求值运行统计快照
type Stats struct {
	Evaluations   int64         `json:"evaluations"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	CacheHitRate  float64       `json:"cache_hit_rate"`
	LastDuration  time.Duration `json:"last_duration_ns"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	LastUpdate    time.Time     `json:"last_update"`
}

// StatsCollector 进程内统计收集器，供状态接口展示
// Prometheus 指标面向外部抓取，这里保留一份可直接查询的快照
type StatsCollector struct {
	mu    sync.RWMutex
	stats Stats
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: Stats{LastUpdate: time.Now()},
	}
}

// RecordEvaluation 记录一次求值
func (sc *StatsCollector) RecordEvaluation(duration time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.Evaluations++
	sc.stats.LastDuration = duration
	sc.stats.TotalDuration += duration
	sc.stats.LastUpdate = time.Now()
}

// RecordCacheResult 记录缓存命中情况
func (sc *StatsCollector) RecordCacheResult(hit bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if hit {
		sc.stats.CacheHits++
	} else {
		sc.stats.CacheMisses++
	}
	sc.stats.LastUpdate = time.Now()
}

// Snapshot 获取统计快照
func (sc *StatsCollector) Snapshot() Stats {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	s := sc.stats
	total := s.CacheHits + s.CacheMisses
	if total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total)
	}
	return s
}
