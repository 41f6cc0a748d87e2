package service

import (
	"sync"
	"time"
)

// StalenessGate 触发事件去重器 - 防止重放已处理过的聊天消息
// 只接受严格晚于水位线的事件，相同时间戳视为重复
type StalenessGate struct {
	mu sync.Mutex

	watermark time.Time
	seen      bool // false 时水位线等价于最小可表示时间
}

// NewStalenessGate 创建去重器
func NewStalenessGate() *StalenessGate {
	return &StalenessGate{}
}

// Accept 检查事件时间并在接受时推进水位线
func (g *StalenessGate) Accept(eventTime time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen && !eventTime.After(g.watermark) {
		return false
	}
	g.watermark = eventTime
	g.seen = true
	return true
}

// Watermark 返回最近一次接受的事件时间
func (g *StalenessGate) Watermark() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watermark, g.seen
}
