package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	MovesAccepted     int64 // 被接受的 move 数
	InvalidMoves      int64 // 未通过 schema 校验的 move 数
	DropsSimulated    int64 // 因模拟丢包被丢弃的 move 数
	ChanFullDiscarded int64 // 因通道满被丢弃的 move 数
	Joins             int64
	Leaves            int64
	SnapshotsSent     int64 // 入队成功的快照帧数（按连接计）
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *RoomMetrics) IncInvalid()           { atomic.AddInt64(&m.InvalidMoves, 1) }
func (m *RoomMetrics) IncDropsSimulated()    { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncJoin()              { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeave()             { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) AddSent(n int)         { atomic.AddInt64(&m.SnapshotsSent, int64(n)) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"moves_accepted":      atomic.LoadInt64(&m.MovesAccepted),
		"invalid_moves":       atomic.LoadInt64(&m.InvalidMoves),
		"drops_simulated":     atomic.LoadInt64(&m.DropsSimulated),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"joins":               atomic.LoadInt64(&m.Joins),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"snapshots_sent":      atomic.LoadInt64(&m.SnapshotsSent),
		"avg_tick_ms":         avgMs,
	}
}
