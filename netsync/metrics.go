package netsync

import "sync/atomic"

// Metrics 同步客户端运行期指标
type Metrics struct {
	MovesSent       int64 // 成功入队的 move
	SendFailed      int64 // 未连接或队列满
	SnapshotsIn     int64 // 收到的快照
	SnapshotsApply  int64 // 通过节流并被应用
	Throttled       int64 // 因节流被丢弃
	InboxOverflow   int64 // 收件箱满，挤掉最旧的快照
	EntitiesCreated int64
	EntitiesRemoved int64
	Disconnects     int64 // 入站通道被关闭
}

func (m *Metrics) incSent()       { atomic.AddInt64(&m.MovesSent, 1) }
func (m *Metrics) incSendFailed() { atomic.AddInt64(&m.SendFailed, 1) }
func (m *Metrics) incIn()         { atomic.AddInt64(&m.SnapshotsIn, 1) }
func (m *Metrics) incApplied()    { atomic.AddInt64(&m.SnapshotsApply, 1) }
func (m *Metrics) incThrottled()  { atomic.AddInt64(&m.Throttled, 1) }
func (m *Metrics) incOverflow()   { atomic.AddInt64(&m.InboxOverflow, 1) }
func (m *Metrics) incDisconnect() { atomic.AddInt64(&m.Disconnects, 1) }
func (m *Metrics) addCreated(n int) {
	atomic.AddInt64(&m.EntitiesCreated, int64(n))
}
func (m *Metrics) addRemoved(n int) {
	atomic.AddInt64(&m.EntitiesRemoved, int64(n))
}

// Snapshot 返回只读副本
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"moves_sent":       atomic.LoadInt64(&m.MovesSent),
		"send_failed":      atomic.LoadInt64(&m.SendFailed),
		"snapshots_in":     atomic.LoadInt64(&m.SnapshotsIn),
		"snapshots_apply":  atomic.LoadInt64(&m.SnapshotsApply),
		"throttled":        atomic.LoadInt64(&m.Throttled),
		"inbox_overflow":   atomic.LoadInt64(&m.InboxOverflow),
		"entities_created": atomic.LoadInt64(&m.EntitiesCreated),
		"entities_removed": atomic.LoadInt64(&m.EntitiesRemoved),
		"disconnects":      atomic.LoadInt64(&m.Disconnects),
	}
}
