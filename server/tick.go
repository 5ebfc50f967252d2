package server

import (
	"sync/atomic"
	"time"
)

const (
	// BroadcastHz 默认广播频率（20 次/秒）
	BroadcastHz = 20
)

func tickInterval(hz int) time.Duration {
	return time.Second / time.Duration(hz)
}

// StartTicker 启动房间的 Tick 循环（单线程推进）
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval(r.BroadcastHz()))
		defer ticker.Stop()
		for {
			select {
			case <-r.quit:
				r.closeAll()
				return
			case <-r.hzChanged:
				ticker.Reset(tickInterval(r.BroadcastHz()))
			case <-ticker.C:
				// 核心循环：处理加入/离开/move → 广播全量快照
				start := time.Now()
				r.ProcessInputs()
				r.Broadcast()
				atomic.AddInt64(&r.tickSeq, 1)
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}

// TickSeq 已执行的 Tick 数
func (r *Room) TickSeq() int64 { return atomic.LoadInt64(&r.tickSeq) }

// Stop 停止 Tick；连接由 Tick 协程在退出前关闭
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *Room) closeAll() {
	for id, p := range r.Players {
		if p.Conn != nil {
			p.Conn.Close()
		}
		delete(r.Players, id)
	}
}
