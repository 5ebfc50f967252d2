package server

import (
	"tilesandbox/game"
	"tilesandbox/protocol"
)

// PlayerID 中继分配的连接标识，重连后会得到新的 id
type PlayerID string

// Player 房间内的一个连接及其最近一次上报的状态（中继不做模拟）
type Player struct {
	ID     PlayerID
	X      float64
	Y      float64
	Dir    game.Vec2
	HasPos bool // 收到第一条 move 之前不出现在快照中

	Conn *ClientConn // 网络连接的发送端（写协程）
}

// State 快照中的条目
func (p *Player) State() protocol.PlayerData {
	return protocol.PlayerData{ID: string(p.ID), X: p.X, Y: p.Y, Direction: p.Dir}
}
