// Package protocol 中继 ↔ 客户端的线上消息与编解码。
package protocol

import "tilesandbox/game"

const (
	MsgMove          = "move"          // 客户端 → 中继，每帧一次
	MsgUpdatePlayers = "updatePlayers" // 中继 → 客户端，全量快照
	MsgWelcome       = "welcome"       // 中继 → 客户端，连接后下发分配的 id
)

// Move 本地实体每帧上报的状态
type Move struct {
	X         float64   `json:"x" msgpack:"x"`
	Y         float64   `json:"y" msgpack:"y"`
	Direction game.Vec2 `json:"direction" msgpack:"direction"`
}

// PlayerData 快照中单个实体的状态
type PlayerData struct {
	ID        string    `json:"id" msgpack:"id"`
	X         float64   `json:"x" msgpack:"x"`
	Y         float64   `json:"y" msgpack:"y"`
	Direction game.Vec2 `json:"direction" msgpack:"direction"`
}

func (p PlayerData) Pos() game.Vec2 { return game.Vec2{X: p.X, Y: p.Y} }

// Snapshot 某一时刻全部已连接实体的权威状态；从不是增量
type Snapshot map[string]PlayerData

// Welcome 中继分配给本连接的实体 id
type Welcome struct {
	ID string `json:"id" msgpack:"id"`
}

// MoveFromEntity 由本地实体生成上报消息
func MoveFromEntity(e *game.Entity) Move {
	return Move{X: e.Pos.X, Y: e.Pos.Y, Direction: e.Dir}
}
