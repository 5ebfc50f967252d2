package server

import "tilesandbox/protocol"

// Input 客户端上报的 move，由房间在 Tick 中覆盖到玩家状态
type Input struct {
	PlayerID PlayerID
	Move     protocol.Move
}

// join 新连接加入房间的请求，由 Tick 协程处理
type join struct {
	ID   PlayerID
	Conn *ClientConn
}
