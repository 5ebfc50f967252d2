package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tilesandbox/logger"
	"tilesandbox/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws    *websocket.Conn
	codec protocol.Codec
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

func NewClientConn(ws *websocket.Conn, codec protocol.Codec, queue int) *ClientConn {
	if queue <= 0 {
		queue = 64
	}
	return &ClientConn{
		ws:    ws,
		codec: codec,
		send:  make(chan []byte, queue),
		done:  make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃本帧（防止阻塞 Tick）
		return false
	}
}

// Close 关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	frame := c.codec.FrameType()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(frame, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端 move，校验后注入房间
func (c *ClientConn) readPump(room *Room, playerID PlayerID) {
	defer c.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该玩家
	defer room.RequestLeave(playerID)
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	log := logger.Named("ws").With("room", room.ID, "player", playerID)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Infow("read failed", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		env, err := c.codec.Decode(payload)
		if err != nil {
			room.metrics.IncInvalid()
			continue
		}
		if env.T != protocol.MsgMove {
			continue
		}
		mv, err := c.decodeMove(room, env)
		if err != nil {
			room.metrics.IncInvalid()
			log.Debugw("invalid move", "err", err)
			continue
		}
		room.OnInput(Input{PlayerID: playerID, Move: mv})
	}
}

func (c *ClientConn) decodeMove(room *Room, env protocol.Envelope) (protocol.Move, error) {
	validate := room.ValidateMoves()
	if validate && c.codec.Name() == "json" {
		if err := protocol.ValidateMove(env.P); err != nil {
			return protocol.Move{}, err
		}
		validate = false
	}
	mv, err := protocol.DecodePayload[protocol.Move](c.codec, env)
	if err != nil {
		return mv, err
	}
	if validate {
		if err := protocol.ValidateMoveValue(mv); err != nil {
			return mv, err
		}
	}
	return mv, nil
}

// Handler 中继的 HTTP 入口集合
type Handler struct {
	Rooms       *RoomManager
	DefaultRoom string
	ClientQueue int
	Codec       protocol.Codec // 未带 ?codec= 时使用
	upgrader    websocket.Upgrader
}

// NewHandler allowAnyOrigin 为 true 时接受任意来源（演示环境）
func NewHandler(rooms *RoomManager, defaultRoom string, allowAnyOrigin bool) *Handler {
	if defaultRoom == "" {
		defaultRoom = "room-1"
	}
	h := &Handler{Rooms: rooms, DefaultRoom: defaultRoom, Codec: protocol.JSONCodec{}}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if allowAnyOrigin {
		h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return h
}

func (h *Handler) roomID(r *http.Request) string {
	if id := r.URL.Query().Get("room"); id != "" {
		return id
	}
	return h.DefaultRoom
}

func (h *Handler) codecFor(r *http.Request) (protocol.Codec, error) {
	name := strings.ToLower(r.URL.Query().Get("codec"))
	if name == "" && h.Codec != nil {
		return h.Codec, nil
	}
	return protocol.CodecByName(name)
}

// HandleWS WebSocket 接入：?room=room-1&codec=json|msgpack
// 连接成功后先下发 welcome（分配的 id），再加入房间
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec, err := h.codecFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("upgrade error: %v", err)
		return
	}

	room := h.Rooms.GetOrCreateRoom(h.roomID(r))
	playerID := PlayerID(uuid.NewString())
	client := NewClientConn(ws, codec, h.ClientQueue)

	welcome, err := codec.Encode(protocol.MsgWelcome, protocol.Welcome{ID: string(playerID)})
	if err != nil {
		logger.Log.Errorf("encode welcome: %v", err)
		client.Close()
		return
	}
	client.Enqueue(welcome)
	if !room.RequestJoin(playerID, client) {
		client.Close()
		return
	}

	go client.writePump()
	go client.readPump(room, playerID)
}
