package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 提供房间配置的读取与更新（热更新基本规则）
// GET /admin/config?room=room-1  返回当前配置，房间不存在时 404
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段，必要时创建房间
func (h *Handler) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := h.roomID(r)

	type cfg struct {
		BroadcastHz      *int     `json:"broadcastHz,omitempty"`
		ValidateMoves    *bool    `json:"validateMoves,omitempty"`
		SimulateDropProb *float64 `json:"simulateDropProb,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		room, ok := h.Rooms.Room(roomID)
		if !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
		hz, validate, drop := room.BroadcastHz(), room.ValidateMoves(), room.DropProb()
		cur := cfg{
			BroadcastHz:      &hz,
			ValidateMoves:    &validate,
			SimulateDropProb: &drop,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.BroadcastHz != nil && (*body.BroadcastHz <= 0 || *body.BroadcastHz > 240) {
			http.Error(w, "broadcastHz must be in (0,240]", http.StatusBadRequest)
			return
		}
		if body.SimulateDropProb != nil && (*body.SimulateDropProb < 0 || *body.SimulateDropProb > 1) {
			http.Error(w, "simulateDropProb must be in [0,1]", http.StatusBadRequest)
			return
		}
		// 允许在首个连接到来前预先配置房间
		room := h.Rooms.GetOrCreateRoom(roomID)
		if body.BroadcastHz != nil {
			room.SetBroadcastHz(*body.BroadcastHz)
		}
		if body.ValidateMoves != nil {
			room.SetValidateMoves(*body.ValidateMoves)
		}
		if body.SimulateDropProb != nil {
			room.SetDropProb(*body.SimulateDropProb)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		room.log.Infof("config updated: broadcastHz=%d validateMoves=%v drop=%.2f",
			room.BroadcastHz(), room.ValidateMoves(), room.DropProb())
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := h.roomID(r)
	room, ok := h.Rooms.Room(roomID)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	payload := map[string]any{
		"room":    roomID,
		"tick":    room.TickSeq(),
		"metrics": room.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleRooms 列出当前房间
// GET /rooms
func (h *Handler) HandleRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"rooms": h.Rooms.RoomIDs()})
}

// Mux 注册全部路由
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/admin/config", h.HandleAdminConfig)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/rooms", h.HandleRooms)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
