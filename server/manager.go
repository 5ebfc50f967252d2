package server

import (
	"sort"
	"sync"
)

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	opts  RoomOptions
}

// NewRoomManager 新房间使用同一组默认参数
func NewRoomManager(opts RoomOptions) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), opts: opts}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.opts)
		m.rooms[id] = r
		r.StartTicker()
	}
	return r
}

// Room 只查找，不创建
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 排序后的房间 id
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Shutdown 停止所有房间
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Stop()
		delete(m.rooms, id)
	}
}
