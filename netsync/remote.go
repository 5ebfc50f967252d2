// Package netsync 网络同步客户端：每帧上报本地状态，按节流应用全量快照并对账远端实体集合。
package netsync

import (
	"sort"

	"tilesandbox/game"
	"tilesandbox/protocol"
)

// Handle 渲染层中一个可定位、可播放动画的对象
type Handle interface {
	Pos() game.Vec2
	SetPos(game.Vec2)
	Anim() game.Anim
	Play(game.Anim)
	Destroy()
}

// Spawner 在渲染层创建对象
type Spawner interface {
	Spawn(id string, pos game.Vec2) Handle
}

// RemoteSet 以实体 id 为键的远端实体集合；只由快照对账显式增删改
type RemoteSet struct {
	spawner Spawner
	items   map[string]Handle
}

func NewRemoteSet(sp Spawner) *RemoteSet {
	return &RemoteSet{spawner: sp, items: make(map[string]Handle)}
}

// Create 在快照位置生成渲染对象
func (s *RemoteSet) Create(id string, pd protocol.PlayerData) Handle {
	h := s.spawner.Spawn(id, pd.Pos())
	s.items[id] = h
	s.drive(h, pd.Direction)
	return h
}

// Update 直接覆盖位置（不插值），并按方向驱动动画状态机
func (s *RemoteSet) Update(id string, pd protocol.PlayerData) bool {
	h, ok := s.items[id]
	if !ok {
		return false
	}
	h.SetPos(pd.Pos())
	s.drive(h, pd.Direction)
	return true
}

// Destroy 销毁渲染对象并移除条目
func (s *RemoteSet) Destroy(id string) bool {
	h, ok := s.items[id]
	if !ok {
		return false
	}
	h.Destroy()
	delete(s.items, id)
	return true
}

func (s *RemoteSet) drive(h Handle, dir game.Vec2) {
	if next, changed := game.NextFromDirection(h.Anim(), dir); changed {
		h.Play(next)
	}
}

func (s *RemoteSet) Get(id string) (Handle, bool) {
	h, ok := s.items[id]
	return h, ok
}

func (s *RemoteSet) Len() int { return len(s.items) }

// IDs 排序后的 id 列表
func (s *RemoteSet) IDs() []string {
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear 会话结束时销毁全部远端实体
func (s *RemoteSet) Clear() {
	for id := range s.items {
		s.Destroy(id)
	}
}
