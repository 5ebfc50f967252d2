// Package game 本地移动、动画状态机与相机裁剪；纯逻辑，不依赖网络与渲染。
package game

import "math"

// Vec2 二维向量（世界坐标）
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Entity 本地或远端实体；远端实体只由快照重建，从不本地模拟
type Entity struct {
	ID    string
	Pos   Vec2
	Dir   Vec2    // 各分量 ∈ {-1,0,1}
	Speed float64 // 单位/秒，仅本地实体使用
	Anim  Anim
}

// NewEntity 初始动画为朝下待机
func NewEntity(id string, pos Vec2, speed float64) *Entity {
	return &Entity{ID: id, Pos: pos, Speed: speed, Anim: InitialAnim}
}

// Keys 方向键状态，四个键互相独立
type Keys struct {
	Up, Down, Left, Right bool
}

func (k Keys) Any() bool { return k.Up || k.Down || k.Left || k.Right }
