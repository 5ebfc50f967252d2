package game

import (
	"math"

	"tilesandbox/world"
)

// Diagonal 斜向移动的缩放系数，保证斜向速度等于轴向速度
var Diagonal = 1 / math.Sqrt2

// Controller 本地移动控制器：方向 → 候选位置 → 边界裁剪 → 碰撞拒绝
type Controller struct {
	World  world.Collider
	MapW   float64
	MapH   float64
	Width  float64 // 实体渲染宽度
	Height float64 // 实体渲染高度
}

// StepResult 单次 Tick 的移动结果
type StepResult struct {
	Intent  Vec2 // 按键得到的方向（碰撞前）
	Blocked bool // 候选位置与障碍重叠，本帧被拒绝
	Moved   bool
}

// DirectionFromKeys 每帧从零重新计算方向，无惯性；
// 检查顺序 left、right、up、down，同一轴上后检查的键覆盖先检查的
func DirectionFromKeys(k Keys) Vec2 {
	var d Vec2
	if k.Left {
		d.X = -1
	}
	if k.Right {
		d.X = 1
	}
	if k.Up {
		d.Y = -1
	}
	if k.Down {
		d.Y = 1
	}
	return d
}

// Displacement direction * speed * factor * dt，斜向 factor = 1/√2
func Displacement(dir Vec2, speed, dt float64) Vec2 {
	factor := 1.0
	if dir.X != 0 && dir.Y != 0 {
		factor = Diagonal
	}
	return dir.Scale(speed * factor * dt)
}

// ClampToMap 位置裁剪到地图内缩半个实体尺寸的范围内
func (c *Controller) ClampToMap(p Vec2) Vec2 {
	hw, hh := c.Width/2, c.Height/2
	return Vec2{
		X: clamp(p.X, hw, c.MapW-hw),
		Y: clamp(p.Y, hh, c.MapH-hh),
	}
}

// Box 以实体位置为中心的包围盒
func (c *Controller) Box(p Vec2) world.Rect {
	return world.Rect{
		X: p.X - c.Width/2,
		Y: p.Y - c.Height/2,
		W: c.Width,
		H: c.Height,
	}
}

// Step 推进本地实体一帧。候选位置与任一障碍重叠时位置保持不变、方向清零（不沿墙滑动）
func (c *Controller) Step(e *Entity, keys Keys, dt float64) StepResult {
	intent := DirectionFromKeys(keys)
	e.Dir = intent
	res := StepResult{Intent: intent}

	candidate := c.ClampToMap(e.Pos.Add(Displacement(intent, e.Speed, dt)))
	if c.World != nil && c.World.Overlaps(c.Box(candidate)) {
		e.Dir = Vec2{}
		res.Blocked = true
		return res
	}
	res.Moved = candidate != e.Pos
	e.Pos = candidate
	return res
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
