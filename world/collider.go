package world

import (
	"sync"

	"github.com/solarlune/resolv"
)

// Collider 判断实体包围盒是否与任何障碍重叠
type Collider interface {
	Overlaps(box Rect) bool
}

// GridCollider 只扫描包围盒覆盖到的格子，等价于逐个检测所有被占用格子
type GridCollider struct {
	Grid *Grid
}

func (c GridCollider) Overlaps(box Rect) bool {
	if box.W <= 0 || box.H <= 0 {
		return false
	}
	g := c.Grid
	c0, c1 := g.cellSpan(box.X, box.X+box.W, g.Cols)
	r0, r1 := g.cellSpan(box.Y, box.Y+box.H, g.Rows)
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if g.Occupied(col, row) && g.CellRect(col, row).Overlaps(box) {
				return true
			}
		}
	}
	return false
}

const wallTag = "wall"

// WallSpace 把每个被占用格子展开为带 "wall" 标签的 resolv 对象；
// resolv 的空间分桶做粗筛，再用精确 AABB 判定
type WallSpace struct {
	mu    sync.Mutex
	space *resolv.Space
	probe *resolv.Object
	walls int
}

// NewWallSpace 构建 resolv 空间，空间格子与瓦片尺寸一致
func NewWallSpace(g *Grid) *WallSpace {
	cs := int(g.CellSize)
	if cs <= 0 {
		cs = int(DefaultCellSize)
	}
	space := resolv.NewSpace(int(g.Width())+cs, int(g.Height())+cs, cs, cs)
	ws := &WallSpace{space: space}
	for _, r := range g.Walls() {
		space.Add(resolv.NewObject(r.X, r.Y, r.W, r.H, wallTag))
		ws.walls++
	}
	ws.probe = resolv.NewObject(0, 0, 1, 1, "probe")
	space.Add(ws.probe)
	return ws
}

// Len 墙体对象数量
func (w *WallSpace) Len() int { return w.walls }

func (w *WallSpace) Overlaps(box Rect) bool {
	if box.W <= 0 || box.H <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	// resolv 计算覆盖格子时右/下边界减 1，探针放大 1 个单位保证粗筛不漏
	w.probe.X, w.probe.Y = box.X, box.Y
	w.probe.W, w.probe.H = box.W+1, box.H+1
	w.probe.Update()
	coll := w.probe.Check(0, 0, wallTag)
	if coll == nil {
		return false
	}
	for _, o := range coll.Objects {
		if (Rect{X: o.X, Y: o.Y, W: o.W, H: o.H}).Overlaps(box) {
			return true
		}
	}
	return false
}
