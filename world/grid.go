// Package world 静态瓦片地图：占用网格与碰撞检测，仿真期间只读。
package world

import (
	"errors"
	"fmt"
	"math"
)

// DefaultCellSize 每个瓦片的世界尺寸
const DefaultCellSize = 32.0

var ErrEmptyGrid = errors.New("world: empty grid")

// Rect 轴对齐矩形（左上角 + 宽高）
type Rect struct {
	X, Y, W, H float64
}

// Overlaps 严格相交；仅边缘接触不算重叠
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Grid 二维占用网格，原点 (0,0)，创建后不可变
type Grid struct {
	Cols, Rows int
	CellSize   float64

	width, height float64
	occupied      []bool
}

// NewGrid 由 occupied[row][col] 构造网格；行长不一致时以最长行为准，缺失视为空地
func NewGrid(rows [][]bool, cellSize float64) (*Grid, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyGrid
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("world: invalid cell size %v", cellSize)
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return nil, ErrEmptyGrid
	}
	g := &Grid{
		Cols:     cols,
		Rows:     len(rows),
		CellSize: cellSize,
		occupied: make([]bool, cols*len(rows)),
	}
	for row, r := range rows {
		for col, v := range r {
			g.occupied[row*cols+col] = v
		}
	}
	g.width = float64(cols) * cellSize
	g.height = float64(len(rows)) * cellSize
	return g, nil
}

// ParseGrid '#' 表示墙，其余字符为空地
func ParseGrid(lines []string, cellSize float64) (*Grid, error) {
	rows := make([][]bool, len(lines))
	for i, line := range lines {
		rows[i] = make([]bool, len(line))
		for j, ch := range line {
			rows[i][j] = ch == '#'
		}
	}
	return NewGrid(rows, cellSize)
}

// Width 地图宽度（世界单位）
func (g *Grid) Width() float64 { return g.width }

// Height 地图高度（世界单位）
func (g *Grid) Height() float64 { return g.height }

// WithBounds 覆盖地图尺寸；网格外的区域视为空地
func (g *Grid) WithBounds(width, height float64) *Grid {
	cp := *g
	if width > 0 {
		cp.width = width
	}
	if height > 0 {
		cp.height = height
	}
	return &cp
}

// Occupied 越界格子视为空地
func (g *Grid) Occupied(col, row int) bool {
	if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
		return false
	}
	return g.occupied[row*g.Cols+col]
}

func (g *Grid) CellRect(col, row int) Rect {
	return Rect{
		X: float64(col) * g.CellSize,
		Y: float64(row) * g.CellSize,
		W: g.CellSize,
		H: g.CellSize,
	}
}

// Walls 返回所有被占用格子的矩形
func (g *Grid) Walls() []Rect {
	var out []Rect
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if g.Occupied(col, row) {
				out = append(out, g.CellRect(col, row))
			}
		}
	}
	return out
}

// cellSpan 返回与 [lo, hi) 严格相交的格子下标范围（已裁剪到网格内）
func (g *Grid) cellSpan(lo, hi float64, n int) (int, int) {
	first := int(math.Floor(lo / g.CellSize))
	last := int(math.Ceil(hi/g.CellSize)) - 1
	if first < 0 {
		first = 0
	}
	if last >= n {
		last = n - 1
	}
	return first, last
}
