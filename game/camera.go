package game

// Camera 由本地实体位置派生，不单独修改
type Camera struct {
	Pos   Vec2
	Scale float64
}

// ClampCamera 相机中心限制在 [半视口, 地图-半视口]；地图小于视口时退化为一点
func ClampCamera(pos Vec2, viewW, viewH, mapW, mapH float64) Vec2 {
	return Vec2{
		X: clamp(pos.X, viewW/2, mapW-viewW/2),
		Y: clamp(pos.Y, viewH/2, mapH-viewH/2),
	}
}
