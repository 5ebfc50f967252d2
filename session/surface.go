// Package session 单线程 Tick 循环：串起本地移动、动画、相机与网络同步。
package session

import (
	"sync"
	"time"

	"tilesandbox/game"
	"tilesandbox/netsync"
)

// Key 方向键
type Key int

const (
	KeyLeft Key = iota
	KeyRight
	KeyUp
	KeyDown
)

// Surface 渲染层（外部协作者）需要提供的能力
type Surface interface {
	netsync.Spawner
	KeyDown(Key) bool
	Viewport() (w, h float64)
	SetCamera(game.Camera)
}

// ReadKeys 读取四个方向键
func ReadKeys(s Surface) game.Keys {
	return game.Keys{
		Left:  s.KeyDown(KeyLeft),
		Right: s.KeyDown(KeyRight),
		Up:    s.KeyDown(KeyUp),
		Down:  s.KeyDown(KeyDown),
	}
}

// Sprite 内存中的渲染对象
type Sprite struct {
	ID        string
	pos       game.Vec2
	animator  *game.Animator
	destroyed bool
}

func (s *Sprite) Pos() game.Vec2     { return s.pos }
func (s *Sprite) SetPos(p game.Vec2) { s.pos = p }
func (s *Sprite) Anim() game.Anim    { return s.animator.Current() }
func (s *Sprite) Play(a game.Anim)   { s.animator.Play(a) }
func (s *Sprite) Destroy()           { s.destroyed = true }

// Frame 当前精灵帧
func (s *Sprite) Frame() int { return s.animator.Frame() }

func (s *Sprite) Destroyed() bool { return s.destroyed }

// Headless 无界面的 Surface 实现，供机器人与测试使用
type Headless struct {
	mu      sync.Mutex
	keys    map[Key]bool
	viewW   float64
	viewH   float64
	camera  game.Camera
	sprites map[string]*Sprite
}

func NewHeadless(viewW, viewH float64) *Headless {
	return &Headless{
		keys:    make(map[Key]bool),
		viewW:   viewW,
		viewH:   viewH,
		sprites: make(map[string]*Sprite),
	}
}

func (h *Headless) Spawn(id string, pos game.Vec2) netsync.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &Sprite{ID: id, pos: pos, animator: game.NewAnimator()}
	h.sprites[id] = s
	return s
}

// Press 设置按键状态（脚本或测试驱动）
func (h *Headless) Press(k Key, down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys[k] = down
}

// SetKeys 一次性设置四个方向键
func (h *Headless) SetKeys(k game.Keys) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys[KeyLeft] = k.Left
	h.keys[KeyRight] = k.Right
	h.keys[KeyUp] = k.Up
	h.keys[KeyDown] = k.Down
}

func (h *Headless) KeyDown(k Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.keys[k]
}

func (h *Headless) Viewport() (float64, float64) { return h.viewW, h.viewH }

func (h *Headless) SetCamera(c game.Camera) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.camera = c
}

func (h *Headless) Camera() game.Camera {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camera
}

// Sprite 按 id 取渲染对象（包含已销毁的）
func (h *Headless) Sprite(id string) (*Sprite, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sprites[id]
	return s, ok
}

// Live 未销毁的对象数
func (h *Headless) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.sprites {
		if !s.destroyed {
			n++
		}
	}
	return n
}

// Advance 推进所有未销毁对象的动画时间
func (h *Headless) Advance(dt time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sprites {
		if !s.destroyed {
			s.animator.Advance(dt)
		}
	}
}
