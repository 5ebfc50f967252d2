package game

import (
	"fmt"
	"strings"
	"time"
)

// Facing 动画朝向
type Facing uint8

const (
	FacingDown Facing = iota
	FacingUp
	FacingLeft
	FacingRight
)

var facingNames = [...]string{"down", "up", "left", "right"}

func (f Facing) String() string {
	if int(f) < len(facingNames) {
		return facingNames[f]
	}
	return fmt.Sprintf("facing(%d)", uint8(f))
}

const idleSuffix = "-id"

// Anim 离散动画状态：朝向 + 是否待机
type Anim struct {
	Facing Facing
	Idle   bool
}

// InitialAnim 朝下待机
var InitialAnim = Anim{Facing: FacingDown, Idle: true}

// String 精灵动画名：down / down-id 等
func (a Anim) String() string {
	if a.Idle {
		return a.Facing.String() + idleSuffix
	}
	return a.Facing.String()
}

// ParseAnim String 的逆操作
func ParseAnim(s string) (Anim, error) {
	name, idle := strings.CutSuffix(s, idleSuffix)
	for i, n := range facingNames {
		if n == name {
			return Anim{Facing: Facing(i), Idle: idle}, nil
		}
	}
	return Anim{}, fmt.Errorf("game: unknown animation %q", s)
}

// ToIdle 当前朝向的待机版本
func (a Anim) ToIdle() Anim { return Anim{Facing: a.Facing, Idle: true} }

// NextFromKeys 有方向键按下 → 对应移动状态（left、right、up、down 顺序，最后一个命中的键生效）；
// 无按键 → 当前朝向的待机。changed 为 false 时调用方不应重启动画
func NextFromKeys(cur Anim, k Keys) (next Anim, changed bool) {
	next = cur
	moving := false
	for _, step := range [...]struct {
		down   bool
		facing Facing
	}{
		{k.Left, FacingLeft},
		{k.Right, FacingRight},
		{k.Up, FacingUp},
		{k.Down, FacingDown},
	} {
		if step.down {
			next = Anim{Facing: step.facing}
			moving = true
		}
	}
	if !moving {
		next = cur.ToIdle()
	}
	return next, next != cur
}

// NextFromDirection 远端实体按快照方向驱动，规则与 NextFromKeys 相同
func NextFromDirection(cur Anim, dir Vec2) (Anim, bool) {
	return NextFromKeys(cur, Keys{
		Left:  dir.X < 0,
		Right: dir.X > 0,
		Up:    dir.Y < 0,
		Down:  dir.Y > 0,
	})
}

// Clip 精灵表中的帧区间（3 列 x 4 行）
type Clip struct {
	From, To int
	Loop     bool
}

var clips = map[Anim]Clip{
	{FacingDown, true}:   {From: 0, To: 0},
	{FacingUp, true}:     {From: 9, To: 9},
	{FacingLeft, true}:   {From: 4, To: 4},
	{FacingRight, true}:  {From: 6, To: 6},
	{FacingLeft, false}:  {From: 3, To: 5, Loop: true},
	{FacingRight, false}: {From: 6, To: 8, Loop: true},
	{FacingUp, false}:    {From: 9, To: 11, Loop: true},
	{FacingDown, false}:  {From: 0, To: 2, Loop: true},
}

// ClipOf 待机为单帧，移动为循环步行
func ClipOf(a Anim) Clip { return clips[a] }

// DefaultAnimFPS 动画帧率
const DefaultAnimFPS = 10

// Animator 记录当前动画与已播放时长；仅在状态变化时重置
type Animator struct {
	FPS     int
	cur     Anim
	elapsed time.Duration
}

func NewAnimator() *Animator {
	return &Animator{FPS: DefaultAnimFPS, cur: InitialAnim}
}

func (a *Animator) Current() Anim { return a.cur }

// Play 切换到新状态；与当前相同时不重启
func (a *Animator) Play(next Anim) bool {
	if next == a.cur {
		return false
	}
	a.cur = next
	a.elapsed = 0
	return true
}

// Advance 推进播放时间
func (a *Animator) Advance(dt time.Duration) {
	a.elapsed += dt
}

// Frame 当前应显示的精灵帧下标
func (a *Animator) Frame() int {
	c := ClipOf(a.cur)
	n := c.To - c.From + 1
	if !c.Loop || n <= 1 || a.FPS <= 0 {
		return c.From
	}
	step := int(a.elapsed * time.Duration(a.FPS) / time.Second)
	return c.From + step%n
}
