package session

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tilesandbox/game"
	"tilesandbox/logger"
	"tilesandbox/netsync"
	"tilesandbox/world"
)

// Options 本地实体参数
type Options struct {
	Speed       float64
	Width       float64
	Height      float64
	CameraScale float64
	Spawn       *game.Vec2 // 为空时出生在视口中心
}

// Status 每帧结束时的只读摘要，可在其它协程读取
type Status struct {
	Tick    int64
	Pos     game.Vec2
	Anim    string
	Remotes int
	Blocked bool
	Offline bool
}

// Session 一个客户端会话：本地实体 + 远端实体集合 + 中继连接
type Session struct {
	surface Surface
	grid    *world.Grid
	ctrl    *game.Controller
	net     *netsync.Client

	local  *game.Entity
	sprite netsync.Handle
	scale  float64

	ticks   int64
	status  atomic.Value // Status
	closed  atomic.Bool
	offline bool
	log     *zap.SugaredLogger
}

// New 创建会话；collider 为空时按网格精确检测
func New(surface Surface, grid *world.Grid, collider world.Collider, client *netsync.Client, opts Options) *Session {
	if collider == nil {
		collider = world.GridCollider{Grid: grid}
	}
	if opts.CameraScale == 0 {
		opts.CameraScale = 1
	}
	ctrl := &game.Controller{
		World:  collider,
		MapW:   grid.Width(),
		MapH:   grid.Height(),
		Width:  opts.Width,
		Height: opts.Height,
	}

	spawn := opts.Spawn
	if spawn == nil {
		vw, vh := surface.Viewport()
		spawn = &game.Vec2{X: vw / 2, Y: vh / 2}
	}
	id := client.LocalID()
	if id == "" {
		id = "local"
	}
	local := game.NewEntity(id, ctrl.ClampToMap(*spawn), opts.Speed)
	s := &Session{
		surface: surface,
		grid:    grid,
		ctrl:    ctrl,
		net:     client,
		local:   local,
		scale:   opts.CameraScale,
		log:     logger.Named("session").With("id", id),
	}
	if collider.Overlaps(ctrl.Box(local.Pos)) {
		s.log.Warnw("spawn overlaps a wall; entity cannot move until relocated", "pos", local.Pos)
	}
	s.sprite = surface.Spawn(id, local.Pos)
	surface.SetCamera(s.camera())
	return s
}

func (s *Session) Local() *game.Entity     { return s.local }
func (s *Session) Client() *netsync.Client { return s.net }
func (s *Session) Ticks() int64            { return atomic.LoadInt64(&s.ticks) }

// Status 最近一帧的摘要
func (s *Session) Status() Status {
	st, _ := s.status.Load().(Status)
	return st
}

func (s *Session) camera() game.Camera {
	vw, vh := s.surface.Viewport()
	return game.Camera{
		Pos:   game.ClampCamera(s.local.Pos, vw, vh, s.grid.Width(), s.grid.Height()),
		Scale: s.scale,
	}
}

// Tick 单帧：应用入站快照 → 本地移动 → 动画 → 相机 → 上报。帧内不阻塞
func (s *Session) Tick(dt time.Duration) game.StepResult {
	s.net.Drain()
	if !s.offline && s.net.Disconnected() {
		s.offline = true
		s.log.Infow("relay connection closed; remote entities frozen", "remotes", s.net.Remotes().Len())
	}

	keys := ReadKeys(s.surface)
	res := s.ctrl.Step(s.local, keys, dt.Seconds())

	if next, changed := game.NextFromKeys(s.local.Anim, keys); changed {
		s.local.Anim = next
		s.sprite.Play(next)
	}
	s.sprite.SetPos(s.local.Pos)
	if a, ok := s.surface.(interface{ Advance(time.Duration) }); ok {
		a.Advance(dt)
	}

	s.surface.SetCamera(s.camera())
	s.net.SendMove(s.local)

	n := atomic.AddInt64(&s.ticks, 1)
	s.status.Store(Status{
		Tick:    n,
		Pos:     s.local.Pos,
		Anim:    s.local.Anim.String(),
		Remotes: s.net.Remotes().Len(),
		Blocked: res.Blocked,
		Offline: s.offline,
	})
	return res
}

// Run 以固定频率推进，直到 ctx 取消；任何退出路径都会关闭连接。
// 入站快照由独立协程接收，只在 Tick 开头被应用
func (s *Session) Run(ctx context.Context, hz int) error {
	defer s.Close()
	if hz <= 0 {
		hz = 60
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := s.net.Pump(pumpCtx); err != nil && pumpCtx.Err() == nil {
			s.log.Infow("snapshot pump stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(now.Sub(last))
			last = now
		}
	}
}

// Close 会话结束：关闭中继连接，销毁远端与本地渲染对象。幂等
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.net.Close()
	s.net.Remotes().Clear()
	s.sprite.Destroy()
	s.log.Infow("session closed", "ticks", s.Ticks())
	return err
}
