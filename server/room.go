package server

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"tilesandbox/logger"
	"tilesandbox/protocol"
)

// RoomOptions 房间可调参数
type RoomOptions struct {
	BroadcastHz   int
	ValidateMoves bool
	SimulateDrop  float64
	Recorder      *Recorder // 可为空
}

// Room 房间：只转发各连接最近一次上报的状态，单线程 Tick 广播全量快照
type Room struct {
	ID string

	Players   map[PlayerID]*Player
	joinChan  chan join
	inputChan chan Input
	leaveChan chan PlayerID
	quit      chan struct{}

	// 运行期可通过 /admin/config 修改
	cfgMu         sync.RWMutex
	broadcastHz   int
	validateMoves bool
	simulateDrop  float64
	hzChanged     chan struct{}

	recorder *Recorder
	metrics  *RoomMetrics
	tickSeq  int64
	rngMu    sync.Mutex
	rng      *rand.Rand

	tickerStarted bool
	stopOnce      sync.Once
	log           *zap.SugaredLogger
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, opts RoomOptions) *Room {
	if opts.BroadcastHz <= 0 {
		opts.BroadcastHz = BroadcastHz
	}
	return &Room{
		ID:            id,
		Players:       make(map[PlayerID]*Player),
		joinChan:      make(chan join, 64),
		inputChan:     make(chan Input, 1024), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan:     make(chan PlayerID, 64),
		quit:          make(chan struct{}),
		broadcastHz:   opts.BroadcastHz,
		validateMoves: opts.ValidateMoves,
		simulateDrop:  opts.SimulateDrop,
		hzChanged:     make(chan struct{}, 1),
		recorder:      opts.Recorder,
		metrics:       &RoomMetrics{},
		rng:           rand.New(rand.NewSource(rand.Int63())),
		log:           logger.Named("room").With("room", id),
	}
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// RequestJoin 请求在 Tick 线程中加入玩家
func (r *Room) RequestJoin(id PlayerID, conn *ClientConn) bool {
	select {
	case r.joinChan <- join{ID: id, Conn: conn}:
		return true
	case <-r.quit:
		return false
	}
}

// joinPlayer 将玩家加入房间
func (r *Room) joinPlayer(id PlayerID, conn *ClientConn) *Player {
	p := &Player{ID: id, Conn: conn}
	r.Players[id] = p
	r.metrics.IncJoin()
	r.log.Infow("player joined", "player", id, "players", len(r.Players))
	return p
}

// leavePlayer 将玩家移出房间
func (r *Room) leavePlayer(id PlayerID) {
	if p, ok := r.Players[id]; ok {
		if p.Conn != nil {
			p.Conn.Close()
		}
		delete(r.Players, id)
		r.metrics.IncLeave()
		r.log.Infow("player left", "player", id, "players", len(r.Players))
	}
}

// OnInput 入站 move（不立即生效），等下一次 Tick 处理；通道满时丢弃
func (r *Room) OnInput(in Input) {
	if drop := r.DropProb(); drop > 0 && r.randFloat() < drop {
		r.metrics.IncDropsSimulated()
		return
	}
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

func (r *Room) randFloat() float64 {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Float64()
}

// ProcessInputs 非阻塞 drain：加入、离开、move 全部在 Tick 协程中串行应用
// 加入先于其它消息处理，保证同一帧内的“加入后立即断开”不会残留玩家
func (r *Room) ProcessInputs() {
	for drained := false; !drained; {
		select {
		case j := <-r.joinChan:
			r.joinPlayer(j.ID, j.Conn)
		default:
			drained = true
		}
	}
	for {
		select {
		case pid := <-r.leaveChan:
			r.leavePlayer(pid)
		case in := <-r.inputChan:
			if p, ok := r.Players[in.PlayerID]; ok {
				p.X, p.Y = in.Move.X, in.Move.Y
				p.Dir = in.Move.Direction
				p.HasPos = true
				r.metrics.IncAccepted()
			}
		default:
			return
		}
	}
}

// BuildSnapshot 当前全部已上报位置的玩家
func (r *Room) BuildSnapshot() protocol.Snapshot {
	snap := make(protocol.Snapshot, len(r.Players))
	for id, p := range r.Players {
		if p.HasPos {
			snap[string(id)] = p.State()
		}
	}
	return snap
}

// Broadcast 将全量快照广播给所有玩家，每种编码只编码一次
func (r *Room) Broadcast() {
	snap := r.BuildSnapshot()
	frames := make(map[string][]byte, 2)
	sent := 0
	for _, p := range r.Players {
		if p.Conn == nil {
			continue
		}
		codec := p.Conn.codec
		b, ok := frames[codec.Name()]
		if !ok {
			var err error
			b, err = codec.Encode(protocol.MsgUpdatePlayers, snap)
			if err != nil {
				// 记为 nil，同编码的其它连接本帧直接跳过
				r.log.Errorw("encode snapshot", "codec", codec.Name(), "err", err)
			}
			frames[codec.Name()] = b
		}
		if b == nil {
			continue
		}
		if p.Conn.Enqueue(b) {
			sent++
		}
	}
	r.metrics.AddSent(sent)
	if r.recorder != nil {
		if err := r.recorder.Write(r.ID, r.TickSeq(), snap); err != nil {
			r.log.Warnw("record snapshot", "err", err)
		}
	}
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(pid PlayerID) {
	select {
	case r.leaveChan <- pid:
	case <-r.quit:
	}
}

// BroadcastHz 当前广播频率
func (r *Room) BroadcastHz() int {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.broadcastHz
}

// SetBroadcastHz 热更新广播频率，Tick 协程在下一拍重建 ticker
func (r *Room) SetBroadcastHz(hz int) {
	if hz <= 0 {
		return
	}
	r.cfgMu.Lock()
	r.broadcastHz = hz
	r.cfgMu.Unlock()
	select {
	case r.hzChanged <- struct{}{}:
	default:
	}
}

func (r *Room) DropProb() float64 {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.simulateDrop
}

func (r *Room) SetDropProb(p float64) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.simulateDrop = p
}

func (r *Room) ValidateMoves() bool {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.validateMoves
}

func (r *Room) SetValidateMoves(v bool) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.validateMoves = v
}
