package netsync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tilesandbox/game"
	"tilesandbox/logger"
	"tilesandbox/protocol"
)

// DefaultThrottle 两次应用快照之间的最小间隔
const DefaultThrottle = 50 * time.Millisecond

var (
	ErrNotConnected = errors.New("netsync: not connected")
	ErrClosed       = errors.New("netsync: transport closed")
	ErrQueueFull    = errors.New("netsync: send queue full")
)

// Transport 到中继的连接；Send 尽力而为，不重试不排队等待
type Transport interface {
	ID() string
	Codec() protocol.Codec
	Send(t string, payload any) error
	Incoming() <-chan protocol.Envelope
	Close() error
}

// Inbound 网络协程收到的快照，带到达时间
type Inbound struct {
	At       time.Time
	Snapshot protocol.Snapshot
}

// Options 客户端参数
type Options struct {
	Throttle  time.Duration
	InboxSize int
}

// Client 同步客户端。除 Deliver/Pump 外所有方法只能在 Tick 协程调用
type Client struct {
	transport Transport
	localID   string
	remotes   *RemoteSet
	throttle  time.Duration

	inbox       chan Inbound
	lastApplied time.Time
	hasApplied  bool

	disconnected atomic.Bool

	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewClient transport 可以为 nil（离线），此时发送静默失败
func NewClient(t Transport, sp Spawner, opts Options) *Client {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 16
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	c := &Client{
		transport: t,
		remotes:   NewRemoteSet(sp),
		throttle:  opts.Throttle,
		inbox:     make(chan Inbound, opts.InboxSize),
		metrics:   &Metrics{},
		log:       logger.Named("netsync"),
	}
	if t != nil {
		c.localID = t.ID()
	}
	return c
}

func (c *Client) LocalID() string     { return c.localID }
func (c *Client) Remotes() *RemoteSet { return c.remotes }
func (c *Client) Metrics() *Metrics   { return c.metrics }

// Disconnected 入站通道是否已被关闭；任意协程可读
func (c *Client) Disconnected() bool { return c.disconnected.Load() }

// SendMove 每帧无条件上报位置与方向（不做变化检测）；失败只记录，不影响 Tick
func (c *Client) SendMove(e *game.Entity) {
	if c.transport == nil {
		c.metrics.incSendFailed()
		return
	}
	if err := c.transport.Send(protocol.MsgMove, protocol.MoveFromEntity(e)); err != nil {
		c.metrics.incSendFailed()
		c.log.Debugw("move not sent", "err", err)
		return
	}
	c.metrics.incSent()
}

// Deliver 网络协程调用：快照入收件箱，满时挤掉最旧的一条，从不阻塞
func (c *Client) Deliver(s protocol.Snapshot, at time.Time) {
	c.metrics.incIn()
	in := Inbound{At: at, Snapshot: s}
	for {
		select {
		case c.inbox <- in:
			return
		default:
		}
		select {
		case <-c.inbox:
			c.metrics.incOverflow()
		default:
		}
	}
}

// Drain Tick 开始时调用，远端集合唯一的修改点；返回本次应用的快照数
func (c *Client) Drain() int {
	n := 0
	for {
		select {
		case in := <-c.inbox:
			if c.Offer(in) {
				n++
			}
		default:
			return n
		}
	}
}

// Offer 节流判断：距上次应用不足间隔的快照直接丢弃
func (c *Client) Offer(in Inbound) bool {
	if c.hasApplied && in.At.Sub(c.lastApplied) < c.throttle {
		c.metrics.incThrottled()
		return false
	}
	c.lastApplied = in.At
	c.hasApplied = true
	c.Apply(in.Snapshot)
	return true
}

// Apply 对账：先销毁快照中已不存在的实体，再创建/更新其余实体（跳过本地 id）。
// 结束后远端集合的键恰好等于 keys(S) \ {localID}
func (c *Client) Apply(s protocol.Snapshot) {
	removed := 0
	for _, id := range c.remotes.IDs() {
		if _, ok := s[id]; !ok {
			c.remotes.Destroy(id)
			removed++
		}
	}
	created := 0
	for id, pd := range s {
		if id == c.localID {
			continue
		}
		if !c.remotes.Update(id, pd) {
			c.remotes.Create(id, pd)
			created++
		}
	}
	if created > 0 || removed > 0 {
		c.log.Debugw("remote set reconciled", "joined", created, "left", removed, "size", c.remotes.Len())
	}
	c.metrics.addCreated(created)
	c.metrics.addRemoved(removed)
	c.metrics.incApplied()
}

// Pump 读取 transport 的入站消息并投递快照，直到连接关闭或 ctx 取消。
// 连接断开后远端实体保持最后状态，不会被移除。Pump 不读写远端集合
func (c *Client) Pump(ctx context.Context) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	codec := c.transport.Codec()
	in := c.transport.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				c.disconnected.Store(true)
				c.metrics.incDisconnect()
				c.log.Infow("relay connection closed")
				return ErrClosed
			}
			if env.T != protocol.MsgUpdatePlayers {
				continue
			}
			snap, err := protocol.DecodePayload[protocol.Snapshot](codec, env)
			if err != nil {
				c.log.Warnw("bad snapshot", "err", err)
				continue
			}
			c.Deliver(snap, time.Now())
		}
	}
}

// Close 关闭连接；远端实体交由调用方在会话结束时清理
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}
