package netsync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tilesandbox/logger"
	"tilesandbox/protocol"
)

const (
	writeWait      = 5 * time.Second
	readWait       = 60 * time.Second
	handshakeWait  = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MB
)

// WSTransport 基于 gorilla/websocket 的中继连接：读协程 + 写协程，发送队列满则丢弃
type WSTransport struct {
	ws    *websocket.Conn
	codec protocol.Codec
	id    string

	send     chan []byte
	incoming chan protocol.Envelope
	done     chan struct{}
	once     sync.Once

	log *zap.SugaredLogger
}

// DialOptions 连接参数
type DialOptions struct {
	Room      string
	Codec     protocol.Codec
	SendQueue int
	Header    http.Header
}

// Dial 建立连接并等待中继下发 welcome（分配的实体 id）后才返回
func Dial(ctx context.Context, rawURL string, opts DialOptions) (*WSTransport, error) {
	if opts.Codec == nil {
		opts.Codec = protocol.JSONCodec{}
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("netsync: relay url: %w", err)
	}
	q := u.Query()
	if opts.Room != "" {
		q.Set("room", opts.Room)
	}
	q.Set("codec", opts.Codec.Name())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		return nil, fmt.Errorf("netsync: dial %s: %w", u.Redacted(), err)
	}

	t := &WSTransport{
		ws:       ws,
		codec:    opts.Codec,
		send:     make(chan []byte, opts.SendQueue),
		incoming: make(chan protocol.Envelope, 16),
		done:     make(chan struct{}),
		log:      logger.Named("ws"),
	}
	if err := t.handshake(ctx); err != nil {
		_ = ws.Close()
		return nil, err
	}
	t.log = t.log.With("id", t.id)

	go t.writePump()
	go t.readPump()
	return t, nil
}

func (t *WSTransport) handshake(ctx context.Context) error {
	deadline := time.Now().Add(handshakeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.ws.SetReadDeadline(deadline)
	_, payload, err := t.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("netsync: waiting for welcome: %w", err)
	}
	env, err := t.codec.Decode(payload)
	if err != nil {
		return err
	}
	if env.T != protocol.MsgWelcome {
		return fmt.Errorf("netsync: expected %q, got %q", protocol.MsgWelcome, env.T)
	}
	w, err := protocol.DecodePayload[protocol.Welcome](t.codec, env)
	if err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("netsync: welcome without id")
	}
	t.id = w.ID
	return nil
}

func (t *WSTransport) ID() string                         { return t.id }
func (t *WSTransport) Codec() protocol.Codec              { return t.codec }
func (t *WSTransport) Incoming() <-chan protocol.Envelope { return t.incoming }

// Send 编码后非阻塞入队；连接已关闭或队列满时返回错误，不重试
func (t *WSTransport) Send(typ string, payload any) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	b, err := t.codec.Encode(typ, payload)
	if err != nil {
		return err
	}
	select {
	case t.send <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 幂等；所有退出路径都应调用
func (t *WSTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		_ = t.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = t.ws.Close()
	})
	return err
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (t *WSTransport) writePump() {
	defer t.Close()
	frame := t.codec.FrameType()
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.send:
			_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.ws.WriteMessage(frame, msg); err != nil {
				t.log.Debugw("write failed", "err", err)
				return
			}
		}
	}
}

// readPump 解码外层后交给 Incoming；退出时关闭 Incoming
func (t *WSTransport) readPump() {
	defer close(t.incoming)
	defer t.Close()
	t.ws.SetReadLimit(maxMessageSize)
	_ = t.ws.SetReadDeadline(time.Now().Add(readWait))
	t.ws.SetPingHandler(func(appData string) error {
		_ = t.ws.SetReadDeadline(time.Now().Add(readWait))
		return t.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, payload, err := t.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Infow("relay connection lost", "err", err)
			}
			return
		}
		_ = t.ws.SetReadDeadline(time.Now().Add(readWait))
		env, err := t.codec.Decode(payload)
		if err != nil {
			t.log.Debugw("drop frame", "err", err)
			continue
		}
		select {
		case t.incoming <- env:
		case <-t.done:
			return
		}
	}
}
