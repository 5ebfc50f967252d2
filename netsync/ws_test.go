package netsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tilesandbox/game"
	"tilesandbox/protocol"
)

// echoRelay 下发 welcome，把收到的第一条 move 作为快照广播回去
func echoRelay(t *testing.T, codec protocol.Codec) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if r.URL.Query().Get("codec") != codec.Name() {
			t.Errorf("codec query = %q", r.URL.Query().Get("codec"))
		}
		b, _ := codec.Encode(protocol.MsgWelcome, protocol.Welcome{ID: "p-1"})
		if err := ws.WriteMessage(codec.FrameType(), b); err != nil {
			return
		}
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := codec.Decode(payload)
		if err != nil || env.T != protocol.MsgMove {
			t.Errorf("expected move, got %q err=%v", env.T, err)
			return
		}
		mv, err := protocol.DecodePayload[protocol.Move](codec, env)
		if err != nil {
			t.Errorf("decode move: %v", err)
			return
		}
		snap := protocol.Snapshot{
			"p-1": {ID: "p-1", X: mv.X, Y: mv.Y, Direction: mv.Direction},
			"p-2": {ID: "p-2", X: 1, Y: 2},
		}
		b, _ = codec.Encode(protocol.MsgUpdatePlayers, snap)
		_ = ws.WriteMessage(codec.FrameType(), b)
		// 等待客户端关闭
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWSTransportRoundTrip(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSONCodec{}, protocol.MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			srv := echoRelay(t, codec)
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			tr, err := Dial(ctx, wsURL(srv), DialOptions{Room: "r", Codec: codec})
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer tr.Close()
			if tr.ID() != "p-1" {
				t.Fatalf("id = %q, want p-1", tr.ID())
			}

			c := NewClient(tr, newFakeSpawner(), Options{})
			go func() { _ = c.Pump(ctx) }()
			c.SendMove(&game.Entity{Pos: game.Vec2{X: 3, Y: 4}, Dir: game.Vec2{X: 1}})

			deadline := time.After(time.Second)
			for c.Remotes().Len() == 0 {
				select {
				case <-deadline:
					t.Fatalf("timed out waiting for snapshot")
				case <-time.After(5 * time.Millisecond):
				}
				c.Drain()
			}
			if ids := c.Remotes().IDs(); len(ids) != 1 || ids[0] != "p-2" {
				t.Fatalf("remotes = %v, want [p-2] (local id excluded)", ids)
			}
		})
	}
}

func TestWSTransportSendAfterClose(t *testing.T) {
	srv := echoRelay(t, protocol.JSONCodec{})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL(srv), DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = tr.Close()
	if err := tr.Send(protocol.MsgMove, protocol.Move{}); err != ErrClosed {
		t.Fatalf("send after close = %v, want ErrClosed", err)
	}
}

func TestDialRequiresWelcome(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		b, _ := protocol.JSONCodec{}.Encode(protocol.MsgUpdatePlayers, protocol.Snapshot{})
		_ = ws.WriteMessage(websocket.TextMessage, b)
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	if _, err := Dial(context.Background(), wsURL(srv), DialOptions{}); err == nil {
		t.Fatalf("expected handshake error without welcome")
	}
}
