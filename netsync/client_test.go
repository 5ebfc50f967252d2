package netsync

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"tilesandbox/game"
	"tilesandbox/protocol"
)

type fakeHandle struct {
	id        string
	pos       game.Vec2
	anim      game.Anim
	plays     int
	destroyed bool
}

func (h *fakeHandle) Pos() game.Vec2     { return h.pos }
func (h *fakeHandle) SetPos(p game.Vec2) { h.pos = p }
func (h *fakeHandle) Anim() game.Anim    { return h.anim }
func (h *fakeHandle) Play(a game.Anim)   { h.anim = a; h.plays++ }
func (h *fakeHandle) Destroy()           { h.destroyed = true }

type fakeSpawner struct {
	spawned map[string]*fakeHandle
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{spawned: make(map[string]*fakeHandle)}
}

func (s *fakeSpawner) Spawn(id string, pos game.Vec2) Handle {
	h := &fakeHandle{id: id, pos: pos, anim: game.InitialAnim}
	s.spawned[id] = h
	return h
}

type fakeTransport struct {
	id       string
	sent     []protocol.Move
	fail     error
	incoming chan protocol.Envelope
	closed   bool
}

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{id: id, incoming: make(chan protocol.Envelope, 8)}
}

func (f *fakeTransport) ID() string                         { return f.id }
func (f *fakeTransport) Codec() protocol.Codec              { return protocol.JSONCodec{} }
func (f *fakeTransport) Incoming() <-chan protocol.Envelope { return f.incoming }
func (f *fakeTransport) Close() error                       { f.closed = true; return nil }

func (f *fakeTransport) Send(t string, payload any) error {
	if f.fail != nil {
		return f.fail
	}
	if t == protocol.MsgMove {
		f.sent = append(f.sent, payload.(protocol.Move))
	}
	return nil
}

func keysOf(s protocol.Snapshot, skip string) []string {
	var out []string
	for id := range s {
		if id != skip {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func pd(id string, x, y float64) protocol.PlayerData {
	return protocol.PlayerData{ID: id, X: x, Y: y}
}

func TestApplyKeysMatchSnapshotMinusLocal(t *testing.T) {
	c := NewClient(newFakeTransport("me"), newFakeSpawner(), Options{})
	snaps := []protocol.Snapshot{
		{"me": pd("me", 1, 1), "a": pd("a", 2, 2)},
		{"a": pd("a", 3, 3), "b": pd("b", 4, 4), "c": pd("c", 5, 5)},
		{"me": pd("me", 1, 1)},
		{},
		{"d": pd("d", 0, 0), "me": pd("me", 0, 0), "a": pd("a", 0, 0)},
	}
	for i, s := range snaps {
		c.Apply(s)
		got := c.Remotes().IDs()
		if want := keysOf(s, "me"); !reflect.DeepEqual(got, want) {
			t.Fatalf("snapshot %d: keys = %v, want %v", i, got, want)
		}
	}
}

func TestApplyJoinAndLeave(t *testing.T) {
	sp := newFakeSpawner()
	c := NewClient(newFakeTransport("me"), sp, Options{})
	c.Apply(protocol.Snapshot{"A": pd("A", 10, 10)})
	a := sp.spawned["A"]

	c.Apply(protocol.Snapshot{"B": pd("B", 5, 5)})
	if !a.destroyed {
		t.Fatalf("A must be destroyed when absent from the snapshot")
	}
	if _, ok := c.Remotes().Get("A"); ok {
		t.Fatalf("A still present in remote set")
	}
	b, ok := sp.spawned["B"]
	if !ok || b.pos != (game.Vec2{X: 5, Y: 5}) {
		t.Fatalf("B not created at (5,5): %+v", b)
	}
}

func TestApplyOverwritesPositionAndDrivesAnimation(t *testing.T) {
	sp := newFakeSpawner()
	c := NewClient(newFakeTransport("me"), sp, Options{})
	c.Apply(protocol.Snapshot{"A": pd("A", 0, 0)})

	moving := pd("A", 50, 60)
	moving.Direction = game.Vec2{X: -1}
	c.Apply(protocol.Snapshot{"A": moving})
	h := sp.spawned["A"]
	if h.pos != (game.Vec2{X: 50, Y: 60}) {
		t.Fatalf("position = %+v, want (50,60)", h.pos)
	}
	if h.anim.String() != "left" {
		t.Fatalf("anim = %s, want left", h.anim)
	}
	plays := h.plays

	c.Apply(protocol.Snapshot{"A": moving})
	if h.plays != plays {
		t.Fatalf("same direction must not restart the clip")
	}

	c.Apply(protocol.Snapshot{"A": pd("A", 50, 60)})
	if h.anim.String() != "left-id" {
		t.Fatalf("anim = %s, want left-id", h.anim)
	}
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	sp := newFakeSpawner()
	c := NewClient(newFakeTransport("me"), sp, Options{})
	s := protocol.Snapshot{
		"A": {ID: "A", X: 1, Y: 2, Direction: game.Vec2{Y: 1}},
		"B": pd("B", 3, 4),
	}
	base := time.Unix(100, 0)
	if !c.Offer(Inbound{At: base, Snapshot: s}) {
		t.Fatalf("first snapshot must be applied")
	}
	before := map[string]fakeHandle{}
	for id, h := range sp.spawned {
		before[id] = *h
	}
	if !c.Offer(Inbound{At: base.Add(DefaultThrottle), Snapshot: s}) {
		t.Fatalf("second snapshot past the throttle must be applied")
	}
	if len(sp.spawned) != 2 {
		t.Fatalf("re-applying spawned new handles: %d", len(sp.spawned))
	}
	for id, h := range sp.spawned {
		if *h != before[id] {
			t.Fatalf("%s changed: %+v -> %+v", id, before[id], *h)
		}
	}
}

func TestOfferThrottle(t *testing.T) {
	c := NewClient(newFakeTransport("me"), newFakeSpawner(), Options{Throttle: 50 * time.Millisecond})
	base := time.Unix(0, 0)
	steps := []struct {
		after time.Duration
		want  bool
	}{
		{0, true},
		{10 * time.Millisecond, false},
		{49 * time.Millisecond, false},
		{50 * time.Millisecond, true},
		{70 * time.Millisecond, false},
		{120 * time.Millisecond, true},
	}
	for _, st := range steps {
		s := protocol.Snapshot{"a": pd("a", float64(st.after.Milliseconds()), 0)}
		if got := c.Offer(Inbound{At: base.Add(st.after), Snapshot: s}); got != st.want {
			t.Fatalf("offer at +%v = %v, want %v", st.after, got, st.want)
		}
	}
	h, _ := c.Remotes().Get("a")
	if h.Pos().X != 120 {
		t.Fatalf("last applied snapshot not reflected: %+v", h.Pos())
	}
	m := c.Metrics().Snapshot()
	if m["throttled"].(int64) != 3 || m["snapshots_apply"].(int64) != 3 {
		t.Fatalf("metrics = %v", m)
	}
}

func TestDeliverAndDrain(t *testing.T) {
	c := NewClient(newFakeTransport("me"), newFakeSpawner(), Options{InboxSize: 2})
	base := time.Unix(0, 0)
	c.Deliver(protocol.Snapshot{"a": pd("a", 1, 0)}, base)
	c.Deliver(protocol.Snapshot{"b": pd("b", 2, 0)}, base.Add(60*time.Millisecond))
	c.Deliver(protocol.Snapshot{"c": pd("c", 3, 0)}, base.Add(120*time.Millisecond))

	if n := c.Drain(); n != 2 {
		t.Fatalf("applied = %d, want 2", n)
	}
	// 收件箱容量 2：最旧的 a 被挤掉，最终只剩 c
	if got := c.Remotes().IDs(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("remotes = %v, want [c]", got)
	}
	if c.Metrics().Snapshot()["inbox_overflow"].(int64) != 1 {
		t.Fatalf("overflow not counted")
	}
	if n := c.Drain(); n != 0 {
		t.Fatalf("empty drain applied %d", n)
	}
}

func TestSendMoveEveryCall(t *testing.T) {
	ft := newFakeTransport("me")
	c := NewClient(ft, newFakeSpawner(), Options{})
	e := game.NewEntity("me", game.Vec2{X: 10, Y: 20}, 800)
	for i := 0; i < 3; i++ {
		c.SendMove(e)
	}
	if len(ft.sent) != 3 {
		t.Fatalf("sent = %d, want 3 (no change detection)", len(ft.sent))
	}
	if ft.sent[0].X != 10 || ft.sent[0].Y != 20 {
		t.Fatalf("move payload = %+v", ft.sent[0])
	}
}

func TestSendMoveFailureIsSwallowed(t *testing.T) {
	ft := newFakeTransport("me")
	ft.fail = ErrNotConnected
	c := NewClient(ft, newFakeSpawner(), Options{})
	c.SendMove(game.NewEntity("me", game.Vec2{}, 1))

	offline := NewClient(nil, newFakeSpawner(), Options{})
	offline.SendMove(game.NewEntity("me", game.Vec2{}, 1))
	if offline.Metrics().Snapshot()["send_failed"].(int64) != 1 {
		t.Fatalf("offline send not counted")
	}
	if err := offline.Pump(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("pump without transport err = %v", err)
	}
}

func TestPumpDeliversSnapshots(t *testing.T) {
	ft := newFakeTransport("me")
	c := NewClient(ft, newFakeSpawner(), Options{})

	b, err := protocol.JSONCodec{}.Encode(protocol.MsgUpdatePlayers, protocol.Snapshot{"x": pd("x", 7, 8)})
	if err != nil {
		t.Fatal(err)
	}
	env, err := protocol.JSONCodec{}.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	ft.incoming <- protocol.Envelope{T: "chat", P: []byte(`{}`)}
	ft.incoming <- env
	close(ft.incoming)

	if err := c.Pump(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("pump err = %v, want ErrClosed", err)
	}
	if n := c.Drain(); n != 1 {
		t.Fatalf("drained %d, want 1", n)
	}
	h, ok := c.Remotes().Get("x")
	if !ok || h.Pos() != (game.Vec2{X: 7, Y: 8}) {
		t.Fatalf("remote x not created from pumped snapshot")
	}
}

func TestRemoteSetClear(t *testing.T) {
	sp := newFakeSpawner()
	s := NewRemoteSet(sp)
	s.Create("a", pd("a", 0, 0))
	s.Create("b", pd("b", 0, 0))
	s.Clear()
	if s.Len() != 0 || !sp.spawned["a"].destroyed || !sp.spawned["b"].destroyed {
		t.Fatalf("clear must destroy every handle")
	}
}

func TestPumpCloseDoesNotTouchRemotes(t *testing.T) {
	ft := newFakeTransport("me")
	c := NewClient(ft, newFakeSpawner(), Options{})

	done := make(chan error, 1)
	go func() { done <- c.Pump(context.Background()) }()
	go func() {
		time.Sleep(time.Millisecond)
		close(ft.incoming)
	}()

	// Tick 协程持续对账，同时网络协程处理断线
	ids := []string{"a", "b", "c", "d"}
	for i := 0; ; i++ {
		snap := protocol.Snapshot{}
		for j := 0; j <= i%len(ids); j++ {
			snap[ids[j]] = pd(ids[j], float64(i), 0)
		}
		c.Apply(snap)
		select {
		case err := <-done:
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("pump err = %v, want ErrClosed", err)
			}
			if !c.Disconnected() {
				t.Fatalf("client not marked disconnected")
			}
			if got := c.Metrics().Snapshot()["disconnects"]; got != int64(1) {
				t.Fatalf("disconnects = %v, want 1", got)
			}
			if c.Remotes().Len() == 0 {
				t.Fatalf("remotes must stay frozen after disconnect")
			}
			return
		default:
		}
	}
}
