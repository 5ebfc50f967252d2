package game

import (
	"math"
	"testing"

	"tilesandbox/world"
)

const eps = 1e-9

func allKeyCombos() []Keys {
	var out []Keys
	for m := 0; m < 16; m++ {
		out = append(out, Keys{
			Left:  m&1 != 0,
			Right: m&2 != 0,
			Up:    m&4 != 0,
			Down:  m&8 != 0,
		})
	}
	return out
}

func unit(v float64) bool { return v == -1 || v == 0 || v == 1 }

func TestDirectionFromKeys(t *testing.T) {
	for _, k := range allKeyCombos() {
		d := DirectionFromKeys(k)
		if !unit(d.X) || !unit(d.Y) {
			t.Fatalf("keys %+v: direction %+v has non-unit component", k, d)
		}
		if d.IsZero() != !k.Any() {
			t.Fatalf("keys %+v: zero=%v but any=%v", k, d.IsZero(), k.Any())
		}
	}
	if d := DirectionFromKeys(Keys{Left: true, Right: true}); d.X != 1 {
		t.Fatalf("right is checked after left, got %+v", d)
	}
}

func openController(w, h float64) *Controller {
	return &Controller{MapW: w, MapH: h, Width: 48, Height: 48}
}

func TestDiagonalSpeedMatchesAxisSpeed(t *testing.T) {
	const speed, dt = 800.0, 1.0 / 60
	c := openController(10000, 10000)
	for _, k := range allKeyCombos() {
		e := NewEntity("me", Vec2{5000, 5000}, speed)
		before := e.Pos
		c.Step(e, k, dt)
		moved := Vec2{e.Pos.X - before.X, e.Pos.Y - before.Y}.Len()
		want := 0.0
		if !DirectionFromKeys(k).IsZero() {
			want = speed * dt
		}
		if math.Abs(moved-want) > eps {
			t.Fatalf("keys %+v: moved %v, want %v", k, moved, want)
		}
	}
}

func TestStepStaysInsideInsetBounds(t *testing.T) {
	c := openController(320, 200)
	e := NewEntity("me", Vec2{160, 100}, 800)
	for _, k := range allKeyCombos() {
		for i := 0; i < 30; i++ {
			c.Step(e, k, 0.05)
			if e.Pos.X < 24 || e.Pos.X > 296 || e.Pos.Y < 24 || e.Pos.Y > 176 {
				t.Fatalf("keys %+v: position %+v escaped bounds", k, e.Pos)
			}
		}
	}
}

func TestStepRejectsMoveIntoWall(t *testing.T) {
	g, err := world.ParseGrid([]string{
		"......",
		"...#..",
		"......",
	}, 32)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	for name, col := range map[string]world.Collider{
		"grid":  world.GridCollider{Grid: g},
		"space": world.NewWallSpace(g),
	} {
		c := &Controller{World: col, MapW: g.Width(), MapH: g.Height(), Width: 16, Height: 16}
		// 墙体格子 x ∈ [96,128)；实体右边缘在 92
		e := NewEntity("me", Vec2{84, 48}, 100)
		res := c.Step(e, Keys{Right: true}, 0.1)
		if !res.Blocked {
			t.Fatalf("%s: expected move into wall to be blocked", name)
		}
		if e.Pos != (Vec2{84, 48}) {
			t.Fatalf("%s: position changed to %+v", name, e.Pos)
		}
		if !e.Dir.IsZero() {
			t.Fatalf("%s: direction must be zeroed, got %+v", name, e.Dir)
		}
		if res.Intent != (Vec2{1, 0}) {
			t.Fatalf("%s: intent = %+v", name, res.Intent)
		}

		// 远离墙体的移动不受影响
		res = c.Step(e, Keys{Left: true}, 0.1)
		if res.Blocked || !res.Moved || e.Pos.X != 74 {
			t.Fatalf("%s: free move failed: %+v pos=%+v", name, res, e.Pos)
		}
	}
}

func TestStepNoKeysKeepsPosition(t *testing.T) {
	c := openController(1000, 1000)
	e := NewEntity("me", Vec2{500, 500}, 800)
	res := c.Step(e, Keys{}, 0.016)
	if res.Moved || e.Pos != (Vec2{500, 500}) || !e.Dir.IsZero() {
		t.Fatalf("idle step moved entity: %+v %+v", res, e)
	}
}

func TestClampCamera(t *testing.T) {
	cases := []struct {
		pos, want Vec2
	}{
		{Vec2{10, 10}, Vec2{240, 240}},
		{Vec2{900, 900}, Vec2{720, 720}},
		{Vec2{500, 300}, Vec2{500, 300}},
	}
	for _, tc := range cases {
		if got := ClampCamera(tc.pos, 480, 480, 960, 960); got != tc.want {
			t.Fatalf("ClampCamera(%+v) = %+v, want %+v", tc.pos, got, tc.want)
		}
	}
	// 地图小于视口时收敛为一点
	a := ClampCamera(Vec2{0, 0}, 480, 480, 200, 200)
	b := ClampCamera(Vec2{200, 200}, 480, 480, 200, 200)
	if a != b {
		t.Fatalf("degenerate clamp should collapse to a point: %+v vs %+v", a, b)
	}
}
