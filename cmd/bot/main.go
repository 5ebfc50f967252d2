// bot 无界面客户端：连接中继，用脚本化/随机按键驱动本地实体，记录远端实体变化。
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tilesandbox/config"
	"tilesandbox/game"
	"tilesandbox/logger"
	"tilesandbox/netsync"
	"tilesandbox/protocol"
	"tilesandbox/session"
	"tilesandbox/world"
)

func main() {
	var (
		cfgPath  string
		relayURL string
		room     string
		duration time.Duration
		turn     time.Duration
	)
	flag.StringVar(&cfgPath, "config", "", "path to sandbox.yaml (optional)")
	flag.StringVar(&relayURL, "relay", "", "relay websocket url (overrides config)")
	flag.StringVar(&room, "room", "", "room id (overrides config)")
	flag.DurationVar(&duration, "duration", 0, "stop after this long (0 = until Ctrl+C)")
	flag.DurationVar(&turn, "turn", 750*time.Millisecond, "how often the bot picks new keys")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	if relayURL != "" {
		cfg.Client.RelayURL = relayURL
	}
	if room != "" {
		cfg.Client.Room = room
	}

	logOpts := logger.DefaultOptions(cfg.Log.File)
	logOpts.Level = cfg.Log.Level
	logOpts.Stdout = true
	if err := logger.Init(logOpts); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Named("bot")

	grid := world.Default()
	if cfg.Client.MapFile != "" {
		if grid, err = world.LoadMap(cfg.Client.MapFile); err != nil {
			log.Fatalf("map: %v", err)
		}
	}
	var collider world.Collider = world.GridCollider{Grid: grid}
	if cfg.Client.Collider == "space" {
		collider = world.NewWallSpace(grid)
	}

	codec, err := protocol.CodecByName(cfg.Client.Codec)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	tr, err := netsync.Dial(dialCtx, cfg.Client.RelayURL, netsync.DialOptions{
		Room:      cfg.Client.Room,
		Codec:     codec,
		SendQueue: cfg.Client.SendQueue,
	})
	cancelDial()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Infow("connected", "id", tr.ID(), "relay", cfg.Client.RelayURL, "room", cfg.Client.Room)

	surface := session.NewHeadless(cfg.Client.ViewportW, cfg.Client.ViewportH)
	client := netsync.NewClient(tr, surface, netsync.Options{
		Throttle:  cfg.Client.Throttle,
		InboxSize: cfg.Client.InboxSize,
	})
	sess := session.New(surface, grid, collider, client, session.Options{
		Speed:       cfg.Client.Speed,
		Width:       cfg.Client.EntityWidth,
		Height:      cfg.Client.EntityHeight,
		CameraScale: cfg.Client.CameraScale,
	})

	go wander(ctx, surface, turn)
	go report(ctx, sess, log.Infow)

	if err := sess.Run(ctx, cfg.Client.TickHz); err != nil && ctx.Err() == nil {
		log.Errorf("session: %v", err)
	}
	log.Infow("done", "metrics", client.Metrics().Snapshot())
}

// wander 定时随机切换方向键，偶尔停下
func wander(ctx context.Context, s *session.Headless, every time.Duration) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if rng.Intn(5) == 0 {
				s.SetKeys(game.Keys{})
				continue
			}
			s.SetKeys(game.Keys{
				Left:  rng.Intn(3) == 0,
				Right: rng.Intn(3) == 0,
				Up:    rng.Intn(3) == 0,
				Down:  rng.Intn(3) == 0,
			})
		}
	}
}

// report 每秒输出一次本地位置与同步指标
func report(ctx context.Context, sess *session.Session, logw func(string, ...any)) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := sess.Status()
			logw("status",
				"tick", st.Tick,
				"pos", st.Pos,
				"anim", st.Anim,
				"remotes", st.Remotes,
				"metrics", sess.Client().Metrics().Snapshot())
		}
	}
}
