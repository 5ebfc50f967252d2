package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tilesandbox/config"
	"tilesandbox/logger"
	"tilesandbox/protocol"
	"tilesandbox/server"
)

// 中继入口：启动 HTTP + WebSocket 服务，转发各客户端的位置并广播全量快照
func main() {
	var (
		cfgPath string
		addr    string
		logFile string
	)
	flag.StringVar(&cfgPath, "config", "", "path to sandbox.yaml (optional)")
	flag.StringVar(&addr, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&logFile, "log", "", "log file path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Relay.Addr = addr
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	// zap 日志写入文件（lumberjack 滚动）
	logOpts := logger.DefaultOptions(cfg.Log.File)
	logOpts.Level = cfg.Log.Level
	logOpts.Stdout = cfg.Log.Stdout
	if err := logger.Init(logOpts); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log

	opts := server.RoomOptions{
		BroadcastHz:   cfg.Relay.BroadcastHz,
		ValidateMoves: cfg.Relay.ValidateMoves,
		SimulateDrop:  cfg.Relay.SimulateDrop,
	}
	if cfg.Relay.RecordFile != "" {
		rec, err := server.NewRecorder(cfg.Relay.RecordFile)
		if err != nil {
			log.Fatalf("recorder: %v", err)
		}
		defer rec.Close()
		opts.Recorder = rec
	}

	rooms := server.NewRoomManager(opts)
	// 先预创建默认房间，便于快速试跑
	_ = rooms.GetOrCreateRoom(cfg.Relay.DefaultRoom)

	codec, err := protocol.CodecByName(cfg.Relay.Codec)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}
	h := server.NewHandler(rooms, cfg.Relay.DefaultRoom, cfg.Relay.AllowAnyOrigin)
	h.ClientQueue = cfg.Relay.ClientQueue
	h.Codec = codec
	srv := &http.Server{Addr: cfg.Relay.Addr, Handler: h.Mux()}

	go func() {
		log.Infof("relay listening on %s (ws endpoint: /ws, broadcast %d Hz)", cfg.Relay.Addr, cfg.Relay.BroadcastHz)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	rooms.Shutdown()
}
