// Package config 客户端与中继的运行配置：YAML 文件 + .env/环境变量覆盖。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Client 本地模拟与同步参数
type Client struct {
	RelayURL     string        `yaml:"relay_url"`
	Room         string        `yaml:"room"`
	Codec        string        `yaml:"codec"`
	MapFile      string        `yaml:"map_file"` // 为空则使用内置地图
	Speed        float64       `yaml:"speed"`
	EntityWidth  float64       `yaml:"entity_width"`
	EntityHeight float64       `yaml:"entity_height"`
	ViewportW    float64       `yaml:"viewport_width"`
	ViewportH    float64       `yaml:"viewport_height"`
	CameraScale  float64       `yaml:"camera_scale"`
	TickHz       int           `yaml:"tick_hz"`
	Throttle     time.Duration `yaml:"snapshot_throttle"`
	InboxSize    int           `yaml:"inbox_size"`
	SendQueue    int           `yaml:"send_queue"`
	Collider     string        `yaml:"collider"` // grid | space
}

// Relay 中继服务参数
type Relay struct {
	Addr           string  `yaml:"addr"`
	Codec          string  `yaml:"codec"`
	BroadcastHz    int     `yaml:"broadcast_hz"`
	ValidateMoves  bool    `yaml:"validate_moves"`
	RecordFile     string  `yaml:"record_file"` // 非空时记录广播快照（zstd 压缩 JSONL）
	SimulateDrop   float64 `yaml:"simulate_drop_prob"`
	ClientQueue    int     `yaml:"client_queue"`
	DefaultRoom    string  `yaml:"default_room"`
	AllowAnyOrigin bool    `yaml:"allow_any_origin"`
}

// Log 日志参数
type Log struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Stdout bool   `yaml:"stdout"`
}

type Config struct {
	Client Client `yaml:"client"`
	Relay  Relay  `yaml:"relay"`
	Log    Log    `yaml:"log"`
}

// Default 默认值：速度 800，实体 48x48，视口 960x480，快照节流 50ms
func Default() Config {
	return Config{
		Client: Client{
			RelayURL:     "ws://localhost:8080/ws",
			Room:         "room-1",
			Codec:        "json",
			Speed:        800,
			EntityWidth:  48,
			EntityHeight: 48,
			ViewportW:    30 * 32,
			ViewportH:    15 * 32,
			CameraScale:  1,
			TickHz:       60,
			Throttle:     50 * time.Millisecond,
			InboxSize:    16,
			SendQueue:    64,
			Collider:     "grid",
		},
		Relay: Relay{
			Addr:           ":8080",
			Codec:          "json",
			BroadcastHz:    20,
			ValidateMoves:  true,
			ClientQueue:    64,
			DefaultRoom:    "room-1",
			AllowAnyOrigin: true,
		},
		Log: Log{
			File:  "app.log",
			Level: "debug",
		},
	}
}

// Load 读取 YAML（path 为空时只用默认值），再应用 .env 与环境变量覆盖
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf(".env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(cfg *Config) error {
	if v := os.Getenv("SANDBOX_RELAY_URL"); v != "" {
		cfg.Client.RelayURL = v
	}
	if v := os.Getenv("SANDBOX_ROOM"); v != "" {
		cfg.Client.Room = v
	}
	if v := os.Getenv("SANDBOX_ADDR"); v != "" {
		cfg.Relay.Addr = v
	}
	if v := os.Getenv("SANDBOX_CODEC"); v != "" {
		cfg.Client.Codec = v
		cfg.Relay.Codec = v
	}
	if v := os.Getenv("SANDBOX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SANDBOX_BROADCAST_HZ"); v != "" {
		hz, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SANDBOX_BROADCAST_HZ: %w", err)
		}
		cfg.Relay.BroadcastHz = hz
	}
	if v := os.Getenv("SANDBOX_THROTTLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SANDBOX_THROTTLE: %w", err)
		}
		cfg.Client.Throttle = d
	}
	return nil
}

// Validate 拒绝明显无效的取值
func (c Config) Validate() error {
	if c.Client.TickHz <= 0 {
		return fmt.Errorf("config: client.tick_hz must be > 0, got %d", c.Client.TickHz)
	}
	if c.Client.Speed < 0 {
		return fmt.Errorf("config: client.speed must be >= 0, got %v", c.Client.Speed)
	}
	if c.Client.Throttle < 0 {
		return fmt.Errorf("config: client.snapshot_throttle must be >= 0, got %v", c.Client.Throttle)
	}
	if c.Relay.BroadcastHz <= 0 {
		return fmt.Errorf("config: relay.broadcast_hz must be > 0, got %d", c.Relay.BroadcastHz)
	}
	if c.Relay.SimulateDrop < 0 || c.Relay.SimulateDrop > 1 {
		return fmt.Errorf("config: relay.simulate_drop_prob must be in [0,1], got %v", c.Relay.SimulateDrop)
	}
	for _, codec := range []string{c.Client.Codec, c.Relay.Codec} {
		switch codec {
		case "json", "msgpack":
		default:
			return fmt.Errorf("config: codec must be json or msgpack, got %q", codec)
		}
	}
	switch c.Client.Collider {
	case "grid", "space":
	default:
		return fmt.Errorf("config: client.collider must be grid or space, got %q", c.Client.Collider)
	}
	return nil
}
