package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局 SugaredLogger；未初始化时为 Nop，库代码与测试可直接使用
var Log = zap.NewNop().Sugar()

// Options 日志输出配置
type Options struct {
	File       string // 日志文件路径，如 "app.log"；为空则不写文件
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string // debug / info / warn / error
	Stdout     bool   // 同时输出到控制台
}

// DefaultOptions 与单文件滚动策略一致：10MB 每文件，保留3个备份
func DefaultOptions(file string) Options {
	return Options{
		File:       file,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      "debug",
	}
}

// Init 初始化 zap 日志到本地文件（lumberjack 滚动），可选 tee 到 stdout
func Init(opts Options) error {
	lvl := zapcore.DebugLevel
	if opts.Level != "" {
		if err := lvl.Set(opts.Level); err != nil {
			return err
		}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB, // MB
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays, // days
			Compress:   false,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), lvl))
	}
	if opts.Stdout || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Log = l.Sugar()
	return nil
}

// Named 返回带子模块名的 logger，便于按组件过滤
func Named(name string) *zap.SugaredLogger {
	return Log.Named(name)
}

// Sync 清理和同步缓冲
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
