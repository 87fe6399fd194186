package logger

import (
	"learnhub_backend/internal/config"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 未初始化时为 Nop，测试中可直接使用
var Log = zap.NewNop()

// Level 显式配置优先，否则 debug 模式输出调试日志
func Level(cfg *config.Config) zapcore.Level {
	var level zapcore.Level
	if cfg.Log.Level != "" && level.UnmarshalText([]byte(cfg.Log.Level)) == nil {
		return level
	}
	if cfg.Server.Mode == "debug" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func newEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	return ec
}

func InitLogger(cfg *config.Config) {
	level := Level(cfg)
	ec := newEncoderConfig()

	// 文件按大小滚动，JSON 格式便于日志采集
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewJSONEncoder(ec),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAgeDays,
				Compress:   true,
			}),
			level,
		),
	}
	if cfg.Log.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(os.Stdout), level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", "learnhub-engine"))
}

// Sync 退出前刷新缓冲
func Sync() {
	_ = Log.Sync()
}
