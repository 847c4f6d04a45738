package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志选项，对应 LOG_LEVEL / LOG_FORMAT
type Options struct {
	Level   string // debug | info | warn | error，无法识别时为 info
	Format  string // json | console，默认 json
	Service string // 进程名，写入每条日志的 service 字段
}

// NewLogger 创建写到 stdout 的 Logger，错误输出到 stderr
func NewLogger(level, format, service string) (*zap.Logger, error) {
	return Build(Options{Level: level, Format: format, Service: service}, zapcore.Lock(os.Stdout)), nil
}

// Build 按 Options 组装 zap core；sink 可注入，测试用
func Build(opts Options, sink zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(encoder(opts.Format), sink, parseLevel(opts.Level))

	fields := make([]zap.Field, 0, 2)
	if opts.Service != "" {
		fields = append(fields, zap.String("service", opts.Service))
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		fields = append(fields, zap.String("host", host))
	}
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	).With(fields...)
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// console 给值班看的本地输出；json 给日志采集
func encoder(format string) zapcore.Encoder {
	if strings.EqualFold(format, "console") {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.MessageKey = "msg"
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(cfg)
}
