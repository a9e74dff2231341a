package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options 控制日志输出格式与级别。
type Options struct {
	Service   string
	Env       string
	Level     string
	AddSource bool
	// Output 为空时写 stdout。
	Output io.Writer
}

// New 构造 JSON 结构化日志，并设为 slog 默认 logger。
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	})

	base := slog.New(h).With(
		"service", opts.Service,
		"env", opts.Env,
	)

	slog.SetDefault(base)
	return base
}

// Discard 返回丢弃所有输出的 logger，测试用。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
