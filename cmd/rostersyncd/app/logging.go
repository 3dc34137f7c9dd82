package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation parameters follow lumberjack semantics.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 5
	logMaxAgeDays = 14
)

// newLogger builds the daemon's structured logger: JSON to a rotating
// file when log-file is set, text to stderr otherwise.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	var h slog.Handler
	if path := viper.GetString("log-file"); path != "" {
		var w io.Writer = &lj.Logger{
			Filename:   path,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}
