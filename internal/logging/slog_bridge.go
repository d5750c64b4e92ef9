// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Slog returns a *slog.Logger that forwards records to the global zerolog
// logger. Used for dependencies that only accept log/slog, such as the
// supervisor's sutureslog event hook.
func Slog() *slog.Logger {
	return slog.New(&slogBridge{})
}

// slogBridge adapts slog records onto the zerolog global logger. Groups
// are flattened into dot-prefixed keys.
type slogBridge struct {
	attrs  []slog.Attr
	prefix string
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerolog(level) >= Logger().GetLevel()
}

func (b *slogBridge) Handle(_ context.Context, rec slog.Record) error {
	// WithLevel has a pointer receiver; the global logger value must be
	// addressable before calling it.
	lg := Logger()
	ev := lg.WithLevel(slogToZerolog(rec.Level))
	for _, attr := range b.attrs {
		ev = appendAttr(ev, b.prefix, attr)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		ev = appendAttr(ev, b.prefix, attr)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{attrs: merged, prefix: b.prefix}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{attrs: b.attrs, prefix: b.prefix + name + "."}
}

func appendAttr(ev *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	return ev.Interface(prefix+attr.Key, attr.Value.Any())
}

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
